package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

const defaultOpenAIModel = shared.ResponsesModel("gpt-4o-mini")

const openaiSystemPrompt = `You analyze customer call recordings. Given a call
transcript, respond ONLY with a JSON object with keys:
transcript (string, cleaned transcript),
sentiment (one of Positive, Negative, Neutral),
keywords (object mapping "topics" to a list of short topic strings),
summary (one or two sentences),
signals (object mapping signal names to numbers in [0,1], always including sentiment_score),
confidence (number in [0,1]).`

// OpenAI analyzes calls through the OpenAI Responses API. Transcription is
// delegated to the audio transcription endpoint; the NLP extraction runs on
// the transcript.
type OpenAI struct {
	client *openai.Client
	model  shared.ResponsesModel
}

func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("analysis: openai api key is required")
	}
	m := defaultOpenAIModel
	if model != "" {
		m = shared.ResponsesModel(model)
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{client: &client, model: m}, nil
}

type openaiExtraction struct {
	Transcript string              `json:"transcript"`
	Sentiment  string              `json:"sentiment"`
	Keywords   map[string][]string `json:"keywords"`
	Summary    string              `json:"summary"`
	Signals    map[string]float64  `json:"signals"`
	Confidence float64             `json:"confidence"`
}

func (a *OpenAI) Analyze(ctx context.Context, audio []byte, mimeType string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, Permanent("empty audio payload", nil)
	}

	transcript, err := a.transcribe(ctx, audio, mimeType)
	if err != nil {
		return Result{}, err
	}

	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(openaiSystemPrompt, responses.EasyInputMessageRoleSystem),
				responses.ResponseInputItemParamOfMessage(transcript, responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return Result{}, Transient("openai extraction failed", err)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return Result{}, Transient("openai returned an empty response", nil)
	}

	var ext openaiExtraction
	if err := json.Unmarshal([]byte(output), &ext); err != nil {
		return Result{}, Transient("openai returned malformed JSON", err)
	}
	if ext.Transcript == "" {
		ext.Transcript = transcript
	}
	return Result{
		Transcript: ext.Transcript,
		Sentiment:  normalizeSentiment(ext.Sentiment),
		Keywords:   ext.Keywords,
		Summary:    ext.Summary,
		Signals:    ext.Signals,
		Confidence: ext.Confidence,
	}, nil
}

func (a *OpenAI) transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	name := "call" + extensionForMime(mimeType)
	tr, err := a.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(audio), name, mimeType),
	})
	if err != nil {
		// The API rejects audio it cannot decode; that is not retryable.
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return "", Permanent("unsupported or corrupt audio", err)
		}
		return "", Transient("openai transcription failed", err)
	}
	return tr.Text, nil
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive
	case "negative":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".bin"
	}
}

var _ Capability = (*OpenAI)(nil)
