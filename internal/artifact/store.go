package artifact

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("artifact: not found")
	ErrInvalidArgument = errors.New("artifact: invalid argument")
)

// Store is the durable byte storage for uploaded call audio.
//
// References returned by Put are opaque to callers; only the store that
// issued a reference can resolve it.
type Store interface {
	// Put stores audio for a company and returns an opaque reference.
	Put(ctx context.Context, companyID string, data []byte, mimeType string) (string, error)

	// Get resolves a reference back to the stored bytes.
	Get(ctx context.Context, ref string) ([]byte, error)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".bin"
	}
}
