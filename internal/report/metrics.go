package report

import (
	"sort"

	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/insight"
)

// MetricFunc computes one aggregate from the window's records and their
// current insights. Output must be deterministic for a fixed input set.
type MetricFunc func(recs []calls.CallRecord, ins []insight.Insight) any

const topKeywordLimit = 5

// registry is the fixed metric set every report carries.
var registry = map[string]MetricFunc{
	"call_count":             callCount,
	"avg_duration_seconds":   avgDuration,
	"avg_confidence":         avgConfidence,
	"sentiment_distribution": sentimentDistribution,
	"top_keywords":           topKeywords,
}

func callCount(recs []calls.CallRecord, _ []insight.Insight) any {
	return len(recs)
}

func avgDuration(recs []calls.CallRecord, _ []insight.Insight) any {
	if len(recs) == 0 {
		return 0.0
	}
	total := 0
	for _, r := range recs {
		total += r.DurationSeconds
	}
	return float64(total) / float64(len(recs))
}

func avgConfidence(_ []calls.CallRecord, ins []insight.Insight) any {
	if len(ins) == 0 {
		return 0.0
	}
	total := 0.0
	for _, i := range ins {
		total += i.Confidence
	}
	return total / float64(len(ins))
}

func sentimentDistribution(_ []calls.CallRecord, ins []insight.Insight) any {
	dist := map[string]int{}
	for _, i := range ins {
		if i.Sentiment != "" {
			dist[i.Sentiment]++
		}
	}
	return dist
}

type keywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// topKeywords returns the most frequent keywords across all insight topic
// lists, count descending with lexicographic ties so regeneration over the
// same inputs is byte-stable.
func topKeywords(_ []calls.CallRecord, ins []insight.Insight) any {
	counts := map[string]int{}
	for _, i := range ins {
		for _, words := range i.Keywords {
			for _, w := range words {
				if w != "" {
					counts[w]++
				}
			}
		}
	}
	ranked := make([]keywordCount, 0, len(counts))
	for w, n := range counts {
		ranked = append(ranked, keywordCount{Keyword: w, Count: n})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Count != ranked[b].Count {
			return ranked[a].Count > ranked[b].Count
		}
		return ranked[a].Keyword < ranked[b].Keyword
	})
	if len(ranked) > topKeywordLimit {
		ranked = ranked[:topKeywordLimit]
	}
	return ranked
}
