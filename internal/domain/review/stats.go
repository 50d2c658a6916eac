package review

import (
	"math"

	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// Confidence band thresholds. Display/bulk-action buckets only; never
// stored on the suggestion.
const (
	HighConfidenceThreshold   = 0.80
	MediumConfidenceThreshold = 0.50
)

// Stats summarizes the pending suggestion set. Computed on each refresh,
// never persisted.
type Stats struct {
	Total             int `json:"total"`
	High              int `json:"high"`
	Medium            int `json:"medium"`
	Low               int `json:"low"`
	MeanConfidencePct int `json:"mean_confidence_pct"`
}

// ComputeStats derives counts per confidence band and the mean confidence
// across all pending suggestions, rounded to an integer percentage.
func ComputeStats(pending []*storage.PendingSuggestion) Stats {
	stats := Stats{Total: len(pending)}
	if len(pending) == 0 {
		return stats
	}

	var sum float64
	for _, sg := range pending {
		sum += sg.Confidence
		switch {
		case sg.Confidence >= HighConfidenceThreshold:
			stats.High++
		case sg.Confidence >= MediumConfidenceThreshold:
			stats.Medium++
		default:
			stats.Low++
		}
	}

	stats.MeanConfidencePct = int(math.Round(sum / float64(len(pending)) * 100))
	return stats
}
