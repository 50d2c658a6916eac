package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// rawCandidate is the untrusted shape of one oracle output element.
// Confidence is decoded as json.Number so a string-typed number from the
// oracle is still usable.
type rawCandidate struct {
	TransactionID string      `json:"transaction_id"`
	Confidence    json.Number `json:"confidence"`
	Reason        string      `json:"reason"`
}

// ParseCandidates validates the oracle's raw text output. It strips any
// code-fence wrapping, requires a JSON array, and drops any element with an
// empty or unknown transaction id, a non-numeric confidence, or an empty
// reason. Confidence values slightly outside [0,1] are clamped. The result
// is sorted by confidence descending and truncated to max entries.
//
// An unparsable payload returns an error; the caller decides whether that is
// fatal (currently it is logged and treated as an empty candidate list).
func ParseCandidates(raw string, knownIDs map[string]bool, max int) ([]Candidate, error) {
	cleaned := stripCodeFences(raw)

	var rawCandidates []rawCandidate
	if err := json.Unmarshal([]byte(cleaned), &rawCandidates); err != nil {
		return nil, fmt.Errorf("oracle output is not a JSON array: %w", err)
	}

	candidates := make([]Candidate, 0, len(rawCandidates))
	for _, rc := range rawCandidates {
		id := strings.TrimSpace(rc.TransactionID)
		if id == "" || !knownIDs[id] {
			continue
		}
		reason := strings.TrimSpace(rc.Reason)
		if reason == "" {
			continue
		}
		confidence, err := rc.Confidence.Float64()
		if err != nil || math.IsNaN(confidence) || math.IsInf(confidence, 0) {
			continue
		}
		candidates = append(candidates, Candidate{
			TransactionID: id,
			Confidence:    clamp01(confidence),
			Reason:        reason,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	return candidates, nil
}

// stripCodeFences removes markdown code-fence wrapping (``` or ```json)
// that chat models habitually add around JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop a language tag on the opening fence ("json", "JSON", ...)
	if idx := strings.Index(s, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "[{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
