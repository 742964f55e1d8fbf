package usecase

import (
	"sort"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// Dedupe collapses duplicate documents surfaced by multiple backends into
// one candidate each, keeping the best raw score per method. Input order
// does not affect the resulting set; output is sorted by candidate key so
// iteration is deterministic before fusion.
func Dedupe(results []domain.BackendResult) []domain.DocumentCandidate {
	byKey := make(map[string]domain.DocumentCandidate)

	for _, result := range results {
		if result.Failed() {
			continue
		}
		for _, entry := range result.Entries {
			key := entryKey(entry)
			candidate, ok := byKey[key]
			if !ok {
				candidate = domain.DocumentCandidate{
					DocID:        entry.DocID,
					Section:      entry.Section,
					MethodScores: make(map[domain.RetrievalMethod]float64, 4),
				}
			}
			candidate = preferRicherCandidate(candidate, entry)
			if entry.Score > candidate.MethodScores[result.Method] {
				candidate.MethodScores[result.Method] = entry.Score
			}
			byKey[key] = candidate
		}
	}

	out := make([]domain.DocumentCandidate, 0, len(byKey))
	for _, candidate := range byKey {
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// preferRicherCandidate fills gaps in the accumulated candidate from a new
// entry without overwriting fields an earlier backend already supplied.
func preferRicherCandidate(candidate domain.DocumentCandidate, entry domain.RankedEntry) domain.DocumentCandidate {
	if candidate.Content == "" && entry.Content != "" {
		candidate.Content = entry.Content
	}
	if candidate.SourceType == "" && entry.SourceType != "" {
		candidate.SourceType = entry.SourceType
	}
	if len(entry.Metadata) > 0 {
		if candidate.Metadata == nil {
			candidate.Metadata = make(map[string]string, len(entry.Metadata))
		}
		for k, v := range entry.Metadata {
			if _, ok := candidate.Metadata[k]; !ok {
				candidate.Metadata[k] = v
			}
		}
	}
	return candidate
}
