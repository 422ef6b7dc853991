package matching

import "sort"

type RankedRecommendation struct {
	DatasetID   int64
	DatastoreID int64
	Confidence  float64
	Reason      string
	// Priority is 1-based; 1 is the most confident pair.
	Priority int
}

type RankResult struct {
	Recommendations   []RankedRecommendation
	OverallConfidence float64
}

// Rank deduplicates and orders parsed recommendations. Pairs are deduplicated
// keeping the higher-confidence entry (first occurrence wins ties), then
// sorted by confidence descending with a stable sort so equal confidences
// keep the model's original order. The ranker never invents pairs: anything
// absent from the parsed input stays absent.
func Rank(parsed *ParsedResult) RankResult {
	if parsed == nil || len(parsed.Recommendations) == 0 {
		return RankResult{Recommendations: []RankedRecommendation{}}
	}

	type pair struct{ dataset, datastore int64 }
	slot := make(map[pair]int, len(parsed.Recommendations))
	deduped := make([]ParsedRecommendation, 0, len(parsed.Recommendations))
	for _, rec := range parsed.Recommendations {
		key := pair{rec.DatasetID, rec.DatastoreID}
		if idx, seen := slot[key]; seen {
			if rec.Confidence > deduped[idx].Confidence {
				deduped[idx] = rec
			}
			continue
		}
		slot[key] = len(deduped)
		deduped = append(deduped, rec)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Confidence > deduped[j].Confidence
	})

	out := make([]RankedRecommendation, 0, len(deduped))
	var sum float64
	for i, rec := range deduped {
		sum += rec.Confidence
		out = append(out, RankedRecommendation{
			DatasetID:   rec.DatasetID,
			DatastoreID: rec.DatastoreID,
			Confidence:  rec.Confidence,
			Reason:      rec.Reason,
			Priority:    i + 1,
		})
	}

	overall := sum / float64(len(out))
	if parsed.OverallConfidence != nil {
		if v := *parsed.OverallConfidence; v >= 0 && v <= 100 {
			overall = v
		}
	}

	return RankResult{Recommendations: out, OverallConfidence: overall}
}
