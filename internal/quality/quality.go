// Package quality scores a fetched batch on a 0-100 scale. Scoring is pure and
// never fails: every defect class present in at least one record deducts its
// penalty once.
package quality

const (
	MaxScore = 100.0
	MinScore = 0.0
)

// Check is one defect class with a fixed penalty.
type Check[T any] struct {
	Name    string
	Penalty float64
	Defect  func(r *T) bool
}

type Report struct {
	Score   float64  `json:"score"`
	Defects []string `json:"defects,omitempty"`
}

// Assess applies checks to batch. An empty batch scores MinScore.
func Assess[T any](batch []T, checks []Check[T]) Report {
	if len(batch) == 0 {
		return Report{Score: MinScore, Defects: []string{"empty_batch"}}
	}
	score := MaxScore
	var defects []string
	for _, c := range checks {
		for i := range batch {
			if c.Defect(&batch[i]) {
				score -= c.Penalty
				defects = append(defects, c.Name)
				break
			}
		}
	}
	return Report{Score: clamp(score), Defects: defects}
}

func clamp(score float64) float64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
