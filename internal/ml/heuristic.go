package ml

import (
	"context"
	"fmt"
	"math"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// Feature-vector positions the heuristic reads (manifest order).
const (
	idxCurrentAttendance = 0
	idxTrendDirection    = 7
	idxFailureCertainty  = 38
)

// HeuristicClassifier is a deterministic stand-in for the trained model,
// used in development when the artifact is unavailable and the config allows
// a fallback. It scores risk from the failure-certainty recovery feature,
// adjusted by the current attendance level and trend direction.
type HeuristicClassifier struct {
	vectorLen int
}

// NewHeuristicClassifier returns a heuristic classifier expecting vectors of
// the given length.
func NewHeuristicClassifier(vectorLen int) *HeuristicClassifier {
	return &HeuristicClassifier{vectorLen: vectorLen}
}

// Predict derives a probability distribution over risk labels. It never
// fails on well-formed input, which keeps development pipelines running
// end to end.
func (h *HeuristicClassifier) Predict(_ context.Context, vector []float64) (Prediction, error) {
	if len(vector) != h.vectorLen {
		return Prediction{}, fmt.Errorf("expected %d features, got %d", h.vectorLen, len(vector))
	}

	certainty := clamp01(vector[idxFailureCertainty])
	current := vector[idxCurrentAttendance]
	direction := vector[idxTrendDirection]

	score := 0.7 * certainty
	if current < 75 {
		score += 0.2
	} else if current >= 85 {
		score -= 0.1
	}
	score -= 0.1 * direction
	score = clamp01(score)

	pHigh := score * score
	pLow := (1 - score) * (1 - score)
	pModerate := 1 - pHigh - pLow
	if pModerate < 0 {
		pModerate = 0
	}

	dist, err := normalize(Distribution{
		attendance.RiskHigh:     pHigh,
		attendance.RiskModerate: pModerate,
		attendance.RiskLow:      pLow,
	})
	if err != nil {
		return Prediction{}, err
	}

	risk, confidence := argmax(dist)
	return Prediction{Risk: risk, Probability: dist, Confidence: confidence}, nil
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
