// Package attentiveness implements the engagement stage. Face recognition is
// the primary signal; the upstream consistency classification is consulted
// only to adjust borderline cases.
package attentiveness

import (
	"fmt"
	"math"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// Gating thresholds. Face score bands decide the classification; the
// consistency adjustment applies only inside the borderline bands.
const (
	activeFaceScore   = 0.70
	moderateFaceScore = 0.40
	upgradeFaceScore  = 0.50
	softenFaceScore   = 0.30

	minDataQuality = 0.6

	faceWeightAttentive = 0.5
	faceWeightEmotion   = 0.5
)

// Features are the engagement measurements over qualifying present sessions
// (present with both attentiveness and emotion recorded).
type Features struct {
	TotalPresentSessions      int     `json:"total_present_sessions"`
	DataQualityScore          float64 `json:"data_quality_score"`
	HighAttentivenessRatio    float64 `json:"high_attentiveness_ratio"`
	MediumAttentivenessRatio  float64 `json:"medium_attentiveness_ratio"`
	LowAttentivenessRatio     float64 `json:"low_attentiveness_ratio"`
	PositiveEmotionRatio      float64 `json:"positive_emotion_ratio"`
	NeutralEmotionRatio       float64 `json:"neutral_emotion_ratio"`
	NegativeEmotionRatio      float64 `json:"negative_emotion_ratio"`
	AverageAttentivenessScore float64 `json:"average_attentiveness_score"`
	AttentivenessConsistency  float64 `json:"attentiveness_consistency"`
}

// Result is the attentiveness stage output. FaceScore, ConsistencyChecked,
// Reason, and Interpretation are set only on the analyzed variant.
type Result struct {
	Status             attendance.StageStatus        `json:"status"`
	Attentiveness      attendance.AttentivenessLabel `json:"attentiveness,omitempty"`
	Confidence         attendance.Confidence         `json:"confidence"`
	FaceScore          *float64                      `json:"face_score,omitempty"`
	ConsistencyChecked *bool                         `json:"consistency_checked,omitempty"`
	ConsistencyInput   attendance.ConsistencyLabel   `json:"consistency_input,omitempty"`
	Reason             string                        `json:"reason,omitempty"`
	Interpretation     string                        `json:"interpretation,omitempty"`
	Message            string                        `json:"message,omitempty"`
	SessionsAnalyzed   int                           `json:"sessions_analyzed"`
	Features           Features                      `json:"features"`
}

// Analyzer classifies engagement from face-recognition data.
// It is stateless and safe for concurrent use.
type Analyzer struct{}

// New returns an attentiveness analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze classifies engagement over the qualifying present sessions.
// upstreamConsistency is the consistency stage's label when available;
// pass the empty string to skip the borderline adjustment.
func (a *Analyzer) Analyze(records []attendance.Record, upstreamConsistency attendance.ConsistencyLabel) Result {
	feats := extractFeatures(records)

	if feats.TotalPresentSessions == 0 {
		return Result{
			Status:     attendance.StageNoData,
			Confidence: attendance.ConfidenceNone,
			Message:    "No attendance data available yet. Attentiveness analysis requires at least 5 sessions.",
			Features:   feats,
		}
	}

	if feats.TotalPresentSessions < attendance.MinSessionsForAnalysis {
		return Result{
			Status:        attendance.StageEarlyStage,
			Attentiveness: attendance.ModeratelyAttentive,
			Confidence:    attendance.ConfidenceNone,
			Message: fmt.Sprintf(
				"Only %d sessions recorded. Need at least 5 sessions for reliable attentiveness analysis.",
				feats.TotalPresentSessions),
			SessionsAnalyzed: feats.TotalPresentSessions,
			Features:         feats,
		}
	}

	if feats.DataQualityScore < minDataQuality {
		return Result{
			Status:           attendance.StageLowQualityData,
			Attentiveness:    attendance.ModeratelyAttentive,
			Confidence:       attendance.ConfidenceLow,
			Message:          "Face recognition data quality is insufficient for reliable analysis. Manual verification recommended.",
			SessionsAnalyzed: feats.TotalPresentSessions,
			Features:         feats,
		}
	}

	faceScore := feats.HighAttentivenessRatio*faceWeightAttentive +
		feats.PositiveEmotionRatio*faceWeightEmotion
	rounded := round3(faceScore)

	result := Result{
		Status:           attendance.StageAnalyzed,
		Confidence:       confidence(feats),
		FaceScore:        &rounded,
		SessionsAnalyzed: feats.TotalPresentSessions,
		Features:         feats,
	}

	switch {
	case faceScore >= activeFaceScore:
		// High engagement is final; consistency is not consulted.
		result.Attentiveness = attendance.ActivelyAttentive
		result.ConsistencyChecked = boolPtr(false)
		result.Reason = "High engagement detected through face recognition"
		result.Interpretation = "Student shows high engagement with predominantly positive emotions during class."

	case faceScore >= moderateFaceScore:
		result.ConsistencyChecked = boolPtr(true)
		result.ConsistencyInput = upstreamConsistency
		if upstreamConsistency == attendance.ConsistencyRegular && faceScore >= upgradeFaceScore {
			result.Attentiveness = attendance.ActivelyAttentive
			result.Reason = "Moderate-high engagement + regular attendance"
			result.Interpretation = "Student shows consistent attendance and good engagement. Reliable and committed learner."
		} else {
			result.Attentiveness = attendance.ModeratelyAttentive
			if upstreamConsistency == attendance.ConsistencyHighlyIrregular {
				result.Reason = "Moderate engagement but irregular attendance"
				result.Interpretation = "Student shows moderate engagement when present, but attendance pattern is irregular."
			} else {
				result.Reason = "Moderate engagement with acceptable attendance"
				result.Interpretation = "Student shows moderate engagement and acceptable attendance pattern."
			}
		}

	default:
		result.ConsistencyChecked = boolPtr(true)
		result.ConsistencyInput = upstreamConsistency
		if upstreamConsistency == attendance.ConsistencyRegular && faceScore >= softenFaceScore {
			result.Attentiveness = attendance.ModeratelyAttentive
			result.Reason = "Low engagement but regular attendance - may be shy/introverted"
			result.Interpretation = "Student attends regularly but shows lower engagement. May be naturally reserved or introverted."
		} else {
			result.Attentiveness = attendance.PassivelyAttentive
			if upstreamConsistency == attendance.ConsistencyHighlyIrregular {
				result.Reason = "Low engagement combined with irregular attendance"
				result.Interpretation = "Student shows low engagement and irregular attendance pattern. May need additional support."
			} else {
				result.Reason = "Low engagement detected through face recognition"
				result.Interpretation = "Student shows lower engagement levels during class sessions."
			}
		}
	}

	return result
}

// extractFeatures computes engagement ratios over qualifying present records.
func extractFeatures(records []attendance.Record) Features {
	var qualifying []attendance.Record
	for _, r := range records {
		if r.HasFaceData() {
			qualifying = append(qualifying, r)
		}
	}

	total := len(qualifying)
	if total == 0 {
		return Features{}
	}

	var high, medium, low, positive, neutral, negative int
	scores := make([]float64, 0, total)
	for _, r := range qualifying {
		switch r.Attentiveness {
		case attendance.AttentivenessHigh:
			high++
			scores = append(scores, 3)
		case attendance.AttentivenessMedium:
			medium++
			scores = append(scores, 2)
		case attendance.AttentivenessLow:
			low++
			scores = append(scores, 1)
		}
		switch {
		case r.Emotion.IsPositive():
			positive++
		case r.Emotion == attendance.EmotionNeutral:
			neutral++
		case r.Emotion.IsNegative():
			negative++
		}
	}

	n := float64(total)
	mean, std := meanStd(scores)

	return Features{
		TotalPresentSessions:      total,
		DataQualityScore:          n / float64(len(records)),
		HighAttentivenessRatio:    float64(high) / n,
		MediumAttentivenessRatio:  float64(medium) / n,
		LowAttentivenessRatio:     float64(low) / n,
		PositiveEmotionRatio:      float64(positive) / n,
		NeutralEmotionRatio:       float64(neutral) / n,
		NegativeEmotionRatio:      float64(negative) / n,
		AverageAttentivenessScore: mean,
		AttentivenessConsistency:  std,
	}
}

// confidence starts at 100 and subtracts penalties for small samples, poor
// face-data coverage, and erratic attentiveness scores, then maps the result
// onto the shared confidence ladder.
func confidence(feats Features) attendance.Confidence {
	score := 100

	if feats.TotalPresentSessions < 10 {
		score -= 30
	} else if feats.TotalPresentSessions < 20 {
		score -= 15
	}

	if feats.DataQualityScore < 0.8 {
		score -= 20
	}

	if feats.AttentivenessConsistency > 0.8 {
		score -= 15
	}

	switch {
	case score >= 75:
		return attendance.ConfidenceHigh
	case score >= 50:
		return attendance.ConfidenceMedium
	case score >= 30:
		return attendance.ConfidenceLow
	default:
		return attendance.ConfidenceNone
	}
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func boolPtr(b bool) *bool { return &b }
