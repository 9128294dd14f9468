// Package risk applies the pre-trained classifier to the feature vector and
// derives deterministic recommendations from the recovery features. The
// classifier is consumed as a black box; the recommendation rules never look
// at its internals.
package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/features"
	"github.com/Tharun06102005/smart-attendance-system/internal/ml"
)

// Recovery messaging tiers: the share of remaining sessions a below-threshold
// student must attend.
const (
	veryDifficultRate = 90.0
	challengingRate   = 70.0

	earlyLowRiskPct      = 80.0
	earlyModerateRiskPct = 60.0
)

// Assessment is the risk stage output. Terminal statuses (no_data,
// early_stage) populate only the fields valid for their variant; the
// analyzed variant carries the full classifier result.
type Assessment struct {
	Status                 attendance.StageStatus `json:"status"`
	Risk                   attendance.RiskLevel   `json:"risk,omitempty"`
	Probability            ml.Distribution        `json:"probability,omitempty"`
	Confidence             *float64               `json:"confidence,omitempty"`
	Message                string                 `json:"message,omitempty"`
	CurrentAttendance      *float64               `json:"current_attendance,omitempty"`
	BestPossibleAttendance *float64               `json:"best_possible_attendance,omitempty"`
	RecoveryPossible       *bool                  `json:"recovery_possible,omitempty"`
	SessionsNeeded         *int                   `json:"sessions_needed_to_reach_75,omitempty"`
	SessionsRemaining      int                    `json:"sessions_remaining"`
	SessionsAnalyzed       int                    `json:"sessions_analyzed"`
	Recommendations        []string               `json:"recommendations"`
	ActionPlan             string                 `json:"action_plan"`
	ModelAccuracy          float64                `json:"model_accuracy"`
	FeaturesUsed           int                    `json:"features_used,omitempty"`
}

// Predictor runs the final risk stage.
type Predictor struct {
	extractor  *features.Extractor
	classifier ml.Classifier
	manifest   *ml.Manifest
}

// NewPredictor validates the classifier manifest against the extractor's
// feature manifest and returns a ready predictor. A mismatch is a
// ConfigurationError: the caller must treat it as fatal.
func NewPredictor(classifier ml.Classifier, manifest *ml.Manifest) (*Predictor, error) {
	if classifier == nil {
		return nil, attendance.NewConfigurationError("no risk classifier configured", nil)
	}
	if manifest == nil {
		return nil, attendance.NewConfigurationError("no classifier manifest configured", nil)
	}
	if err := manifest.Validate(features.Names()); err != nil {
		return nil, err
	}
	return &Predictor{
		extractor:  features.NewExtractor(),
		classifier: classifier,
		manifest:   manifest,
	}, nil
}

// Assess produces the risk assessment for one student. Histories with fewer
// than five sessions short-circuit to a terminal variant without invoking
// the classifier.
func (p *Predictor) Assess(ctx context.Context, in features.Input) (Assessment, error) {
	total := len(in.Records)
	planned := in.Planned
	if planned <= 0 {
		planned = 1
	}

	if total == 0 {
		return p.noData(planned), nil
	}
	if total < attendance.MinSessionsForAnalysis {
		return p.earlyStage(in.Records, planned), nil
	}

	set := p.extractor.Extract(in)

	prediction, err := p.classifier.Predict(ctx, set.Vector())
	if err != nil {
		return Assessment{}, fmt.Errorf("risk prediction: %w", err)
	}

	recs, plan := recommendations(set)

	needed := int(set.SessionsNeeded)
	remaining := int(set.SessionsRemaining)
	possible := set.RecoveryPossible == 1

	return Assessment{
		Status:                 attendance.StageAnalyzed,
		Risk:                   prediction.Risk,
		Probability:            prediction.Probability,
		Confidence:             &prediction.Confidence,
		CurrentAttendance:      &set.CurrentAttendance,
		BestPossibleAttendance: &set.BestPossible,
		RecoveryPossible:       &possible,
		SessionsNeeded:         &needed,
		SessionsRemaining:      remaining,
		SessionsAnalyzed:       total,
		Recommendations:        recs,
		ActionPlan:             plan,
		ModelAccuracy:          p.manifest.TestAccuracy,
		FeaturesUsed:           features.Count,
	}, nil
}

func (p *Predictor) noData(planned int) Assessment {
	possible := true
	return Assessment{
		Status:            attendance.StageNoData,
		Message:           "No attendance data available yet. Risk analysis requires at least 5 sessions.",
		SessionsRemaining: planned,
		RecoveryPossible:  &possible,
		Recommendations: []string{
			"No attendance records found",
			"Student has not attended any sessions yet",
			"Risk analysis will be available after 5 sessions",
		},
		ActionPlan:    "Ensure student attends upcoming sessions. Early attendance is crucial.",
		ModelAccuracy: p.manifest.TestAccuracy,
	}
}

func (p *Predictor) earlyStage(records []attendance.Record, planned int) Assessment {
	total := len(records)
	present := 0
	for _, r := range records {
		if r.IsPresent() {
			present++
		}
	}
	current := float64(present) / float64(total) * 100
	remaining := planned - total
	best := float64(present+remaining) / float64(planned) * 100
	possible := best >= features.PassThreshold

	var risk attendance.RiskLevel
	var message string
	switch {
	case current >= earlyLowRiskPct:
		risk = attendance.RiskLow
		message = fmt.Sprintf("Good start with %.1f%% attendance. Continue this pattern.", current)
	case current >= earlyModerateRiskPct:
		risk = attendance.RiskModerate
		message = fmt.Sprintf("Moderate attendance (%.1f%%). Improvement recommended.", current)
	default:
		risk = attendance.RiskHigh
		message = fmt.Sprintf("Low attendance (%.1f%%). Immediate attention needed.", current)
	}

	return Assessment{
		Status: attendance.StageEarlyStage,
		Risk:   risk,
		Message: fmt.Sprintf(
			"Only %d sessions recorded. Need at least 5 sessions for reliable ML prediction. Showing early assessment.",
			total),
		CurrentAttendance:      &current,
		SessionsAnalyzed:       total,
		SessionsRemaining:      remaining,
		BestPossibleAttendance: &best,
		RecoveryPossible:       &possible,
		Recommendations: []string{
			fmt.Sprintf("Early stage: %d sessions completed", total),
			message,
			fmt.Sprintf("Can still achieve %.1f%% if pattern improves", best),
		},
		ActionPlan: fmt.Sprintf(
			"Attend consistently. %d sessions remaining to establish good pattern.", remaining),
		ModelAccuracy: p.manifest.TestAccuracy,
	}
}

// recommendations is the deterministic rule layer over the recovery
// features. Rules are independent of the classifier output.
func recommendations(set *features.Set) ([]string, string) {
	current := set.CurrentAttendance
	remaining := set.SessionsRemaining
	needed := int(set.SessionsNeeded)

	if set.RecoveryPossible == 0 {
		return []string{
			"⚠️ CRITICAL: Recovery to 75% is mathematically impossible",
			fmt.Sprintf("Even with 100%% attendance, maximum possible is %.1f%%", set.BestPossible),
		}, "Immediate intervention required. Consider alternative assessment or remedial options."
	}

	if current < features.PassThreshold {
		recs := []string{
			"⚠️ Currently below 75% threshold",
			fmt.Sprintf("Need to attend %d out of %d remaining sessions", needed, int(remaining)),
		}

		requiredRate := 100.0
		if remaining > 0 {
			requiredRate = float64(needed) / remaining * 100
		}

		switch {
		case requiredRate >= veryDifficultRate:
			recs = append(recs, "🔴 Recovery is very difficult - requires near-perfect attendance")
			return recs, fmt.Sprintf(
				"Must attend at least %d sessions. Missing even 1-2 classes may result in failure.", needed)
		case requiredRate >= challengingRate:
			recs = append(recs, "🟡 Recovery is challenging but achievable with commitment")
			return recs, fmt.Sprintf(
				"Attend %d out of next %d sessions to reach 75%%.", needed, int(remaining))
		default:
			recs = append(recs, "🟢 Recovery is achievable with consistent attendance")
			return recs, fmt.Sprintf(
				"Attend %d more sessions to safely reach 75%% threshold.", needed)
		}
	}

	buffer := current - features.PassThreshold
	maxAbsences := int(math.Floor(buffer / 100 * remaining))
	return []string{
		fmt.Sprintf("✅ Currently above 75%% threshold (%.1f%%)", current),
		fmt.Sprintf("Can afford to miss up to %d more sessions", maxAbsences),
	}, fmt.Sprintf("Maintain current attendance pattern. Buffer: %.1f%%", buffer)
}
