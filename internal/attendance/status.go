package attendance

// StageStatus tags the variant of a stage result. Insufficient-data outcomes
// are first-class terminal statuses, not errors: every status still produces a
// complete, schema-valid result object.
type StageStatus string

const (
	StageAnalyzed       StageStatus = "analyzed"
	StageNoData         StageStatus = "no_data"
	StageEarlyStage     StageStatus = "early_stage"
	StageLowQualityData StageStatus = "low_quality_data"
)

// Confidence expresses how reliable a stage classification is, escalating
// with the number of observed sessions.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Session-count thresholds shared by every stage's confidence ladder.
const (
	MinSessionsForAnalysis   = 5
	MediumConfidenceSessions = 10
	HighConfidenceSessions   = 15
)

// ConfidenceForSessions maps a session count onto the confidence ladder.
// The ladder is monotonic: none below 5, low below 10, medium below 15,
// high at 15 and above.
func ConfidenceForSessions(n int) Confidence {
	switch {
	case n < MinSessionsForAnalysis:
		return ConfidenceNone
	case n < MediumConfidenceSessions:
		return ConfidenceLow
	case n < HighConfidenceSessions:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// TrendLabel classifies the attendance trajectory over the analysis window.
type TrendLabel string

const (
	TrendImproving TrendLabel = "improving"
	TrendStable    TrendLabel = "stable"
	TrendDeclining TrendLabel = "declining"
	TrendNoData    TrendLabel = "no_data"
)

// ConsistencyLabel classifies absence discipline over the full history.
type ConsistencyLabel string

const (
	ConsistencyRegular             ConsistencyLabel = "regular"
	ConsistencyModeratelyIrregular ConsistencyLabel = "moderately_irregular"
	ConsistencyHighlyIrregular     ConsistencyLabel = "highly_irregular"
	ConsistencyNoData              ConsistencyLabel = "no_data"
)

// AttentivenessLabel classifies in-class engagement.
type AttentivenessLabel string

const (
	ActivelyAttentive   AttentivenessLabel = "actively_attentive"
	ModeratelyAttentive AttentivenessLabel = "moderately_attentive"
	PassivelyAttentive  AttentivenessLabel = "passively_attentive"
)

// RiskLevel is the final classifier output.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)
