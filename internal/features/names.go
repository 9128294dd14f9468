package features

// Count is the fixed length of the feature vector. The classifier artifact
// is order-sensitive: the manifest below must match the artifact's
// feature-name list exactly, in this order.
const Count = 45

var featureNames = [Count]string{
	// Current state
	"current_attendance_percentage",
	"total_sessions_so_far",
	"present_count",
	"absent_count",
	"excused_absence_count",
	"unexcused_absence_count",
	"attendance_variance",
	// Trend
	"trend_direction",
	"trend_strength",
	"recent_5_attendance_rate",
	"recent_10_attendance_rate",
	"trend_slope",
	"trend_acceleration",
	"recent_vs_overall_diff",
	// Pattern
	"consistency_score",
	"consecutive_absences_max",
	"consecutive_absences_avg",
	"absence_clustering_score",
	"attendance_regularity",
	"absence_frequency",
	"attendance_stability",
	// Engagement
	"attentiveness_level",
	"average_attentiveness_score",
	"positive_emotion_ratio",
	"engagement_trend",
	"attentiveness_consistency",
	// Temporal
	"semester_progress",
	"sessions_remaining",
	"weeks_since_enrollment",
	"time_pressure",
	"semester_phase",
	// Recovery
	"total_sessions_planned",
	"sessions_remaining_duplicate",
	"best_possible_attendance",
	"recovery_possible",
	"sessions_needed_to_reach_75",
	"recovery_difficulty",
	"recovery_margin",
	"failure_certainty",
	// Class context
	"class_average_attendance",
	"student_vs_class_difference",
	"class_attendance_on_absent_days",
	"peer_rank_percentile",
	"below_class_average",
	"relative_performance_trend",
}

// Names returns a copy of the ordered feature-name manifest.
func Names() []string {
	out := make([]string, Count)
	copy(out, featureNames[:])
	return out
}
