// Package consistency implements the full-history absence-discipline stage.
// The key signal is clustering: absences grouped into multi-session runs
// usually have a valid cause, while scattered single absences suggest
// undisciplined skipping.
package consistency

import (
	"fmt"
	"math"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// Threshold table for the consistency stage. Classification rules are
// evaluated top to bottom; the discipline score sums five weighted factors.
const (
	clusteringRegularMin  = 70.0
	clusteringIrregularLt = 30.0
	excusedRegularMin     = 60.0
	excusedIrregularLt    = 30.0
	incidentsRegularMax   = 2
	maxStreakRegularMax   = 7
	maxStreakSevere       = 10
	singleRegularMax      = 2
	singleIrregularGt     = 5
)

// Metrics carries the named numeric features of a consistency result.
type Metrics struct {
	TotalSessions               int                   `json:"total_sessions"`
	OverallPercentage           float64               `json:"overall_percentage"`
	MinimumRequired             int                   `json:"minimum_required,omitempty"`
	ClusteringScore             float64               `json:"clustering_score"`
	ConsecutiveAbsenceIncidents int                   `json:"consecutive_absence_incidents"`
	MaxAbsenceStreak            int                   `json:"max_absence_streak"`
	AvgAbsenceStreak            float64               `json:"avg_absence_streak"`
	SingleAbsences              int                   `json:"single_absences"`
	ExcusedPercentage           float64               `json:"excused_percentage"`
	ExcusedCount                int                   `json:"excused_count"`
	UnexcusedCount              int                   `json:"unexcused_count"`
	DisciplineScore             int                   `json:"discipline_score"`
	ConfidenceLevel             attendance.Confidence `json:"confidence_level,omitempty"`
}

// Result is the consistency stage output.
type Result struct {
	Consistency     attendance.ConsistencyLabel `json:"consistency"`
	Confidence      attendance.Confidence       `json:"confidence"`
	Metrics         Metrics                     `json:"metrics"`
	Message         string                      `json:"message"`
	Notes           []string                    `json:"notes"`
	Warnings        []string                    `json:"warnings"`
	Recommendations []string                    `json:"recommendations"`
}

// Analyzer classifies absence discipline over the full history.
// It is stateless and safe for concurrent use.
type Analyzer struct{}

// New returns a consistency analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze classifies the full chronological history. Unlike the trend stage
// there is no window cap: discipline is a property of the whole record.
func (a *Analyzer) Analyze(records []attendance.Record) Result {
	sorted := attendance.SortChronological(records)
	total := len(sorted)

	result := Result{
		Consistency:     attendance.ConsistencyRegular,
		Confidence:      attendance.ConfidenceNone,
		Notes:           []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	if total == 0 {
		result.Consistency = attendance.ConsistencyNoData
		result.Metrics = Metrics{MinimumRequired: attendance.MinSessionsForAnalysis}
		result.Message = "No attendance records found. Attendance has not been taken yet for this subject."
		result.Notes = append(result.Notes, "⚠️ No attendance data available")
		result.Notes = append(result.Notes, "Consistency analysis will begin after first attendance session")
		result.Warnings = append(result.Warnings, "No attendance records found")
		return result
	}

	presentCount := 0
	for _, r := range sorted {
		if r.IsPresent() {
			presentCount++
		}
	}
	absentCount := total - presentCount
	overall := float64(presentCount) / float64(total) * 100

	if total < attendance.MinSessionsForAnalysis {
		result.Metrics = Metrics{
			TotalSessions:     total,
			OverallPercentage: round2(overall),
			MinimumRequired:   attendance.MinSessionsForAnalysis,
		}
		result.Message = fmt.Sprintf(
			"Early stage: Only %d session(s) recorded. Consistency analysis will be more reliable after 5 sessions. Current attendance: %.1f%%.",
			total, round1(overall))
		result.Notes = append(result.Notes, "✓ Attendance tracking started")
		result.Notes = append(result.Notes, fmt.Sprintf("Current attendance: %.1f%%", round1(overall)))
		if absentCount > 0 {
			result.Notes = append(result.Notes, fmt.Sprintf("⚠️ %d absence(s) in early stage", absentCount))
		}
		result.Warnings = append(result.Warnings, "Need at least 5 sessions for reliable consistency analysis")
		return result
	}

	m := Metrics{
		TotalSessions:     total,
		OverallPercentage: round2(overall),
	}

	if absentCount == 0 {
		result.Confidence = attendance.ConfidenceForSessions(total)
		m.DisciplineScore = 100
		result.Metrics = m
		result.Message = "Perfect attendance! Student has not missed a single class."
		result.Notes = append(result.Notes, "✓ Perfect attendance record")
		result.Notes = append(result.Notes, "✓ Excellent discipline and commitment")
		return result
	}

	excusedCount := 0
	for _, r := range sorted {
		if r.IsExcused() {
			excusedCount++
		}
	}
	unexcusedCount := absentCount - excusedCount
	excusedPct := float64(excusedCount) / float64(absentCount) * 100

	m.ExcusedPercentage = round2(excusedPct)
	m.ExcusedCount = excusedCount
	m.UnexcusedCount = unexcusedCount

	streaks := absenceRuns(sorted)
	incidents := len(streaks)
	maxStreak := 1
	inStreaks := 0
	for _, n := range streaks {
		inStreaks += n
		if n > maxStreak {
			maxStreak = n
		}
	}
	var avgStreak float64
	if incidents > 0 {
		avgStreak = float64(inStreaks) / float64(incidents)
	}
	singleAbsences := absentCount - inStreaks
	clustering := float64(inStreaks) / float64(absentCount) * 100

	m.ConsecutiveAbsenceIncidents = incidents
	m.MaxAbsenceStreak = maxStreak
	m.AvgAbsenceStreak = round2(avgStreak)
	m.SingleAbsences = singleAbsences
	m.ClusteringScore = round2(clustering)

	conf := attendance.ConfidenceForSessions(total)
	result.Confidence = conf
	m.ConfidenceLevel = conf

	m.DisciplineScore = disciplineScore(clustering, excusedPct, incidents, maxStreak, singleAbsences)

	label := classify(clustering, excusedPct, incidents, maxStreak, singleAbsences)
	result.Consistency = label
	result.Metrics = m

	result.Message = message(label, clustering, excusedPct, incidents, maxStreak)
	addNotes(&result, clustering, excusedPct, incidents, maxStreak, singleAbsences, overall, total)
	addWarnings(&result, overall, maxStreak, incidents)
	addRecommendations(&result, label, overall, singleAbsences)

	return result
}

// absenceRuns returns the lengths of maximal consecutive-absence runs of
// length 2 or more, in chronological order.
func absenceRuns(sorted []attendance.Record) []int {
	var runs []int
	current := 0
	for _, r := range sorted {
		if r.Status == attendance.StatusAbsent {
			current++
			continue
		}
		if current > 1 {
			runs = append(runs, current)
		}
		current = 0
	}
	if current > 1 {
		runs = append(runs, current)
	}
	return runs
}

// disciplineScore sums five weighted factors into a 0-100 composite.
func disciplineScore(clustering, excusedPct float64, incidents, maxStreak, singleAbs int) int {
	score := 0

	// Clustered absences imply valid causes (30 points).
	switch {
	case clustering >= 70:
		score += 30
	case clustering >= 40:
		score += 15
	}

	// Excuse rate (25 points).
	switch {
	case excusedPct >= 80:
		score += 25
	case excusedPct >= 50:
		score += 15
	case excusedPct >= 30:
		score += 5
	}

	// Incident count (20 points).
	switch {
	case incidents == 0:
		score += 20
	case incidents <= 2:
		score += 15
	case incidents <= 4:
		score += 5
	}

	// Longest streak (15 points).
	switch {
	case maxStreak <= 3:
		score += 15
	case maxStreak <= 5:
		score += 10
	case maxStreak <= 7:
		score += 5
	}

	// Isolated absences (10 points).
	switch {
	case singleAbs == 0:
		score += 10
	case singleAbs <= 2:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// classify evaluates the classification rules in documented precedence order:
// the regular rule first, then the highly-irregular rule, then the
// moderately-irregular default.
func classify(clustering, excusedPct float64, incidents, maxStreak, singleAbs int) attendance.ConsistencyLabel {
	rules := []struct {
		match   bool
		outcome attendance.ConsistencyLabel
	}{
		{
			clustering >= clusteringRegularMin &&
				excusedPct >= excusedRegularMin &&
				incidents <= incidentsRegularMax &&
				maxStreak <= maxStreakRegularMax &&
				singleAbs <= singleRegularMax,
			attendance.ConsistencyRegular,
		},
		{
			clustering < clusteringIrregularLt ||
				excusedPct < excusedIrregularLt ||
				singleAbs > singleIrregularGt ||
				(maxStreak > maxStreakSevere && excusedPct < 50),
			attendance.ConsistencyHighlyIrregular,
		},
	}
	for _, r := range rules {
		if r.match {
			return r.outcome
		}
	}
	return attendance.ConsistencyModeratelyIrregular
}

func message(label attendance.ConsistencyLabel, clustering, excusedPct float64, incidents, maxStreak int) string {
	switch label {
	case attendance.ConsistencyRegular:
		switch incidents {
		case 0:
			return "Student shows consistent attendance with well-distributed absences. Pattern indicates disciplined behavior."
		case 1:
			return "Student shows consistent attendance with one valid absence period. Overall pattern is regular and reliable."
		default:
			return "Student shows consistent attendance. Multiple absence periods are all valid with proper reasons. Disciplined behavior."
		}
	case attendance.ConsistencyModeratelyIrregular:
		if maxStreak > maxStreakRegularMax {
			return fmt.Sprintf(
				"Student had one extended absence period (%d sessions). While excused, the length is concerning and affects consistency. Consider academic support upon return.",
				maxStreak)
		}
		if excusedPct >= 50 {
			return "Student shows moderately irregular attendance. Had valid absence periods but also has some random absences without valid reasons."
		}
		return "Student shows moderately irregular attendance with mixed behavior. Some absences are valid but pattern shows inconsistency."
	default:
		if clustering < clusteringIrregularLt {
			return "Student shows highly irregular attendance with scattered absences. Pattern suggests lack of commitment or discipline. No clear reason for absences."
		}
		if excusedPct < excusedIrregularLt {
			return "Student shows highly irregular attendance. Most absences lack valid reasons, indicating poor discipline and commitment."
		}
		return "Student shows extremely irregular attendance pattern. Combination of frequent absences and inconsistent behavior indicates severe discipline issues. Immediate intervention required."
	}
}

func addNotes(result *Result, clustering, excusedPct float64, incidents, maxStreak, singleAbs int, overall float64, total int) {
	if clustering >= 70 {
		result.Notes = append(result.Notes, "✓ Most absences are clustered (valid reasons)")
	}

	if excusedPct >= 80 {
		result.Notes = append(result.Notes, fmt.Sprintf("✓ %.0f%% of absences are excused", round0(excusedPct)))
	} else if excusedPct >= 50 {
		result.Notes = append(result.Notes, fmt.Sprintf("✓ %.0f%% of absences have valid reasons", round0(excusedPct)))
	}

	if incidents == 0 {
		result.Notes = append(result.Notes, "✓ No consecutive absence streaks (well distributed)")
	} else if incidents == 1 {
		result.Notes = append(result.Notes, "✓ Only one absence period (likely valid reason)")
	}

	if overall >= 90 {
		result.Notes = append(result.Notes, fmt.Sprintf("✓ Excellent overall attendance: %.1f%%", round1(overall)))
	} else if overall >= 75 {
		result.Notes = append(result.Notes, fmt.Sprintf("✓ Good overall attendance: %.1f%%", round1(overall)))
	}

	if clustering < 30 {
		result.Notes = append(result.Notes, "⚠️ All absences are scattered (no clustering)")
	}

	if excusedPct < 30 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ Only %.0f%% of absences are excused (no valid reasons)", round0(excusedPct)))
	}

	if singleAbs > 5 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ %d single absences indicate random bunking", singleAbs))
	} else if singleAbs > 2 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ %d single absences without valid reasons", singleAbs))
	}

	if maxStreak > 7 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ Very long absence streak (%d sessions)", maxStreak))
	} else if maxStreak > 4 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ Long absence streak (%d sessions)", maxStreak))
	}

	if incidents > 3 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ %d separate absence incidents (health concerns?)", incidents))
	}

	if overall < 75 {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ Attendance below 75%% threshold (%.1f%%)", round1(overall)))
	}

	if total < attendance.MediumConfidenceSessions {
		result.Notes = append(result.Notes, fmt.Sprintf(
			"⚠️ Only %d sessions available. Analysis is less reliable with fewer than 10 sessions.", total))
	}
}

func addWarnings(result *Result, overall float64, maxStreak, incidents int) {
	if overall < 50 {
		result.Warnings = append(result.Warnings, "CRITICAL: Attendance below 50%")
		result.Warnings = append(result.Warnings, "Risk of academic failure")
	} else if overall < 75 {
		result.Warnings = append(result.Warnings, "Below 75% threshold - at risk")
	}

	if maxStreak >= 8 {
		result.Warnings = append(result.Warnings, "Extended absence - academic intervention needed")
	}

	if incidents > 3 {
		result.Warnings = append(result.Warnings, "Multiple medical leaves - consider health support")
	}
}

func addRecommendations(result *Result, label attendance.ConsistencyLabel, overall float64, singleAbs int) {
	switch label {
	case attendance.ConsistencyRegular:
		result.Recommendations = append(result.Recommendations, "Continue current positive attendance pattern")
	case attendance.ConsistencyModeratelyIrregular:
		result.Recommendations = append(result.Recommendations, "Monitor for improvement")
		if singleAbs > 0 {
			result.Recommendations = append(result.Recommendations, "Reduce random absences")
		}
	default:
		result.Recommendations = append(result.Recommendations, "Immediate counseling session required")
		if overall < 50 {
			result.Recommendations = append(result.Recommendations, "Parent/guardian notification")
			result.Recommendations = append(result.Recommendations, "Academic probation consideration")
		}
		result.Recommendations = append(result.Recommendations, "Investigate underlying issues")
	}
}

func round0(v float64) float64 { return math.Round(v) }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
