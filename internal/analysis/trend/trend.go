// Package trend implements the sliding-window attendance trend stage.
// It classifies a student's trajectory as improving, stable, or declining by
// comparing the first and second half of the most recent session window.
package trend

import (
	"fmt"
	"math"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// Decision thresholds for the trend stage. The change threshold is exact:
// +/-10 percentage points between window halves, no hysteresis.
const (
	WindowSize      = 20
	ChangeThreshold = 10.0

	recentMomentumSessions = 3
	streakNoteThreshold    = 3
	strongMomentumPct      = 80.0
	weakMomentumPct        = 33.0
	highVolatility         = 0.4
	lowVolatility          = 0.2
	belowTargetPct         = 75.0
	excellentPct           = 90.0
)

// Metrics carries the named numeric features of a trend result. Early-stage
// and no-data variants populate only the total, overall percentage, and
// minimum-required fields.
type Metrics struct {
	TotalSessions            int                   `json:"total_sessions"`
	OverallPercentage        float64               `json:"overall_percentage"`
	MinimumRequired          int                   `json:"minimum_required,omitempty"`
	WindowPercentage         float64               `json:"window_percentage,omitempty"`
	FirstHalfPercentage      float64               `json:"first_half_percentage"`
	FirstHalfSessions        int                   `json:"first_half_sessions,omitempty"`
	SecondHalfPercentage     float64               `json:"second_half_percentage"`
	SecondHalfSessions       int                   `json:"second_half_sessions,omitempty"`
	PercentageChange         float64               `json:"percentage_change"`
	RecentMomentum           float64               `json:"recent_momentum"`
	RecentSessionsCount      int                   `json:"recent_sessions_count,omitempty"`
	ConsecutiveAbsenceStreak int                   `json:"consecutive_absence_streak"`
	VolatilityScore          float64               `json:"volatility_score"`
	TimeSpanDays             int                   `json:"time_span_days"`
	ConfidenceLevel          attendance.Confidence `json:"confidence_level,omitempty"`
}

// Result is the trend stage output.
type Result struct {
	Trend      attendance.TrendLabel `json:"trend"`
	Confidence attendance.Confidence `json:"confidence"`
	Metrics    Metrics               `json:"metrics"`
	Message    string                `json:"message"`
	Notes      []string              `json:"notes"`
	Warnings   []string              `json:"warnings"`
}

// Analyzer computes attendance trend over a bounded recent window.
// It is stateless and safe for concurrent use.
type Analyzer struct{}

// New returns a trend analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze classifies the trend over the most recent min(20, N) records.
// Records are re-sorted internally; input order does not matter and the
// input slice is never mutated.
func (a *Analyzer) Analyze(records []attendance.Record) Result {
	sorted := attendance.SortRecentFirst(records)
	recent := sorted
	if len(recent) > WindowSize {
		recent = recent[:WindowSize]
	}
	total := len(recent)

	result := Result{
		Trend:      attendance.TrendStable,
		Confidence: attendance.ConfidenceNone,
		Notes:      []string{},
		Warnings:   []string{},
	}

	if total == 0 {
		result.Trend = attendance.TrendNoData
		result.Metrics = Metrics{MinimumRequired: attendance.MinSessionsForAnalysis}
		result.Message = "No attendance records found. Attendance has not been taken yet for this subject."
		result.Notes = append(result.Notes, "⚠️ No attendance data available")
		result.Notes = append(result.Notes, "Trend analysis will begin after first attendance session")
		result.Warnings = append(result.Warnings, "No attendance records found")
		return result
	}

	overall := attendedPercent(recent)

	if total < attendance.MinSessionsForAnalysis {
		result.Metrics = Metrics{
			TotalSessions:     total,
			OverallPercentage: round2(overall),
			MinimumRequired:   attendance.MinSessionsForAnalysis,
		}
		result.Message = fmt.Sprintf(
			"Early stage: Only %d session(s) recorded. Trend analysis will be available after 5 sessions. Current attendance: %.1f%%.",
			total, round1(overall))
		result.Notes = append(result.Notes, "✓ Attendance tracking started")
		result.Notes = append(result.Notes, fmt.Sprintf("Current attendance: %.1f%%", round1(overall)))
		result.Warnings = append(result.Warnings, "Need at least 5 sessions for reliable trend analysis")
		return result
	}

	m := Metrics{
		TotalSessions:     total,
		OverallPercentage: round2(overall),
		WindowPercentage:  round2(overall),
	}

	// Chronological split at the midpoint (oldest first).
	chronological := make([]attendance.Record, total)
	for i, r := range recent {
		chronological[total-1-i] = r
	}
	mid := total / 2
	firstHalf := chronological[:mid]
	secondHalf := chronological[mid:]

	firstPct := attendedPercent(firstHalf)
	secondPct := attendedPercent(secondHalf)
	change := secondPct - firstPct

	m.FirstHalfPercentage = round2(firstPct)
	m.FirstHalfSessions = len(firstHalf)
	m.SecondHalfPercentage = round2(secondPct)
	m.SecondHalfSessions = len(secondHalf)
	m.PercentageChange = round2(change)

	recentN := recentMomentumSessions
	if total < recentN {
		recentN = total
	}
	momentum := attendedPercent(recent[:recentN])
	m.RecentMomentum = round2(momentum)
	m.RecentSessionsCount = recentN

	// The streak walks the full sorted history, not the capped window: a run
	// longer than the window still reports its true length.
	streak := 0
	for _, r := range sorted {
		if r.Status != attendance.StatusAbsent {
			break
		}
		streak++
	}
	m.ConsecutiveAbsenceStreak = streak

	volatility := attendedStdDev(recent)
	m.VolatilityScore = round4(volatility)

	m.TimeSpanDays = timeSpanDays(chronological, &result)

	conf := attendance.ConfidenceForSessions(total)
	result.Confidence = conf
	m.ConfidenceLevel = conf

	if total < attendance.MediumConfidenceSessions {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Only %d sessions available. Trend calculation is less reliable with fewer than 10 sessions.", total))
	}

	switch {
	case change > ChangeThreshold:
		result.Trend = attendance.TrendImproving
		result.Message = fmt.Sprintf(
			"Attendance is improving! Second half (%.1f%%) is %.1f%% higher than first half (%.1f%%).",
			secondPct, change, firstPct)
	case change < -ChangeThreshold:
		result.Trend = attendance.TrendDeclining
		result.Message = fmt.Sprintf(
			"Attendance is declining. Second half (%.1f%%) is %.1f%% lower than first half (%.1f%%).",
			secondPct, math.Abs(change), firstPct)
	default:
		result.Trend = attendance.TrendStable
		result.Message = fmt.Sprintf(
			"Attendance is stable. Change between halves is %.1f%%, within ±10%% threshold.", change)
	}

	if streak >= streakNoteThreshold {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ Currently on a %d-session absence streak", streak))
	}
	if momentum >= strongMomentumPct {
		result.Notes = append(result.Notes, fmt.Sprintf(
			"✓ Strong recent momentum: %.0f%% attendance in last %d sessions", momentum, recentN))
	} else if momentum <= weakMomentumPct {
		result.Notes = append(result.Notes, fmt.Sprintf(
			"⚠️ Weak recent momentum: %.0f%% attendance in last %d sessions", momentum, recentN))
	}
	if volatility > highVolatility {
		result.Notes = append(result.Notes, "⚠️ High volatility detected: Attendance pattern is irregular")
	} else if volatility < lowVolatility {
		result.Notes = append(result.Notes, "✓ Low volatility: Attendance pattern is consistent")
	}
	if overall < belowTargetPct {
		result.Notes = append(result.Notes, fmt.Sprintf("⚠️ Overall attendance (%.1f%%) is below 75%% threshold", overall))
	} else if overall >= excellentPct {
		result.Notes = append(result.Notes, fmt.Sprintf("✓ Excellent overall attendance: %.1f%%", overall))
	}

	result.Metrics = m
	return result
}

// timeSpanDays computes the day span between the oldest and newest window
// record, appending a warning when dates cannot be parsed.
func timeSpanDays(chronological []attendance.Record, result *Result) int {
	if len(chronological) < 2 {
		return 0
	}
	oldest, err1 := chronological[0].Date()
	newest, err2 := chronological[len(chronological)-1].Date()
	if err1 != nil || err2 != nil {
		result.Warnings = append(result.Warnings, "Could not calculate time span due to invalid dates")
		return 0
	}
	return int(newest.Sub(oldest).Hours() / 24)
}

func attendedPercent(records []attendance.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		if r.Attended() {
			n++
		}
	}
	return float64(n) / float64(len(records)) * 100
}

// attendedStdDev is the population standard deviation of the 0/1 attended
// indicator over the window.
func attendedStdDev(records []attendance.Record) float64 {
	if len(records) <= 1 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		if r.Attended() {
			sum++
		}
	}
	mean := sum / float64(len(records))
	variance := 0.0
	for _, r := range records {
		x := 0.0
		if r.Attended() {
			x = 1
		}
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(records))
	return math.Sqrt(variance)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
