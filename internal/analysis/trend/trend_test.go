package trend

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// history builds a chronological record list from a status string, one rune
// per session: 'P' present, 'A' absent, 'E' excused absence. Dates start at
// 2025-01-01 and advance one day per session.
func history(pattern string) []attendance.Record {
	records := make([]attendance.Record, 0, len(pattern))
	for i, ch := range pattern {
		r := attendance.Record{
			SessionDate: fmt.Sprintf("2025-01-%02d", i+1),
		}
		switch ch {
		case 'P':
			r.Status = attendance.StatusPresent
		case 'A':
			r.Status = attendance.StatusAbsent
		case 'E':
			r.Status = attendance.StatusAbsent
			r.ReasonType = "medical"
		}
		records = append(records, r)
	}
	return records
}

func TestAnalyze_NoData(t *testing.T) {
	result := New().Analyze(nil)

	if result.Trend != attendance.TrendNoData {
		t.Errorf("Expected no_data trend, got %s", result.Trend)
	}
	if result.Confidence != attendance.ConfidenceNone {
		t.Errorf("Expected none confidence, got %s", result.Confidence)
	}
	if result.Metrics.MinimumRequired != attendance.MinSessionsForAnalysis {
		t.Errorf("Expected minimum_required %d, got %d",
			attendance.MinSessionsForAnalysis, result.Metrics.MinimumRequired)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a warning for empty history")
	}
}

func TestAnalyze_EarlyStage(t *testing.T) {
	result := New().Analyze(history("PPA"))

	if result.Trend != attendance.TrendStable {
		t.Errorf("Expected stable trend in early stage, got %s", result.Trend)
	}
	if result.Metrics.TotalSessions != 3 {
		t.Errorf("Expected 3 sessions, got %d", result.Metrics.TotalSessions)
	}
	if !strings.Contains(result.Message, "Early stage") {
		t.Errorf("Expected early-stage message, got %q", result.Message)
	}
	// 2 of 3 attended
	if result.Metrics.OverallPercentage != 66.67 {
		t.Errorf("Expected overall 66.67, got %f", result.Metrics.OverallPercentage)
	}
}

func TestAnalyze_Improving(t *testing.T) {
	// First half 40%, second half 100%
	result := New().Analyze(history("AAAPP" + "PPPPP"))

	if result.Trend != attendance.TrendImproving {
		t.Errorf("Expected improving trend, got %s", result.Trend)
	}
	if result.Metrics.FirstHalfPercentage != 40.0 {
		t.Errorf("Expected first half 40.0, got %f", result.Metrics.FirstHalfPercentage)
	}
	if result.Metrics.SecondHalfPercentage != 100.0 {
		t.Errorf("Expected second half 100.0, got %f", result.Metrics.SecondHalfPercentage)
	}
	if result.Metrics.PercentageChange != 60.0 {
		t.Errorf("Expected change 60.0, got %f", result.Metrics.PercentageChange)
	}
}

func TestAnalyze_Declining(t *testing.T) {
	result := New().Analyze(history("PPPPP" + "AAAAP"))

	if result.Trend != attendance.TrendDeclining {
		t.Errorf("Expected declining trend, got %s", result.Trend)
	}
	if !strings.Contains(result.Message, "declining") {
		t.Errorf("Expected declining message, got %q", result.Message)
	}
}

func TestAnalyze_StableWithinThreshold(t *testing.T) {
	// Both halves 80%, change 0
	result := New().Analyze(history("PPPPA" + "PPPPA"))

	if result.Trend != attendance.TrendStable {
		t.Errorf("Expected stable trend, got %s", result.Trend)
	}
	if result.Metrics.PercentageChange != 0 {
		t.Errorf("Expected zero change, got %f", result.Metrics.PercentageChange)
	}
}

func TestAnalyze_ExactThresholdIsStable(t *testing.T) {
	// First half 50%, second half 60%: change exactly +10 stays stable
	result := New().Analyze(history("PAPAPAPAPA" + "PPAPAPAPAP"))

	if result.Metrics.PercentageChange != 10.0 {
		t.Fatalf("Test setup wrong: expected change 10.0, got %f", result.Metrics.PercentageChange)
	}
	if result.Trend != attendance.TrendStable {
		t.Errorf("Change of exactly +10 should be stable, got %s", result.Trend)
	}
}

func TestAnalyze_ExcusedCountsAsAttended(t *testing.T) {
	withExcused := New().Analyze(history("EEEEE" + "PPPPP"))
	withAbsent := New().Analyze(history("AAAAA" + "PPPPP"))

	if withExcused.Trend != attendance.TrendStable {
		t.Errorf("Excused absences should count as attended, got %s", withExcused.Trend)
	}
	if withAbsent.Trend != attendance.TrendImproving {
		t.Errorf("Unexcused absences should not count, got %s", withAbsent.Trend)
	}
}

func TestAnalyze_WindowCap(t *testing.T) {
	// 30 sessions; only the most recent 20 should be considered
	result := New().Analyze(history(strings.Repeat("A", 10) + strings.Repeat("P", 20)))

	if result.Metrics.TotalSessions != WindowSize {
		t.Errorf("Expected window of %d sessions, got %d", WindowSize, result.Metrics.TotalSessions)
	}
	if result.Metrics.OverallPercentage != 100.0 {
		t.Errorf("Window should contain only the 20 present sessions, got %f%%",
			result.Metrics.OverallPercentage)
	}
}

func TestAnalyze_AbsenceStreak(t *testing.T) {
	result := New().Analyze(history("PPPPPPP" + "AAA"))

	if result.Metrics.ConsecutiveAbsenceStreak != 3 {
		t.Errorf("Expected streak 3, got %d", result.Metrics.ConsecutiveAbsenceStreak)
	}

	found := false
	for _, note := range result.Notes {
		if strings.Contains(note, "absence streak") {
			found = true
		}
	}
	if !found {
		t.Error("Expected an absence streak note")
	}
}

func TestAnalyze_StreakSpansFullHistory(t *testing.T) {
	// 25 straight absences after one present session: the 20-session
	// analysis window must not truncate the reported streak
	result := New().Analyze(history("P" + strings.Repeat("A", 25)))

	if result.Metrics.TotalSessions != WindowSize {
		t.Fatalf("Expected window of %d sessions, got %d", WindowSize, result.Metrics.TotalSessions)
	}
	if result.Metrics.ConsecutiveAbsenceStreak != 25 {
		t.Errorf("Expected streak 25, got %d", result.Metrics.ConsecutiveAbsenceStreak)
	}
}

func TestAnalyze_ExcusedCountsInStreak(t *testing.T) {
	// Streak follows the recorded status, so excused absences extend it even
	// though they count as attended for the percentages
	result := New().Analyze(history("PPPPPP" + "AAEA"))

	if result.Metrics.ConsecutiveAbsenceStreak != 4 {
		t.Errorf("Expected streak 4, got %d", result.Metrics.ConsecutiveAbsenceStreak)
	}
}

func TestAnalyze_ConfidenceLadder(t *testing.T) {
	testCases := []struct {
		sessions int
		expected attendance.Confidence
	}{
		{5, attendance.ConfidenceLow},
		{9, attendance.ConfidenceLow},
		{10, attendance.ConfidenceMedium},
		{14, attendance.ConfidenceMedium},
		{15, attendance.ConfidenceHigh},
		{20, attendance.ConfidenceHigh},
	}

	for _, tc := range testCases {
		result := New().Analyze(history(strings.Repeat("P", tc.sessions)))
		if result.Confidence != tc.expected {
			t.Errorf("%d sessions: expected %s confidence, got %s",
				tc.sessions, tc.expected, result.Confidence)
		}
	}
}

func TestAnalyze_InvalidDatesWarnButDoNotFail(t *testing.T) {
	records := history("PPPPPPPPPP")
	records[0].SessionDate = "not-a-date"

	result := New().Analyze(records)

	if result.Trend == attendance.TrendNoData {
		t.Error("Invalid date should not abort analysis")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "invalid dates") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected invalid-date warning, got %v", result.Warnings)
	}
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	records := history("AAPPP")
	first := records[0].SessionDate

	New().Analyze(records)

	if records[0].SessionDate != first {
		t.Error("Analyze mutated the input slice")
	}
}

func TestAnalyze_VolatilityBounds(t *testing.T) {
	perfect := New().Analyze(history(strings.Repeat("P", 10)))
	if perfect.Metrics.VolatilityScore != 0 {
		t.Errorf("Uniform attendance should have zero volatility, got %f",
			perfect.Metrics.VolatilityScore)
	}

	alternating := New().Analyze(history("PAPAPAPAPA"))
	if alternating.Metrics.VolatilityScore != 0.5 {
		t.Errorf("Alternating attendance should have volatility 0.5, got %f",
			alternating.Metrics.VolatilityScore)
	}
}

func TestAttendedPercent_Empty(t *testing.T) {
	if pct := attendedPercent(nil); pct != 0 {
		t.Errorf("Expected 0 for empty records, got %f", pct)
	}
}
