package features

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// history builds a chronological record list: 'P' present, 'A' absent,
// 'E' excused absence. Dates advance one day from 2025-01-01.
func history(pattern string) []attendance.Record {
	records := make([]attendance.Record, 0, len(pattern))
	for i, ch := range pattern {
		day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		r := attendance.Record{SessionDate: day.Format(attendance.DateLayout)}
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

func extract(records []attendance.Record, planned int) *Set {
	return NewExtractor().Extract(Input{
		Records: records,
		Planned: planned,
		AsOf:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
}

func TestNames_CountAndUniqueness(t *testing.T) {
	names := Names()

	if len(names) != Count {
		t.Fatalf("Expected %d feature names, got %d", Count, len(names))
	}

	seen := make(map[string]int)
	for _, name := range names {
		seen[name]++
	}
	// The training manifest deliberately repeats the remaining-sessions value
	// under a second name; every other name is unique
	for name, n := range seen {
		if n > 1 && name != "sessions_remaining_duplicate" {
			t.Errorf("Feature name %q appears %d times", name, n)
		}
	}
}

func TestNames_AnchorPositions(t *testing.T) {
	names := Names()

	anchors := map[int]string{
		0:  "current_attendance_percentage",
		7:  "trend_direction",
		31: "total_sessions_planned",
		38: "failure_certainty",
		44: "relative_performance_trend",
	}
	for idx, expected := range anchors {
		if names[idx] != expected {
			t.Errorf("Feature %d: expected %q, got %q", idx, expected, names[idx])
		}
	}
}

func TestVector_LengthMatchesManifest(t *testing.T) {
	set := extract(history("PPAPP"), 80)

	vector := set.Vector()
	if len(vector) != Count {
		t.Fatalf("Vector has %d values, manifest has %d", len(vector), Count)
	}
}

func TestExtract_CurrentState(t *testing.T) {
	set := extract(history("PPPAAE"), 80)

	if set.TotalSessions != 6 {
		t.Errorf("Expected 6 total, got %f", set.TotalSessions)
	}
	if set.PresentCount != 3 {
		t.Errorf("Expected 3 present, got %f", set.PresentCount)
	}
	if set.AbsentCount != 3 {
		t.Errorf("Expected 3 absent, got %f", set.AbsentCount)
	}
	if set.ExcusedAbsences != 1 {
		t.Errorf("Expected 1 excused, got %f", set.ExcusedAbsences)
	}
	if set.UnexcusedAbsences != 2 {
		t.Errorf("Expected 2 unexcused, got %f", set.UnexcusedAbsences)
	}
	if set.CurrentAttendance != 50.0 {
		t.Errorf("Expected 50%% attendance, got %f", set.CurrentAttendance)
	}
}

func TestExtract_DefaultsWithoutStageResults(t *testing.T) {
	set := extract(history("PPPPP"), 80)

	if set.TrendStrength != 0.5 {
		t.Errorf("Expected default trend strength 0.5, got %f", set.TrendStrength)
	}
	if set.ConsistencyScore != 0.5 {
		t.Errorf("Expected default consistency 0.5, got %f", set.ConsistencyScore)
	}
	if set.AttentivenessLevel != 0.5 {
		t.Errorf("Expected default attentiveness 0.5, got %f", set.AttentivenessLevel)
	}
	if set.AvgAttentivenessScore != 2.0 {
		t.Errorf("Expected default avg attentiveness 2.0, got %f", set.AvgAttentivenessScore)
	}
	if set.ClassAverage != 75.0 {
		t.Errorf("Expected default class average 75, got %f", set.ClassAverage)
	}
	if set.PeerRankPercentile != 50.0 {
		t.Errorf("Expected default peer rank 50, got %f", set.PeerRankPercentile)
	}
}

func TestExtract_RecentRates(t *testing.T) {
	// 10 sessions: first five absent, last five present
	set := extract(history("AAAAAPPPPP"), 80)

	if set.Recent5Rate != 100.0 {
		t.Errorf("Expected recent-5 rate 100, got %f", set.Recent5Rate)
	}
	if set.Recent10Rate != 50.0 {
		t.Errorf("Expected recent-10 rate 50, got %f", set.Recent10Rate)
	}
	// Slope: (100 - 0) / 5 = 20
	if set.TrendSlope != 20.0 {
		t.Errorf("Expected slope 20, got %f", set.TrendSlope)
	}
	if set.RecentVsOverallDiff != 50.0 {
		t.Errorf("Expected recent-vs-overall 50, got %f", set.RecentVsOverallDiff)
	}
}

func TestExtract_SlopeRequiresTenSessions(t *testing.T) {
	set := extract(history("AAAPPPPP"), 80)

	if set.TrendSlope != 0 {
		t.Errorf("Slope needs 10 sessions, got %f", set.TrendSlope)
	}
	if set.TrendAcceleration != 0 {
		t.Errorf("Acceleration needs 15 sessions, got %f", set.TrendAcceleration)
	}
}

func TestExtract_RecoveryAboveThreshold(t *testing.T) {
	// 18 of 20 present = 90%, 60 remaining of 80 planned
	set := extract(history(strings.Repeat("P", 18)+"AA"), 80)

	if set.CurrentAttendance != 90.0 {
		t.Fatalf("Expected 90%% attendance, got %f", set.CurrentAttendance)
	}
	if set.RecoveryPossible != 1 {
		t.Errorf("Recovery should be possible, got %f", set.RecoveryPossible)
	}
	// ceil(0.75*80 - 18) = 42 sessions still needed in total
	if set.SessionsNeeded != 42 {
		t.Errorf("Expected 42 sessions needed, got %f", set.SessionsNeeded)
	}
	if set.RecoveryDifficulty != 0.5 {
		t.Errorf("42 of 60 remaining is the middle tier, got %f", set.RecoveryDifficulty)
	}
	if set.TimePressure != 0 {
		t.Errorf("No time pressure above threshold, got %f", set.TimePressure)
	}
}

func TestExtract_RecoveryImpossible(t *testing.T) {
	// 2 of 70 present with 80 planned: best possible (2+10)/80 = 15%
	set := extract(history("PP"+strings.Repeat("A", 68)), 80)

	if set.RecoveryPossible != 0 {
		t.Errorf("Recovery should be impossible, got %f", set.RecoveryPossible)
	}
	if set.BestPossible != 15.0 {
		t.Errorf("Expected best possible 15, got %f", set.BestPossible)
	}
	if set.RecoveryDifficulty != -1 {
		t.Errorf("Expected difficulty -1, got %f", set.RecoveryDifficulty)
	}
	if set.FailureCertainty != 1 {
		t.Errorf("Expected failure certainty 1, got %f", set.FailureCertainty)
	}
}

func TestExtract_FailureCertaintyBands(t *testing.T) {
	// 100% attendance, 20 of 80 done: buffer 25, maxAbsences floor(15)=15,
	// remaining 60, 15 >= 18? no; 15 >= 0.5*60? no; >= 0.3*60=18? no -> 0.3
	perfect := extract(history(strings.Repeat("P", 20)), 80)
	if perfect.FailureCertainty != 0.3 {
		t.Errorf("Expected certainty 0.3 for thin early buffer, got %f", perfect.FailureCertainty)
	}

	// 40 of 40 present: buffer 25, remaining 40, maxAbsences 10, 10 >= 20? no;
	// 10 >= 12? no -> 0.3
	later := extract(history(strings.Repeat("P", 40)), 80)
	if later.FailureCertainty != 0.3 {
		t.Errorf("Expected certainty 0.3, got %f", later.FailureCertainty)
	}
}

func TestExtract_TemporalPhases(t *testing.T) {
	testCases := []struct {
		sessions int
		phase    float64
	}{
		{10, 0},   // 12.5% progress
		{40, 0.5}, // 50% progress
		{70, 1},   // 87.5% progress
	}

	for _, tc := range testCases {
		set := extract(history(strings.Repeat("P", tc.sessions)), 80)
		if set.SemesterPhase != tc.phase {
			t.Errorf("%d sessions: expected phase %f, got %f", tc.sessions, tc.phase, set.SemesterPhase)
		}
	}
}

func TestExtract_WeeksSinceEnrollmentUsesAsOf(t *testing.T) {
	records := history("PPPPP") // starts 2025-01-01
	asOf := time.Date(2025, 1, 29, 0, 0, 0, 0, time.UTC)

	set := NewExtractor().Extract(Input{Records: records, Planned: 80, AsOf: asOf})
	if set.WeeksSinceEnrollment != 4.0 {
		t.Errorf("Expected 4 weeks, got %f", set.WeeksSinceEnrollment)
	}

	// Without AsOf the session-count fallback is used
	fallback := NewExtractor().Extract(Input{Records: records, Planned: 80})
	if fallback.WeeksSinceEnrollment != 2.5 {
		t.Errorf("Expected fallback N/2 = 2.5 weeks, got %f", fallback.WeeksSinceEnrollment)
	}
}

func TestExtract_ClassContext(t *testing.T) {
	student := history("PAPPPPPPPP") // 90%, absent on day 2

	day2 := "2025-01-02"
	class := &attendance.ClassSnapshot{
		Sessions: map[string]attendance.SessionStat{
			day2: {TotalStudents: 10, PresentCount: 8, AbsentCount: 2},
		},
		Students: []attendance.StudentHistory{
			{ID: "s1", Records: student},
			{ID: "s2", Records: history("PPPPPPPPPP")}, // 100%
			{ID: "s3", Records: history("PAAAAAAAAA")}, // 10%
			{ID: "s4", Records: history("PPPPPAAAAA")}, // 50%
		},
	}

	set := NewExtractor().Extract(Input{
		Records: student,
		Class:   class,
		Planned: 80,
		AsOf:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	// Class mean of 90, 100, 10, 50
	if set.ClassAverage != 62.5 {
		t.Errorf("Expected class average 62.5, got %f", set.ClassAverage)
	}
	if set.StudentVsClassDiff != 27.5 {
		t.Errorf("Expected diff 27.5, got %f", set.StudentVsClassDiff)
	}
	// Two peers strictly below 90%
	if set.PeerRankPercentile != 50.0 {
		t.Errorf("Expected peer rank 50, got %f", set.PeerRankPercentile)
	}
	if set.BelowClassAverage != 0 {
		t.Errorf("Student is above average, got %f", set.BelowClassAverage)
	}
	// Absent only on day 2, where class rate was 80%
	if set.ClassAttOnAbsentDays != 80.0 {
		t.Errorf("Expected class rate 80 on absent days, got %f", set.ClassAttOnAbsentDays)
	}
}

func TestExtract_RelativeTrendNeedsPeers(t *testing.T) {
	student := history("AAAAAPPPPP") // improving

	solo := NewExtractor().Extract(Input{
		Records: student,
		Class: &attendance.ClassSnapshot{
			Students: []attendance.StudentHistory{
				{ID: "s2", Records: history("PPP")}, // under 10 records
			},
		},
		Planned: 80,
		AsOf:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if solo.RelativePerformanceTr != 0 {
		t.Errorf("No qualifying peers should leave relative trend 0, got %f",
			solo.RelativePerformanceTr)
	}

	withPeer := NewExtractor().Extract(Input{
		Records: student,
		Class: &attendance.ClassSnapshot{
			Students: []attendance.StudentHistory{
				{ID: "s2", Records: history("AAAAAAAAAA")}, // 0%, 10 records
			},
		},
		Planned: 80,
		AsOf:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	// Student improving and above the class average
	if withPeer.RelativePerformanceTr != 1 {
		t.Errorf("Expected relative trend 1, got %f", withPeer.RelativePerformanceTr)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	records := history("PAPPAPPPAP")
	asOf := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	a := NewExtractor().Extract(Input{Records: records, Planned: 80, AsOf: asOf}).Vector()
	b := NewExtractor().Extract(Input{Records: records, Planned: 80, AsOf: asOf}).Vector()

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("Feature %d differs between identical runs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestExtract_OrderInsensitive(t *testing.T) {
	records := history("PAPPAPPPAP")
	reversed := make([]attendance.Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}
	asOf := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	a := NewExtractor().Extract(Input{Records: records, Planned: 80, AsOf: asOf}).Vector()
	b := NewExtractor().Extract(Input{Records: reversed, Planned: 80, AsOf: asOf}).Vector()

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("Feature %d depends on input order: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestTail(t *testing.T) {
	records := history("PPPPP")

	if got := len(tail(records, 3)); got != 3 {
		t.Errorf("Expected tail of 3, got %d", got)
	}
	if got := len(tail(records, 10)); got != 5 {
		t.Errorf("Tail larger than input returns everything, got %d", got)
	}

	last := tail(records, 2)
	if last[0].SessionDate != "2025-01-04" {
		t.Errorf("Tail should keep the most recent records, got %s", last[0].SessionDate)
	}
}

func TestExtract_ZeroPlannedTreatedAsOne(t *testing.T) {
	set := extract(history("P"), 0)

	if set.TotalPlanned != 1 {
		t.Errorf("Expected planned clamped to 1, got %f", set.TotalPlanned)
	}
	if set.SemesterProgress != 1 {
		t.Errorf("Expected progress 1, got %f", set.SemesterProgress)
	}
}

func TestExtract_VarianceOnlyAfterFiveSessions(t *testing.T) {
	small := extract(history("PAPA"), 80)
	if small.AttendanceVariance != 0 {
		t.Errorf("Variance needs 5 sessions, got %f", small.AttendanceVariance)
	}

	enough := extract(history("PAPAPA"), 80)
	if enough.AttendanceVariance != 50.0 {
		t.Errorf("Expected variance 50 for alternating pattern, got %f", enough.AttendanceVariance)
	}
}

func TestHistoryHelper(t *testing.T) {
	records := history("PAE")

	if !records[0].IsPresent() {
		t.Error("P should be present")
	}
	if records[1].IsPresent() || records[1].IsExcused() {
		t.Error("A should be unexcused absent")
	}
	if !records[2].IsExcused() {
		t.Error("E should be excused")
	}
	if records[0].SessionDate != "2025-01-01" {
		t.Errorf("Unexpected first date %s", records[0].SessionDate)
	}
	_ = fmt.Sprintf("%v", records)
}
