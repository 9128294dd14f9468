// Package features builds the fixed 45-dimensional vector consumed by the
// risk classifier. Feature order is part of the model contract and must never
// change; see names.go for the manifest.
package features

import (
	"math"
	"time"

	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/attentiveness"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/consistency"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/trend"
	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// PassThreshold is the attendance percentage a student must finish above.
const PassThreshold = 75.0

// Defaults applied when an upstream stage result or the class snapshot is
// unavailable. These mirror the values the classifier was trained with.
const (
	defaultTrendStrength      = 0.5
	defaultConsistencyScore   = 0.5
	defaultClusteringScore    = 0.5
	defaultAttentiveness      = 0.5
	defaultAvgAttentiveness   = 2.0
	defaultPositiveEmotion    = 0.3
	defaultClassAttendance    = 75.0
	defaultPeerRankPercentile = 50.0
)

// Input carries everything the extractor needs for one student. Records are
// the student's full history; stage results may be nil, in which case the
// training-time defaults are used.
type Input struct {
	Records       []attendance.Record
	Trend         *trend.Result
	Consistency   *consistency.Result
	Attentiveness *attentiveness.Result
	Class         *attendance.ClassSnapshot
	Planned       int
	AsOf          time.Time
}

// Set holds the 45 feature values under their manifest names. The recovery
// and class-context fields are also read directly by the recommendation rule
// layer, which is why this is a named struct rather than a bare slice.
type Set struct {
	// Current state
	CurrentAttendance  float64
	TotalSessions      float64
	PresentCount       float64
	AbsentCount        float64
	ExcusedAbsences    float64
	UnexcusedAbsences  float64
	AttendanceVariance float64

	// Trend
	TrendDirection      float64
	TrendStrength       float64
	Recent5Rate         float64
	Recent10Rate        float64
	TrendSlope          float64
	TrendAcceleration   float64
	RecentVsOverallDiff float64

	// Pattern
	ConsistencyScore     float64
	MaxConsecutiveAbs    float64
	AvgConsecutiveAbs    float64
	ClusteringScore      float64
	AttendanceRegularity float64
	AbsenceFrequency     float64
	AttendanceStability  float64

	// Engagement
	AttentivenessLevel       float64
	AvgAttentivenessScore    float64
	PositiveEmotionRatio     float64
	EngagementTrend          float64
	AttentivenessConsistency float64

	// Temporal
	SemesterProgress     float64
	SessionsRemaining    float64
	WeeksSinceEnrollment float64
	TimePressure         float64
	SemesterPhase        float64

	// Recovery
	TotalPlanned       float64
	RemainingDuplicate float64
	BestPossible       float64
	RecoveryPossible   float64
	SessionsNeeded     float64
	RecoveryDifficulty float64
	RecoveryMargin     float64
	FailureCertainty   float64

	// Class context
	ClassAverage          float64
	StudentVsClassDiff    float64
	ClassAttOnAbsentDays  float64
	PeerRankPercentile    float64
	BelowClassAverage     float64
	RelativePerformanceTr float64
}

// Vector returns the feature values in manifest order.
func (s *Set) Vector() []float64 {
	return []float64{
		s.CurrentAttendance, s.TotalSessions, s.PresentCount, s.AbsentCount,
		s.ExcusedAbsences, s.UnexcusedAbsences, s.AttendanceVariance,
		s.TrendDirection, s.TrendStrength, s.Recent5Rate, s.Recent10Rate,
		s.TrendSlope, s.TrendAcceleration, s.RecentVsOverallDiff,
		s.ConsistencyScore, s.MaxConsecutiveAbs, s.AvgConsecutiveAbs,
		s.ClusteringScore, s.AttendanceRegularity, s.AbsenceFrequency, s.AttendanceStability,
		s.AttentivenessLevel, s.AvgAttentivenessScore, s.PositiveEmotionRatio,
		s.EngagementTrend, s.AttentivenessConsistency,
		s.SemesterProgress, s.SessionsRemaining, s.WeeksSinceEnrollment,
		s.TimePressure, s.SemesterPhase,
		s.TotalPlanned, s.RemainingDuplicate, s.BestPossible,
		s.RecoveryPossible, s.SessionsNeeded, s.RecoveryDifficulty,
		s.RecoveryMargin, s.FailureCertainty,
		s.ClassAverage, s.StudentVsClassDiff, s.ClassAttOnAbsentDays,
		s.PeerRankPercentile, s.BelowClassAverage, s.RelativePerformanceTr,
	}
}

// Extractor builds feature sets. It is stateless and safe for concurrent use.
type Extractor struct{}

// NewExtractor returns a feature extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract builds the feature set for one student. Records are sorted
// chronologically internally; the input slice is never mutated.
func (e *Extractor) Extract(in Input) *Set {
	records := attendance.SortChronological(in.Records)
	planned := in.Planned
	if planned <= 0 {
		planned = 1
	}

	s := &Set{}
	e.currentState(s, records)
	e.trendFeatures(s, records, in.Trend)
	e.patternFeatures(s, records, in.Consistency)
	e.engagementFeatures(s, records, in.Attentiveness)
	e.temporalFeatures(s, records, planned, in.AsOf)
	e.recoveryFeatures(s, planned)
	e.classContext(s, records, in.Class)
	return s
}

func (e *Extractor) currentState(s *Set, records []attendance.Record) {
	total := len(records)
	present := 0
	excused := 0
	for _, r := range records {
		if r.IsPresent() {
			present++
		} else if r.IsExcused() {
			excused++
		}
	}
	absent := total - present

	s.TotalSessions = float64(total)
	s.PresentCount = float64(present)
	s.AbsentCount = float64(absent)
	s.ExcusedAbsences = float64(excused)
	s.UnexcusedAbsences = float64(absent - excused)
	if total > 0 {
		s.CurrentAttendance = float64(present) / float64(total) * 100
	}
	if total >= attendance.MinSessionsForAnalysis {
		s.AttendanceVariance = presentStdDev(records) * 100
	}
}

func (e *Extractor) trendFeatures(s *Set, records []attendance.Record, tr *trend.Result) {
	total := len(records)

	if tr != nil {
		switch tr.Trend {
		case attendance.TrendImproving:
			s.TrendDirection = 1
		case attendance.TrendDeclining:
			s.TrendDirection = -1
		}
	}
	s.TrendStrength = defaultTrendStrength

	s.Recent5Rate = presentRate(tail(records, 5)) * 100
	s.Recent10Rate = presentRate(tail(records, 10)) * 100

	if total >= 10 {
		mid := total / 2
		firstRate := presentRate(records[:mid]) * 100
		secondRate := presentRate(records[mid:]) * 100
		s.TrendSlope = (secondRate - firstRate) / (float64(total) / 2)
	}

	if total >= 15 {
		third := total / 3
		firstRate := presentRate(records[:third]) * 100
		secondRate := presentRate(records[third:2*third]) * 100
		thirdRate := presentRate(records[2*third:]) * 100
		slope1 := (secondRate - firstRate) / float64(third)
		slope2 := (thirdRate - secondRate) / float64(third)
		s.TrendAcceleration = slope2 - slope1
	}

	s.RecentVsOverallDiff = s.Recent5Rate - s.CurrentAttendance
}

func (e *Extractor) patternFeatures(s *Set, records []attendance.Record, cons *consistency.Result) {
	total := len(records)

	s.ConsistencyScore = defaultConsistencyScore
	s.ClusteringScore = defaultClusteringScore
	if cons != nil {
		switch cons.Consistency {
		case attendance.ConsistencyRegular:
			s.ConsistencyScore = 1
		case attendance.ConsistencyModeratelyIrregular:
			s.ConsistencyScore = 0.5
		case attendance.ConsistencyHighlyIrregular:
			s.ConsistencyScore = 0
		}
		s.MaxConsecutiveAbs = float64(cons.Metrics.MaxAbsenceStreak)
		s.AvgConsecutiveAbs = cons.Metrics.AvgAbsenceStreak
		s.ClusteringScore = cons.Metrics.ClusteringScore
	}

	if s.AttendanceVariance < 100 {
		s.AttendanceRegularity = 1 - s.AttendanceVariance/100
	}

	if total > 0 {
		s.AbsenceFrequency = s.AbsentCount / float64(total)
	}

	s.AttendanceStability = 0.5
	if total >= 10 {
		rates := make([]float64, 0, total-4)
		for i := 0; i+5 <= total; i++ {
			rates = append(rates, presentRate(records[i:i+5]))
		}
		_, std := meanStd(rates)
		s.AttendanceStability = 1 - math.Min(1, std*2)
	}
}

func (e *Extractor) engagementFeatures(s *Set, records []attendance.Record, att *attentiveness.Result) {
	total := len(records)

	s.AttentivenessLevel = defaultAttentiveness
	s.AvgAttentivenessScore = defaultAvgAttentiveness
	s.PositiveEmotionRatio = defaultPositiveEmotion
	if att != nil {
		switch att.Attentiveness {
		case attendance.ActivelyAttentive:
			s.AttentivenessLevel = 1
		case attendance.ModeratelyAttentive:
			s.AttentivenessLevel = 0.5
		case attendance.PassivelyAttentive:
			s.AttentivenessLevel = 0
		}
		s.AvgAttentivenessScore = att.Features.AverageAttentivenessScore
		s.PositiveEmotionRatio = att.Features.PositiveEmotionRatio
	}

	// Engagement trend and consistency use the 3/2/1 score over all records,
	// defaulting missing face data to Medium.
	if total >= 10 {
		mid := total / 2
		firstMean, _ := meanStd(attentivenessScores(records[:mid]))
		secondMean, _ := meanStd(attentivenessScores(records[mid:]))
		s.EngagementTrend = (secondMean - firstMean) / 3
	}

	s.AttentivenessConsistency = 0.5
	if total >= attendance.MinSessionsForAnalysis {
		mean, std := meanStd(attentivenessScores(records))
		if mean > 0 {
			s.AttentivenessConsistency = 1 - math.Min(1, std/mean)
		}
	}
}

func (e *Extractor) temporalFeatures(s *Set, records []attendance.Record, planned int, asOf time.Time) {
	total := len(records)
	remaining := planned - total
	if remaining < 0 {
		remaining = 0
	}

	s.SemesterProgress = math.Min(1, float64(total)/float64(planned))
	s.SessionsRemaining = float64(remaining)

	weeks := float64(total) / 2
	if total > 0 {
		if first, err := records[0].Date(); err == nil && !asOf.IsZero() {
			weeks = asOf.Sub(first).Hours() / 24 / 7
		}
	} else {
		weeks = 0
	}
	s.WeeksSinceEnrollment = weeks

	if s.CurrentAttendance < PassThreshold {
		s.TimePressure = 1 - float64(remaining)/float64(planned)
	}

	switch {
	case s.SemesterProgress < 0.33:
		s.SemesterPhase = 0
	case s.SemesterProgress < 0.67:
		s.SemesterPhase = 0.5
	default:
		s.SemesterPhase = 1
	}
}

func (e *Extractor) recoveryFeatures(s *Set, planned int) {
	remaining := s.SessionsRemaining
	present := s.PresentCount

	s.TotalPlanned = float64(planned)
	s.RemainingDuplicate = remaining

	s.BestPossible = (present + remaining) / float64(planned) * 100
	if s.BestPossible >= PassThreshold {
		s.RecoveryPossible = 1
	}

	s.SessionsNeeded = math.Max(0, math.Ceil(PassThreshold/100*float64(planned)-present))

	// Difficulty tiers by the share of remaining sessions the student must
	// attend; margin and certainty tiers follow the same bands.
	switch {
	case s.RecoveryPossible == 0:
		s.RecoveryDifficulty = -1
	case s.SessionsNeeded == 0:
		s.RecoveryDifficulty = 1
	case s.SessionsNeeded <= remaining*0.3:
		s.RecoveryDifficulty = 1
	case s.SessionsNeeded <= remaining*0.7:
		s.RecoveryDifficulty = 0.5
	case s.SessionsNeeded <= remaining:
		s.RecoveryDifficulty = 0.2
	default:
		s.RecoveryDifficulty = -1
	}

	switch {
	case s.RecoveryPossible == 1 && s.SessionsNeeded == 0:
		s.RecoveryMargin = (s.CurrentAttendance - PassThreshold) / 100
	case s.RecoveryPossible == 1 && s.SessionsNeeded <= remaining*0.3:
		s.RecoveryMargin = 0.3
	case s.RecoveryPossible == 1 && s.SessionsNeeded <= remaining*0.7:
		s.RecoveryMargin = 0.1
	default:
		s.RecoveryMargin = 0
	}

	switch {
	case s.RecoveryPossible == 0:
		s.FailureCertainty = 1
	case s.CurrentAttendance >= PassThreshold:
		buffer := s.CurrentAttendance - PassThreshold
		maxAbsences := math.Floor(buffer / 100 * remaining)
		switch {
		case maxAbsences >= remaining*0.5:
			s.FailureCertainty = 0
		case maxAbsences >= remaining*0.3:
			s.FailureCertainty = 0.1
		default:
			s.FailureCertainty = 0.3
		}
	default:
		switch {
		case s.SessionsNeeded > remaining:
			s.FailureCertainty = 1
		case s.SessionsNeeded > remaining*0.9:
			s.FailureCertainty = 0.8
		case s.SessionsNeeded > remaining*0.7:
			s.FailureCertainty = 0.6
		case s.SessionsNeeded > remaining*0.5:
			s.FailureCertainty = 0.4
		default:
			s.FailureCertainty = 0.2
		}
	}
}

func (e *Extractor) classContext(s *Set, records []attendance.Record, class *attendance.ClassSnapshot) {
	s.ClassAverage = defaultClassAttendance
	s.ClassAttOnAbsentDays = defaultClassAttendance
	s.PeerRankPercentile = defaultPeerRankPercentile

	hasStudents := class != nil && len(class.Students) > 0
	if hasStudents {
		sum := 0.0
		below := 0
		for _, st := range class.Students {
			pct := attendance.AttendancePercent(st.Records)
			sum += pct
			if pct < s.CurrentAttendance {
				below++
			}
		}
		s.ClassAverage = sum / float64(len(class.Students))
		s.PeerRankPercentile = float64(below) / float64(len(class.Students)) * 100
	}

	s.StudentVsClassDiff = s.CurrentAttendance - s.ClassAverage
	if s.CurrentAttendance < s.ClassAverage {
		s.BelowClassAverage = 1
	}

	if class != nil && len(class.Sessions) > 0 {
		var rates []float64
		for _, r := range records {
			if r.Status != attendance.StatusAbsent {
				continue
			}
			stat, ok := class.Sessions[r.SessionDate]
			if !ok || stat.TotalStudents == 0 {
				continue
			}
			rates = append(rates, float64(stat.PresentCount)/float64(stat.TotalStudents)*100)
		}
		if len(rates) > 0 {
			mean, _ := meanStd(rates)
			s.ClassAttOnAbsentDays = mean
		}
	}

	// Relative performance trend needs ten sessions on the student's side and
	// at least one peer with ten records; otherwise it stays at zero.
	total := len(records)
	if !hasStudents || total < 10 {
		return
	}

	mid := total / 2
	studentTrend := presentRate(records[mid:])*100 - presentRate(records[:mid])*100

	var peerFirst, peerSecond []float64
	for _, st := range class.Students {
		peer := attendance.SortChronological(st.Records)
		if len(peer) < 10 {
			continue
		}
		pm := len(peer) / 2
		peerFirst = append(peerFirst, presentRate(peer[:pm])*100)
		peerSecond = append(peerSecond, presentRate(peer[pm:])*100)
	}
	if len(peerFirst) == 0 {
		return
	}

	switch {
	case studentTrend > 0 && s.StudentVsClassDiff > 0:
		s.RelativePerformanceTr = 1
	case studentTrend > 0:
		s.RelativePerformanceTr = 0.5
	case studentTrend < 0 && s.StudentVsClassDiff < 0:
		s.RelativePerformanceTr = -1
	case studentTrend < 0:
		s.RelativePerformanceTr = -0.5
	}
}

func tail(records []attendance.Record, n int) []attendance.Record {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

func presentRate(records []attendance.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		if r.IsPresent() {
			n++
		}
	}
	return float64(n) / float64(len(records))
}

func presentStdDev(records []attendance.Record) float64 {
	vals := make([]float64, len(records))
	for i, r := range records {
		if r.IsPresent() {
			vals[i] = 1
		}
	}
	_, std := meanStd(vals)
	return std
}

func attentivenessScores(records []attendance.Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.AttentivenessScore()
	}
	return out
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
