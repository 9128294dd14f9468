// Package pipeline orchestrates the four analysis stages for single students
// and whole classes. Stage analyzers are stateless, so one orchestrator is
// shared safely across requests; batch runs fan out over a bounded worker
// pool and isolate per-student failures.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/attentiveness"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/consistency"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/trend"
	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/features"
	"github.com/Tharun06102005/smart-attendance-system/internal/metrics"
	"github.com/Tharun06102005/smart-attendance-system/internal/risk"
)

// StudentReport bundles the outputs of all four stages for one student.
type StudentReport struct {
	StudentID     string               `json:"student_id"`
	Trend         trend.Result         `json:"trend"`
	Consistency   consistency.Result   `json:"consistency"`
	Attentiveness attentiveness.Result `json:"attentiveness"`
	Risk          risk.Assessment      `json:"risk"`
}

// ClassReport is the outcome of a batch run. Failed lists the students whose
// pipeline errored; their absence from Reports is deliberate, one bad history
// never aborts the batch.
type ClassReport struct {
	Reports map[string]StudentReport `json:"reports"`
	Failed  []string                 `json:"failed,omitempty"`
}

// Orchestrator wires the stage analyzers and the risk predictor together.
type Orchestrator struct {
	trend         *trend.Analyzer
	consistency   *consistency.Analyzer
	attentiveness *attentiveness.Analyzer
	predictor     *risk.Predictor

	planned int
	workers int
	metrics *metrics.Metrics
}

// New creates an orchestrator. planned is the total planned sessions for the
// term; workers bounds batch concurrency. metrics may be nil in tests.
func New(predictor *risk.Predictor, planned, workers int, m *metrics.Metrics) *Orchestrator {
	if planned <= 0 {
		planned = 80
	}
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		trend:         trend.New(),
		consistency:   consistency.New(),
		attentiveness: attentiveness.New(),
		predictor:     predictor,
		planned:       planned,
		workers:       workers,
		metrics:       m,
	}
}

// AssessStudent runs all four stages for one student. Stages run in
// dependency order: attentiveness consumes the consistency label, the risk
// stage consumes everything. asOf anchors the temporal features so repeated
// runs over the same history produce identical output.
func (o *Orchestrator) AssessStudent(ctx context.Context, studentID string, records []attendance.Record, class *attendance.ClassSnapshot, asOf time.Time) (report StudentReport, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = attendance.NewComputationError(studentID, fmt.Errorf("panic: %v", r))
		}
		if o.metrics != nil {
			o.metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				o.metrics.AssessmentErrors.Inc()
			} else {
				o.metrics.AssessmentsTotal.Inc()
			}
		}
	}()

	trendResult := o.trend.Analyze(records)
	consistencyResult := o.consistency.Analyze(records)
	attentivenessResult := o.attentiveness.Analyze(records, consistencyResult.Consistency)

	assessment, err := o.predictor.Assess(ctx, features.Input{
		Records:       records,
		Trend:         &trendResult,
		Consistency:   &consistencyResult,
		Attentiveness: &attentivenessResult,
		Class:         class,
		Planned:       o.planned,
		AsOf:          asOf,
	})
	if err != nil {
		return StudentReport{}, attendance.NewComputationError(studentID, err)
	}

	if o.metrics != nil && assessment.Confidence != nil {
		o.metrics.ClassifierConfidence.Observe(*assessment.Confidence)
	}

	return StudentReport{
		StudentID:     studentID,
		Trend:         trendResult,
		Consistency:   consistencyResult,
		Attentiveness: attentivenessResult,
		Risk:          assessment,
	}, nil
}

// RiskInput is the risk-stage request: the student's history plus the
// optional upstream stage results and class context. Any stage result left
// nil is recomputed from the records; a supplied one is passed through to
// the feature extractor untouched.
type RiskInput struct {
	StudentID     string
	Records       []attendance.Record
	Trend         *trend.Result
	Consistency   *consistency.Result
	Attentiveness *attentiveness.Result
	Class         *attendance.ClassSnapshot
	Planned       int
}

// AssessRisk runs only the risk stage. Callers that already hold the
// upstream stage outputs supply them in the input; Planned overrides the
// orchestrator default when positive.
func (o *Orchestrator) AssessRisk(ctx context.Context, in RiskInput, asOf time.Time) (risk.Assessment, error) {
	trendResult := in.Trend
	if trendResult == nil {
		r := o.trend.Analyze(in.Records)
		trendResult = &r
	}
	consistencyResult := in.Consistency
	if consistencyResult == nil {
		r := o.consistency.Analyze(in.Records)
		consistencyResult = &r
	}
	attentivenessResult := in.Attentiveness
	if attentivenessResult == nil {
		r := o.attentiveness.Analyze(in.Records, consistencyResult.Consistency)
		attentivenessResult = &r
	}

	planned := in.Planned
	if planned <= 0 {
		planned = o.planned
	}

	assessment, err := o.predictor.Assess(ctx, features.Input{
		Records:       in.Records,
		Trend:         trendResult,
		Consistency:   consistencyResult,
		Attentiveness: attentivenessResult,
		Class:         in.Class,
		Planned:       planned,
		AsOf:          asOf,
	})
	if err != nil {
		return risk.Assessment{}, attendance.NewComputationError(in.StudentID, err)
	}

	if o.metrics != nil && assessment.Confidence != nil {
		o.metrics.ClassifierConfidence.Observe(*assessment.Confidence)
	}
	return assessment, nil
}

// AssessClass runs the full pipeline for every student in the class. The
// class snapshot is built once and shared read-only across workers. Students
// whose pipeline fails are logged, counted, and listed in Failed.
func (o *Orchestrator) AssessClass(ctx context.Context, students []attendance.StudentHistory, asOf time.Time) ClassReport {
	class := BuildSnapshot(students)

	if o.metrics != nil {
		o.metrics.BatchStudents.Observe(float64(len(students)))
	}

	type outcome struct {
		id     string
		report StudentReport
		err    error
	}

	jobs := make(chan attendance.StudentHistory)
	results := make(chan outcome, len(students))

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for student := range jobs {
				report, err := o.AssessStudent(ctx, student.ID, student.Records, class, asOf)
				results <- outcome{id: student.ID, report: report, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, student := range students {
			select {
			case jobs <- student:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := ClassReport{Reports: make(map[string]StudentReport, len(students))}
	for res := range results {
		if res.err != nil {
			log.Error().Err(res.err).Str("student_id", res.id).Msg("student assessment failed")
			out.Failed = append(out.Failed, res.id)
			continue
		}
		out.Reports[res.id] = res.report
	}
	return out
}

// BuildSnapshot aggregates per-student histories into the class-level view
// the peer-context features read. Per-session stats count every student with
// a record on that date, including ones with otherwise empty histories.
func BuildSnapshot(students []attendance.StudentHistory) *attendance.ClassSnapshot {
	sessions := make(map[string]attendance.SessionStat)
	for _, student := range students {
		for _, r := range student.Records {
			stat := sessions[r.SessionDate]
			stat.TotalStudents++
			if r.IsPresent() {
				stat.PresentCount++
			} else {
				stat.AbsentCount++
			}
			sessions[r.SessionDate] = stat
		}
	}
	return &attendance.ClassSnapshot{Sessions: sessions, Students: students}
}
