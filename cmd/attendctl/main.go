// attendctl runs individual analysis stages from the command line. Each
// subcommand reads a JSON request on stdin and writes the stage result as
// JSON on stdout, which makes the stages easy to script and to diff.
//
//	attendctl trend < history.json
//	attendctl consistency < history.json
//	attendctl attentiveness < history.json
//	attendctl risk -manifest model.json < history.json
//	attendctl assess -manifest model.json < history.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/attentiveness"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/consistency"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/trend"
	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/features"
	"github.com/Tharun06102005/smart-attendance-system/internal/ml"
	"github.com/Tharun06102005/smart-attendance-system/internal/pipeline"
	"github.com/Tharun06102005/smart-attendance-system/internal/risk"
)

type stageRequest struct {
	StudentID string              `json:"student_id,omitempty"`
	Records   []attendance.Record `json:"records"`
}

// riskRequest carries the documented risk-stage field names. Supplied stage
// results pass straight through to the feature extractor; omitted ones are
// recomputed. records is accepted as an alias for student_data.
type riskRequest struct {
	StudentID            string                    `json:"student_id,omitempty"`
	StudentData          []attendance.Record       `json:"student_data"`
	Records              []attendance.Record       `json:"records,omitempty"`
	Trend                *trend.Result             `json:"model1_result,omitempty"`
	Consistency          *consistency.Result       `json:"model3_result,omitempty"`
	Attentiveness        *attentiveness.Result     `json:"model4_result,omitempty"`
	Class                *attendance.ClassSnapshot `json:"class_data,omitempty"`
	TotalSessionsPlanned int                       `json:"total_sessions_planned,omitempty"`
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "trend":
		runStage(func(req stageRequest) any {
			return trend.New().Analyze(req.Records)
		})
	case "consistency":
		runStage(func(req stageRequest) any {
			return consistency.New().Analyze(req.Records)
		})
	case "attentiveness":
		runStage(func(req stageRequest) any {
			label := consistency.New().Analyze(req.Records).Consistency
			return attentiveness.New().Analyze(req.Records, label)
		})
	case "risk":
		runRisk(os.Args[2:])
	case "assess":
		runAssess(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: attendctl <trend|consistency|attentiveness|risk|assess> [flags] < request.json")
}

func runStage(analyze func(stageRequest) any) {
	req, ok := readRequest()
	if !ok {
		os.Exit(1)
	}
	writeResult(analyze(req))
}

// predictorFlags holds the classifier configuration shared by the risk and
// assess subcommands.
type predictorFlags struct {
	manifestPath *string
	modelPath    *string
	planned      *int
	timeout      *time.Duration
	heuristic    *bool
}

func registerPredictorFlags(fs *flag.FlagSet) predictorFlags {
	return predictorFlags{
		manifestPath: fs.String("manifest", "models/attendance_risk_model.json", "path to the model manifest"),
		modelPath:    fs.String("model", "", "model artifact path, overrides the manifest entry"),
		planned:      fs.Int("planned", 80, "total planned sessions for the term"),
		timeout:      fs.Duration("timeout", 10*time.Second, "inference timeout"),
		heuristic:    fs.Bool("heuristic", false, "use the heuristic classifier instead of the model"),
	}
}

// buildPredictor constructs the risk predictor from the shared flags,
// exiting through fail on any configuration problem.
func buildPredictor(pf predictorFlags) *risk.Predictor {
	manifest, err := ml.LoadManifest(*pf.manifestPath)
	if err != nil {
		fail("manifest_error", err)
	}

	var classifier ml.Classifier
	if *pf.heuristic {
		classifier = ml.NewHeuristicClassifier(features.Count)
	} else {
		path := *pf.modelPath
		if path == "" {
			path = manifest.ModelPath
		}
		classifier, err = ml.NewSubprocessClassifier(path, *pf.timeout, nil)
		if err != nil {
			fail("classifier_error", err)
		}
	}

	predictor, err := risk.NewPredictor(classifier, manifest)
	if err != nil {
		fail("configuration_error", err)
	}
	return predictor
}

// runAssess runs the full pipeline and writes the complete student report.
func runAssess(args []string) {
	fs := flag.NewFlagSet("assess", flag.ExitOnError)
	pf := registerPredictorFlags(fs)
	fs.Parse(args)

	req, ok := readRequest()
	if !ok {
		os.Exit(1)
	}

	studentID := req.StudentID
	if studentID == "" {
		studentID = "stdin"
	}

	orchestrator := pipeline.New(buildPredictor(pf), *pf.planned, 1, nil)
	report, err := orchestrator.AssessStudent(context.Background(), studentID, req.Records, nil, time.Now())
	if err != nil {
		fail("assessment_error", err)
	}
	writeResult(report)
}

// runRisk runs only the risk stage. The request may carry the upstream
// stage results and class context; total_sessions_planned in the body takes
// precedence over the -planned flag.
func runRisk(args []string) {
	fs := flag.NewFlagSet("risk", flag.ExitOnError)
	pf := registerPredictorFlags(fs)
	fs.Parse(args)

	var req riskRequest
	if !readInto(&req) {
		os.Exit(1)
	}

	records := req.StudentData
	if len(records) == 0 {
		records = req.Records
	}

	orchestrator := pipeline.New(buildPredictor(pf), *pf.planned, 1, nil)
	assessment, err := orchestrator.AssessRisk(context.Background(), pipeline.RiskInput{
		StudentID:     req.StudentID,
		Records:       records,
		Trend:         req.Trend,
		Consistency:   req.Consistency,
		Attentiveness: req.Attentiveness,
		Class:         req.Class,
		Planned:       req.TotalSessionsPlanned,
	}, time.Now())
	if err != nil {
		fail("assessment_error", err)
	}
	writeResult(assessment)
}

func readRequest() (stageRequest, bool) {
	var req stageRequest
	if !readInto(&req) {
		return stageRequest{}, false
	}
	return req, true
}

func readInto(dst any) bool {
	if err := json.NewDecoder(os.Stdin).Decode(dst); err != nil {
		inputErr := attendance.NewInputError("request body is not valid JSON", err)
		writeResult(map[string]string{"error": "invalid_json", "message": inputErr.Error()})
		return false
	}
	return true
}

func fail(code string, err error) {
	if attendance.IsInputError(err) {
		code = "invalid_input"
	}
	writeResult(map[string]string{"error": code, "message": err.Error()})
	os.Exit(1)
}

func writeResult(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
