package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/facerec"
	"github.com/Tharun06102005/smart-attendance-system/internal/features"
	"github.com/Tharun06102005/smart-attendance-system/internal/ml"
	"github.com/Tharun06102005/smart-attendance-system/internal/pipeline"
	"github.com/Tharun06102005/smart-attendance-system/internal/risk"
	"github.com/Tharun06102005/smart-attendance-system/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	manifest := &ml.Manifest{FeatureNames: features.Names(), TestAccuracy: 0.9}
	predictor, err := risk.NewPredictor(ml.NewHeuristicClassifier(features.Count), manifest)
	if err != nil {
		t.Fatalf("Failed to create predictor: %v", err)
	}
	return New(pipeline.New(predictor, 80, 2, nil), nil, nil, 8080)
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req = req.WithContext(context.Background())
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func records(pattern string) []attendance.Record {
	out := make([]attendance.Record, 0, len(pattern))
	for i, ch := range pattern {
		r := attendance.Record{SessionDate: fmt.Sprintf("2025-01-%02d", i+1)}
		if ch == 'P' {
			r.Status = attendance.StatusPresent
		} else {
			r.Status = attendance.StatusAbsent
		}
		out = append(out, r)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected OK body, got %q", rec.Body.String())
	}
}

func TestTrendEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/analyze/trend", map[string]any{
		"records": records("PPPPPPPPAA"),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Trend   attendance.TrendLabel `json:"trend"`
		Message string                `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	// 100% first half, 60% second half
	if result.Trend != attendance.TrendDeclining {
		t.Errorf("Expected declining trend, got %s", result.Trend)
	}
	if result.Message == "" {
		t.Error("Expected message in response")
	}
}

func TestStageEndpoints_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	paths := []string{
		"/api/v1/analyze/trend",
		"/api/v1/analyze/consistency",
		"/api/v1/analyze/attentiveness",
		"/api/v1/analyze/risk",
		"/api/v1/assess",
		"/api/v1/assess/class",
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.server.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405 for GET, got %d", path, rec.Code)
		}
	}
}

func TestInvalidJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/trend",
		strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}

	var errResp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp["error"] != "invalid_json" {
		t.Errorf("Expected invalid_json error code, got %q", errResp["error"])
	}
	if errResp["message"] == "" {
		t.Error("Expected error message in response")
	}
}

func TestAttentivenessEndpoint_ComputesConsistencyWhenOmitted(t *testing.T) {
	s := newTestServer(t)

	recs := make([]attendance.Record, 0, 10)
	for i := 0; i < 10; i++ {
		recs = append(recs, attendance.Record{
			Status:        attendance.StatusPresent,
			SessionDate:   fmt.Sprintf("2025-01-%02d", i+1),
			Attentiveness: attendance.AttentivenessHigh,
			Emotion:       attendance.EmotionHappy,
		})
	}

	rec := post(t, s, "/api/v1/analyze/attentiveness", map[string]any{
		"records": recs,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Attentiveness attendance.AttentivenessLabel `json:"attentiveness"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Attentiveness != attendance.ActivelyAttentive {
		t.Errorf("Expected actively_attentive, got %s", result.Attentiveness)
	}
}

func TestRiskEndpoint_DocumentedFields(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/analyze/risk", map[string]any{
		"student_id":             "s1",
		"student_data":           records("PPPPPPPPPP"),
		"model1_result":          map[string]any{"trend": "improving"},
		"total_sessions_planned": 50,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var assessment risk.Assessment
	if err := json.Unmarshal(rec.Body.Bytes(), &assessment); err != nil {
		t.Fatalf("Failed to decode assessment: %v", err)
	}
	if assessment.Status != attendance.StageAnalyzed {
		t.Errorf("Expected analyzed status, got %s", assessment.Status)
	}
	if assessment.SessionsRemaining != 40 {
		t.Errorf("Expected 40 sessions remaining with 50 planned, got %d", assessment.SessionsRemaining)
	}
}

func TestRiskEndpoint_RecordsAlias(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/analyze/risk", map[string]any{
		"records": records("PPPPPPPPAA"),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var assessment risk.Assessment
	if err := json.Unmarshal(rec.Body.Bytes(), &assessment); err != nil {
		t.Fatalf("Failed to decode assessment: %v", err)
	}
	if assessment.Status != attendance.StageAnalyzed {
		t.Errorf("Expected analyzed status, got %s", assessment.Status)
	}
}

func TestAssess_RequiresStudentID(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/assess", map[string]any{
		"records": records("PPPP"),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}

	var errResp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp["error"] != "invalid_request" {
		t.Errorf("Expected invalid_request, got %q", errResp["error"])
	}
}

func TestAssess_FullPipeline(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/assess", map[string]any{
		"student_id": "s1",
		"records":    records("PPPPPPPPAA"),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report pipeline.StudentReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.StudentID != "s1" {
		t.Errorf("Expected student s1, got %s", report.StudentID)
	}
	if report.Risk.Status != attendance.StageAnalyzed {
		t.Errorf("Expected analyzed risk, got %s", report.Risk.Status)
	}
}

func TestAssessClass_RejectsEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/assess/class", map[string]any{
		"students": []attendance.StudentHistory{},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestCaptureSession(t *testing.T) {
	faceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(facerec.SessionAnalysis{
			SessionDate: "2025-02-03",
			Detections: []facerec.Detection{
				{StudentID: "s1", Attentiveness: attendance.AttentivenessHigh, Emotion: attendance.EmotionHappy},
				{StudentID: "s2", Attentiveness: attendance.AttentivenessMedium, Emotion: attendance.EmotionNeutral},
			},
		})
	}))
	defer faceSrv.Close()

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	manifest := &ml.Manifest{FeatureNames: features.Names(), TestAccuracy: 0.9}
	predictor, err := risk.NewPredictor(ml.NewHeuristicClassifier(features.Count), manifest)
	if err != nil {
		t.Fatalf("Failed to create predictor: %v", err)
	}
	face := facerec.NewClient(faceSrv.URL, 0, nil)
	s := New(pipeline.New(predictor, 80, 2, nil), face, store, 8080)

	rec := post(t, s, "/api/v1/capture/session", map[string]string{
		"session_date": "2025-02-03",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Detections int `json:"detections"`
		Stored     int `json:"stored"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Detections != 2 || resp.Stored != 2 {
		t.Errorf("Expected 2 detections stored, got %+v", resp)
	}

	records, err := store.GetRecords("s1")
	if err != nil || len(records) != 1 {
		t.Fatalf("Expected 1 stored record for s1, got %d (err %v)", len(records), err)
	}
	if !records[0].HasFaceData() {
		t.Error("Stored record should carry face data")
	}

	// Bad date is rejected before the face service is called
	rec = post(t, s, "/api/v1/capture/session", map[string]string{
		"session_date": "03-02-2025",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestAssessClass_FullBatch(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/assess/class", map[string]any{
		"students": []attendance.StudentHistory{
			{ID: "s1", Records: records("PPPPPPPPAA")},
			{ID: "s2", Records: records("PAPAPAPAPA")},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report pipeline.ClassReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if len(report.Reports) != 2 {
		t.Errorf("Expected 2 reports, got %d", len(report.Reports))
	}
	if len(report.Failed) != 0 {
		t.Errorf("Expected no failures, got %v", report.Failed)
	}
}
