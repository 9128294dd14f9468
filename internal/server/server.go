// Package server exposes the analysis pipeline over HTTP. Stage endpoints
// run a single analyzer on a posted history; the assess endpoints run the
// full pipeline for one student or a whole class.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/attentiveness"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/consistency"
	"github.com/Tharun06102005/smart-attendance-system/internal/analysis/trend"
	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/facerec"
	"github.com/Tharun06102005/smart-attendance-system/internal/pipeline"
	"github.com/Tharun06102005/smart-attendance-system/internal/storage"
)

// Server is the analysis HTTP API.
type Server struct {
	orchestrator *pipeline.Orchestrator

	trend         *trend.Analyzer
	consistency   *consistency.Analyzer
	attentiveness *attentiveness.Analyzer

	face  *facerec.Client
	store *storage.Store

	server *http.Server
}

// New creates the API server on the given port. face and store are optional;
// the capture endpoint is only registered when both are available.
func New(orchestrator *pipeline.Orchestrator, face *facerec.Client, store *storage.Store, port int) *Server {
	s := &Server{
		orchestrator:  orchestrator,
		trend:         trend.New(),
		consistency:   consistency.New(),
		attentiveness: attentiveness.New(),
		face:          face,
		store:         store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/analyze/trend", s.handleTrend)
	mux.HandleFunc("/api/v1/analyze/consistency", s.handleConsistency)
	mux.HandleFunc("/api/v1/analyze/attentiveness", s.handleAttentiveness)
	mux.HandleFunc("/api/v1/analyze/risk", s.handleRisk)
	mux.HandleFunc("/api/v1/assess", s.handleAssess)
	mux.HandleFunc("/api/v1/assess/class", s.handleAssessClass)
	if face != nil && store != nil {
		mux.HandleFunc("/api/v1/capture/session", s.handleCaptureSession)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting analysis server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type historyRequest struct {
	Records []attendance.Record `json:"records"`
}

type attentivenessRequest struct {
	Records     []attendance.Record         `json:"records"`
	Consistency attendance.ConsistencyLabel `json:"consistency,omitempty"`
}

type assessRequest struct {
	StudentID string              `json:"student_id"`
	Records   []attendance.Record `json:"records"`
}

// riskRequest carries the documented risk-stage field names. The stage
// result fields are optional; anything omitted is recomputed from the
// history. records is accepted as an alias for student_data.
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

type assessClassRequest struct {
	Students []attendance.StudentHistory `json:"students"`
}

type captureSessionRequest struct {
	SessionDate string `json:"session_date"`
}

type captureSessionResponse struct {
	SessionDate string `json:"session_date"`
	Detections  int    `json:"detections"`
	Stored      int    `json:"stored"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.trend.Analyze(req.Records))
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.consistency.Analyze(req.Records))
}

func (s *Server) handleAttentiveness(w http.ResponseWriter, r *http.Request) {
	var req attentivenessRequest
	if !decode(w, r, &req) {
		return
	}
	consistencyLabel := req.Consistency
	if consistencyLabel == "" {
		consistencyLabel = s.consistency.Analyze(req.Records).Consistency
	}
	writeJSON(w, http.StatusOK, s.attentiveness.Analyze(req.Records, consistencyLabel))
}

// handleRisk runs the risk stage. Upstream stage results posted with the
// request feed the feature extractor directly; omitted ones are recomputed
// from the history.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if !decode(w, r, &req) {
		return
	}

	records := req.StudentData
	if len(records) == 0 {
		records = req.Records
	}

	assessment, err := s.orchestrator.AssessRisk(r.Context(), pipeline.RiskInput{
		StudentID:     req.StudentID,
		Records:       records,
		Trend:         req.Trend,
		Consistency:   req.Consistency,
		Attentiveness: req.Attentiveness,
		Class:         req.Class,
		Planned:       req.TotalSessionsPlanned,
	}, time.Now())
	if err != nil {
		log.Error().Err(err).Str("student_id", req.StudentID).Msg("risk analysis failed")
		writeError(w, http.StatusInternalServerError, "assessment_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if !decode(w, r, &req) {
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "student_id is required")
		return
	}

	report, err := s.orchestrator.AssessStudent(r.Context(), req.StudentID, req.Records, nil, time.Now())
	if err != nil {
		log.Error().Err(err).Str("student_id", req.StudentID).Msg("assessment failed")
		writeError(w, http.StatusInternalServerError, "assessment_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAssessClass(w http.ResponseWriter, r *http.Request) {
	var req assessClassRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Students) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "students cannot be empty")
		return
	}

	report := s.orchestrator.AssessClass(r.Context(), req.Students, time.Now())
	writeJSON(w, http.StatusOK, report)
}

// handleCaptureSession asks the face service to analyze one session's
// captures and persists each detection as a present attendance record.
func (s *Server) handleCaptureSession(w http.ResponseWriter, r *http.Request) {
	var req captureSessionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionDate == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_date is required")
		return
	}
	if _, err := time.Parse(attendance.DateLayout, req.SessionDate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_date must be YYYY-MM-DD")
		return
	}

	analysis, err := s.face.AnalyzeSession(r.Context(), req.SessionDate)
	if err != nil {
		log.Error().Err(err).Str("session_date", req.SessionDate).Msg("session analysis failed")
		writeError(w, http.StatusBadGateway, "face_service_error", err.Error())
		return
	}

	stored := 0
	for _, d := range analysis.Detections {
		record := attendance.Record{
			Status:        attendance.StatusPresent,
			SessionDate:   req.SessionDate,
			Attentiveness: d.Attentiveness,
			Emotion:       d.Emotion,
		}
		if err := s.store.StoreRecord(d.StudentID, record); err != nil {
			log.Error().Err(err).Str("student_id", d.StudentID).Msg("failed to store detection")
			continue
		}
		stored++
	}

	writeJSON(w, http.StatusOK, captureSessionResponse{
		SessionDate: req.SessionDate,
		Detections:  len(analysis.Detections),
		Stored:      stored,
	})
}

// decode parses a POST body, writing the error response itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
