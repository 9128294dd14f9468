// Package facerec integrates the face-recognition service: a REST client for
// on-demand session analysis and a websocket subscriber for the live capture
// stream. Capture events are mapped into attendance records and persisted.
package facerec

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/metrics"
)

// Detection is one recognized student within a session analysis.
type Detection struct {
	StudentID     string                   `json:"student_id"`
	Attentiveness attendance.Attentiveness `json:"attentiveness"`
	Emotion       attendance.Emotion       `json:"emotion"`
}

// SessionAnalysis is the face service's aggregate result for one session.
type SessionAnalysis struct {
	SessionDate string      `json:"session_date"`
	Detections  []Detection `json:"detections"`
}

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the face-recognition service over REST.
type Client struct {
	base    string
	rest    *resty.Client
	metrics *metrics.Metrics
}

// NewClient creates a REST client for the face service at base.
func NewClient(base string, timeout time.Duration, m *metrics.Metrics) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{base: base, rest: r, metrics: m}
}

// AnalyzeSession asks the face service to analyze the captures recorded for
// one session date.
func (c *Client) AnalyzeSession(ctx context.Context, sessionDate string) (SessionAnalysis, error) {
	if c.metrics != nil {
		c.metrics.FaceServiceCalls.Inc()
	}

	var result SessionAnalysis
	var apiErr errorResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"session_date": sessionDate}).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.base + "/api/v1/analyze")
	if err != nil {
		if c.metrics != nil {
			c.metrics.FaceServiceFailures.Inc()
		}
		return SessionAnalysis{}, fmt.Errorf("face service request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		if c.metrics != nil {
			c.metrics.FaceServiceFailures.Inc()
		}
		return SessionAnalysis{}, fmt.Errorf("face service: status %d, %s %s", resp.StatusCode(), apiErr.Error, apiErr.Message)
	}
	return result, nil
}

// Health checks the face service health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get(c.base + "/health")
	if err != nil {
		return fmt.Errorf("face service unreachable: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("face service unhealthy: status %d", resp.StatusCode())
	}
	return nil
}
