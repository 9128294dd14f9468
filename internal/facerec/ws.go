package facerec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/metrics"
)

// CaptureEvent is one live recognition pushed by the face service.
type CaptureEvent struct {
	StudentID     string                   `json:"student_id"`
	SessionDate   string                   `json:"session_date"`
	Status        attendance.Status        `json:"status"`
	Attentiveness attendance.Attentiveness `json:"attentiveness,omitempty"`
	Emotion       attendance.Emotion       `json:"emotion,omitempty"`
}

// WS subscribes to the face service's capture stream.
type WS struct {
	url     string
	metrics *metrics.Metrics
}

// NewWS creates a stream subscriber for the given websocket URL.
func NewWS(url string, m *metrics.Metrics) WS {
	return WS{url: url, metrics: m}
}

// Stream connects to the capture stream and forwards events until ctx is
// cancelled. Connection failures reconnect with exponential backoff; errors
// are reported on the errors channel without blocking.
func (w WS) Stream(ctx context.Context, events chan<- CaptureEvent, errors chan<- error, ping time.Duration) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.streamOnce(ctx, events, ping); err != nil {
				log.Warn().Err(err).Dur("backoff", backoff).Msg("capture stream disconnected, reconnecting")
				if w.metrics != nil {
					w.metrics.StreamReconnects.Inc()
				}
				select {
				case errors <- fmt.Errorf("stream reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			// Reset backoff on successful connection
			backoff = time.Second
		}
	}
}

func (w WS) streamOnce(ctx context.Context, events chan<- CaptureEvent, ping time.Duration) error {
	log.Info().Str("url", w.url).Msg("connecting to capture stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "channel": "captures"}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	pingTicker := time.NewTicker(ping)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		default:
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Msg("capture stream closed normally")
					return err
				}
				return fmt.Errorf("read message failed: %w", err)
			}

			var event CaptureEvent
			if err := json.Unmarshal(msg, &event); err != nil {
				log.Debug().Err(err).Str("message", string(msg)).Msg("unparseable capture event")
				continue
			}
			if event.StudentID == "" || event.SessionDate == "" {
				log.Debug().Str("message", string(msg)).Msg("capture event missing identity fields")
				continue
			}

			select {
			case events <- event:
			default:
				log.Warn().Str("student_id", event.StudentID).Msg("capture channel full, dropping event")
			}
		}
	}
}
