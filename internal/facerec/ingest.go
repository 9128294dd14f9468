package facerec

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/metrics"
	"github.com/Tharun06102005/smart-attendance-system/internal/storage"
)

// Ingestor consumes capture events and persists them as attendance records.
type Ingestor struct {
	store   *storage.Store
	metrics *metrics.Metrics
}

// NewIngestor creates an ingestor writing to store.
func NewIngestor(store *storage.Store, m *metrics.Metrics) *Ingestor {
	return &Ingestor{store: store, metrics: m}
}

// Run processes events until ctx is cancelled or the channel closes.
// Storage failures are logged and counted; the loop never stops on a
// single bad event.
func (i *Ingestor) Run(ctx context.Context, events <-chan CaptureEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if i.metrics != nil {
				i.metrics.CaptureEventsReceived.Inc()
			}

			record := attendance.Record{
				Status:        event.Status,
				SessionDate:   event.SessionDate,
				Attentiveness: event.Attentiveness,
				Emotion:       event.Emotion,
			}
			if record.Status == "" {
				record.Status = attendance.StatusPresent
			}

			if err := i.store.StoreRecord(event.StudentID, record); err != nil {
				log.Error().Err(err).Str("student_id", event.StudentID).Msg("failed to store capture record")
				if i.metrics != nil {
					i.metrics.IngestErrors.Inc()
				}
			}
		}
	}
}
