package ports

import (
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

// IngestRecorder observes the terminal state of every ingestion attempt.
type IngestRecorder interface {
	ObserveIngest(state domain.IngestState, elapsed time.Duration)
}

// NopRecorder discards observations.
type NopRecorder struct{}

func (NopRecorder) ObserveIngest(domain.IngestState, time.Duration) {}
