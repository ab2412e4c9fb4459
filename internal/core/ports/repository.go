package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

// WebhookRepository is the dedup store keyed by payload fingerprint.
type WebhookRepository interface {
	// InsertIfAbsent creates a record for fingerprint unless one already exists.
	// The check and the insert are one atomic unit for concurrent callers: a losing
	// concurrent insert resolves to AlreadyExists, never to an error.
	InsertIfAbsent(ctx context.Context, fingerprint string, canonicalPayload []byte, receivedAt time.Time) (domain.InsertOutcome, error)

	// FindByFingerprint returns domain.ErrRecordNotFound when no record matches.
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.WebhookRecord, error)
}
