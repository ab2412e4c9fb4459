package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

type WebhookRepository struct {
	q Executor
}

func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{
		q: db.Pool,
	}
}

// InsertIfAbsent relies on the fingerprint unique constraint for atomicity. The
// losing side of a concurrent insert gets SQLSTATE 23505 on that constraint and is
// resolved to the existing row.
func (r *WebhookRepository) InsertIfAbsent(ctx context.Context, fingerprint string, canonicalPayload []byte, receivedAt time.Time) (domain.InsertOutcome, error) {
	query := `
		INSERT INTO webhooks (fingerprint, canonical_payload, received_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := r.q.QueryRow(ctx, query, fingerprint, string(canonicalPayload), receivedAt.UTC()).Scan(&id)
	if err == nil {
		return domain.Created(id), nil
	}

	if !IsFingerprintConflict(err) {
		return domain.InsertOutcome{}, fmt.Errorf("failed to insert webhook: %w", err)
	}

	existing, err := r.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return domain.InsertOutcome{}, fmt.Errorf("failed to resolve fingerprint conflict: %w", err)
	}

	return domain.AlreadyExists(existing.ID), nil
}

// FindByFingerprint retrieves a webhook by its payload fingerprint
func (r *WebhookRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.WebhookRecord, error) {
	query := `
		SELECT id, fingerprint, canonical_payload, received_at
		FROM webhooks
		WHERE fingerprint = $1
	`

	var (
		rec     domain.WebhookRecord
		payload string
	)
	err := r.q.QueryRow(ctx, query, fingerprint).Scan(
		&rec.ID,
		&rec.Fingerprint,
		&payload,
		&rec.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find webhook: %w", err)
	}

	rec.CanonicalPayload = []byte(payload)
	rec.ReceivedAt = rec.ReceivedAt.UTC()
	return &rec, nil
}

// Count returns the number of stored webhooks.
func (r *WebhookRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM webhooks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count webhooks: %w", err)
	}
	return n, nil
}
