// Package sqlite is the single-file dedup store used for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/adapters/migrations"
	"github.com/DanielPopoola/webhook-receiver/internal/config"
	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/mattn/go-sqlite3"
)

type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the database file named by cfg.URL. SQLite serialises writers anyway,
// so the pool is pinned to one connection to avoid SQLITE_BUSY churn.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*WebhookRepository, error) {
	logger.Info("opening sqlite database", "path", cfg.URL)

	db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping sqlite database", "error", err)
		db.Close()
		return nil, err
	}

	return &WebhookRepository{db: db, logger: logger}, nil
}

func (r *WebhookRepository) Migrate(ctx context.Context) error {
	if err := migrations.Up(ctx, r.db, migrations.SQLite, r.logger); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *WebhookRepository) Close() error {
	r.logger.Info("closing sqlite database")
	return r.db.Close()
}

func (r *WebhookRepository) InsertIfAbsent(ctx context.Context, fingerprint string, canonicalPayload []byte, receivedAt time.Time) (domain.InsertOutcome, error) {
	query := `
		INSERT INTO webhooks (fingerprint, canonical_payload, received_at)
		VALUES (?, ?, ?)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		fingerprint,
		string(canonicalPayload),
		receivedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&id)
	if err == nil {
		return domain.Created(id), nil
	}

	if !IsUniqueViolation(err) {
		return domain.InsertOutcome{}, fmt.Errorf("failed to insert webhook: %w", err)
	}

	existing, err := r.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return domain.InsertOutcome{}, fmt.Errorf("failed to resolve fingerprint conflict: %w", err)
	}
	return domain.AlreadyExists(existing.ID), nil
}

func (r *WebhookRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.WebhookRecord, error) {
	query := `
		SELECT id, fingerprint, canonical_payload, received_at
		FROM webhooks
		WHERE fingerprint = ?
	`

	var (
		rec        domain.WebhookRecord
		payload    string
		receivedAt string
	)
	err := r.db.QueryRowContext(ctx, query, fingerprint).Scan(&rec.ID, &rec.Fingerprint, &payload, &receivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find webhook: %w", err)
	}

	rec.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse received_at %q: %w", receivedAt, err)
	}
	rec.CanonicalPayload = []byte(payload)
	return &rec, nil
}

func (r *WebhookRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhooks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count webhooks: %w", err)
	}
	return n, nil
}

// IsUniqueViolation reports a UNIQUE constraint failure by its extended result code.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
