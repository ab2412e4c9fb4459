package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/core/ports"
	"github.com/DanielPopoola/webhook-receiver/internal/logctx"
)

// QueryService reads stored webhooks back for audit and replay.
type QueryService struct {
	repo   ports.WebhookRepository
	auth   *Authenticator
	logger *slog.Logger
}

func NewQueryService(repo ports.WebhookRepository, auth *Authenticator, logger *slog.Logger) *QueryService {
	return &QueryService{
		repo:   repo,
		auth:   auth,
		logger: logger,
	}
}

func (s *QueryService) GetByFingerprint(ctx context.Context, signature, fingerprint string) (*domain.WebhookRecord, error) {
	logger := logctx.Logger(ctx, s.logger)

	if err := s.auth.Verify(signature); err != nil {
		logger.Warn("invalid_signature", "operation", "get_by_fingerprint")
		return nil, err
	}

	if !domain.IsValidFingerprint(fingerprint) {
		return nil, domain.NewInvalidFingerprintError(fingerprint)
	}

	record, err := s.repo.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NewRecordNotFoundError(fingerprint)
		}
		logger.Error("webhook_lookup_failed", "payload_hash", fingerprint, "error", err)
		return nil, domain.NewStorageError(err)
	}

	return record, nil
}
