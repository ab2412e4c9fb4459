package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/core/ports"
	"github.com/DanielPopoola/webhook-receiver/internal/logctx"
)

type IngestionService struct {
	repo     ports.WebhookRepository
	auth     *Authenticator
	logger   *slog.Logger
	now      func() time.Time
	recorder ports.IngestRecorder
}

type Option func(*IngestionService)

// WithRecorder reports each terminal pipeline state to r.
func WithRecorder(r ports.IngestRecorder) Option {
	return func(s *IngestionService) {
		s.recorder = r
	}
}

// WithClock overrides the clock used for received_at.
func WithClock(now func() time.Time) Option {
	return func(s *IngestionService) {
		s.now = now
	}
}

func NewIngestionService(repo ports.WebhookRepository, auth *Authenticator, logger *slog.Logger, opts ...Option) *IngestionService {
	s := &IngestionService{
		repo:     repo,
		auth:     auth,
		logger:   logger,
		now:      time.Now,
		recorder: ports.NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate runs only the first pipeline stage. Boundaries call it before
// reading the body so unsigned traffic is rejected without buffering it.
func (s *IngestionService) Authenticate(ctx context.Context, signature string) error {
	start := time.Now()
	if err := s.auth.Verify(signature); err != nil {
		logctx.Logger(ctx, s.logger).Warn("invalid_signature", "state", domain.StateAuthRejected)
		s.recorder.ObserveIngest(domain.StateAuthRejected, time.Since(start))
		return err
	}
	return nil
}

// Ingest runs authenticate -> parse -> canonicalize -> fingerprint -> store.
// A failing stage short-circuits; later stages never run.
func (s *IngestionService) Ingest(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error) {
	start := time.Now()
	verdict, err := s.ingest(ctx, req)
	if err != nil {
		s.recorder.ObserveIngest(domain.RejectionState(err), time.Since(start))
		return nil, err
	}
	s.recorder.ObserveIngest(verdict.State(), time.Since(start))
	return verdict, nil
}

func (s *IngestionService) ingest(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error) {
	logger := logctx.Logger(ctx, s.logger)

	if err := s.auth.Verify(req.Header(domain.SignatureHeader)); err != nil {
		logger.Warn("invalid_signature", "state", domain.StateAuthRejected)
		return nil, err
	}

	value, err := ParseJSON(req.Body)
	if err != nil {
		logger.Warn("invalid_json_body", "state", domain.StateMalformedBody, "error", err)
		return nil, domain.NewInvalidJSONError(err)
	}

	canonical, err := CanonicalizeValue(value)
	if err != nil {
		logger.Warn("invalid_json_body", "state", domain.StateMalformedBody, "error", err)
		return nil, err
	}

	fingerprint := Fingerprint(canonical)

	// The insert must finish even if the client goes away.
	outcome, err := s.repo.InsertIfAbsent(context.WithoutCancel(ctx), fingerprint, canonical, s.now().UTC())
	if err == nil && outcome.Kind != domain.OutcomeCreated && outcome.Kind != domain.OutcomeAlreadyExists {
		err = fmt.Errorf("unknown insert outcome %d", outcome.Kind)
	}
	if err != nil {
		logger.Error("webhook_storage_failed",
			"state", domain.StateStorageFailed,
			"payload_hash", fingerprint,
			"error", err,
		)
		return nil, domain.NewStorageError(err)
	}

	verdict := &domain.Verdict{
		Stored:      outcome.IsCreated(),
		RecordID:    outcome.RecordID,
		Fingerprint: fingerprint,
	}

	event := "webhook_duplicate"
	if verdict.Stored {
		event = "webhook_stored"
	}
	logger.Info(event,
		"state", verdict.State(),
		"payload_hash", fingerprint,
		"record_id", verdict.RecordID,
	)

	return verdict, nil
}
