package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

type IngestService interface {
	Authenticate(ctx context.Context, signature string) error
	Ingest(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error)
}

type QueryService interface {
	GetByFingerprint(ctx context.Context, signature, fingerprint string) (*domain.WebhookRecord, error)
}

type WebhookHandler struct {
	ingestService IngestService
	queryService  QueryService
	logger        *slog.Logger
	maxBodyBytes  int64
}

func NewWebhookHandler(
	ingestService IngestService,
	queryService QueryService,
	logger *slog.Logger,
	maxBodyBytes int64,
) *WebhookHandler {
	return &WebhookHandler{
		ingestService: ingestService,
		queryService:  queryService,
		logger:        logger,
		maxBodyBytes:  maxBodyBytes,
	}
}

func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", h.HandleWebhook)
	mux.HandleFunc("GET /webhooks/{fingerprint}", h.HandleGetWebhook)
	mux.HandleFunc("GET /health", h.HandleHealth)
}
