package handler

import (
	"net/http"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/logctx"
)

// HandleGetWebhook godoc
// @Summary      Fetch a stored webhook
// @Tags         webhooks
// @Produce      json
// @Param        X-Signature  header    string  true  "Shared secret"
// @Param        fingerprint  path      string  true  "SHA-256 of the canonical payload"
// @Success      200          {object}  RecordResponse
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Failure      404          {object}  ErrorResponse
// @Router       /webhooks/{fingerprint} [get]
func (h *WebhookHandler) HandleGetWebhook(w http.ResponseWriter, r *http.Request) {
	record, err := h.queryService.GetByFingerprint(r.Context(), r.Header.Get(domain.SignatureHeader), r.PathValue("fingerprint"))
	if err != nil {
		respondWithError(w, err, logctx.Logger(r.Context(), h.logger))
		return
	}

	respondWithJSON(w, http.StatusOK, RecordResponse{
		RecordID:    record.ID,
		PayloadHash: record.Fingerprint,
		Payload:     record.CanonicalPayload,
		ReceivedAt:  record.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
}

// HandleHealth godoc
// @Summary  Health check
// @Produce  json
// @Success  200  {object}  HealthResponse
// @Router   /health [get]
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
