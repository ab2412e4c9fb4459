package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/logctx"
)

// HandleWebhook godoc
// @Summary      Ingest a webhook
// @Description  Authenticates, canonicalizes and stores a JSON payload exactly once.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Signature  header    string  true  "Shared secret"
// @Success      200          {object}  IngestResponse
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Failure      413          {object}  ErrorResponse
// @Failure      500          {object}  ErrorResponse
// @Router       /webhook [post]
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	// The signature is checked before the body is read, so an unsigned request
	// is rejected as unauthenticated whatever its size.
	if err := h.ingestService.Authenticate(r.Context(), r.Header.Get(domain.SignatureHeader)); err != nil {
		respondWithError(w, err, logctx.Logger(r.Context(), h.logger))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logctx.Logger(r.Context(), h.logger).Warn("request_body_too_large", "limit", tooLarge.Limit)
			respondWithDetail(w, http.StatusRequestEntityTooLarge, detailTooLarge)
			return
		}
		respondWithDetail(w, http.StatusBadRequest, detailInvalidJSON)
		return
	}

	verdict, err := h.ingestService.Ingest(r.Context(), domain.ReceivedRequest{
		Headers: flattenHeaders(r.Header),
		Body:    body,
	})
	if err != nil {
		respondWithError(w, err, logctx.Logger(r.Context(), h.logger))
		return
	}

	respondWithJSON(w, http.StatusOK, newIngestResponse(verdict))
}

// flattenHeaders keeps the first value of each header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
