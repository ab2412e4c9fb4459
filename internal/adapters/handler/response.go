package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

const (
	detailInternal    = "Internal server error"
	detailTooLarge    = "Request body too large"
	detailInvalidJSON = "Invalid JSON body"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// IngestResponse is returned for both fresh and duplicate deliveries.
type IngestResponse struct {
	Status      string `json:"status"`
	Duplicate   bool   `json:"duplicate"`
	RecordID    int64  `json:"record_id"`
	PayloadHash string `json:"payload_hash"`
}

type RecordResponse struct {
	RecordID    int64           `json:"record_id"`
	PayloadHash string          `json:"payload_hash"`
	Payload     json.RawMessage `json:"payload"`
	ReceivedAt  string          `json:"received_at"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondWithDetail(w http.ResponseWriter, status int, detail string) {
	respondWithJSON(w, status, ErrorResponse{Detail: detail})
}

// respondWithError maps a pipeline error to its status. Storage details stay in the logs.
func respondWithError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unclassified error", "error", err)
		respondWithDetail(w, http.StatusInternalServerError, detailInternal)
		return
	}

	switch domainErr.Code {
	case domain.ErrCodeInvalidSignature:
		respondWithDetail(w, http.StatusUnauthorized, domainErr.Message)
	case domain.ErrCodeInvalidJSON:
		respondWithDetail(w, http.StatusBadRequest, detailInvalidJSON)
	case domain.ErrCodeInvalidFingerprint:
		respondWithDetail(w, http.StatusBadRequest, domainErr.Message)
	case domain.ErrCodeRecordNotFound:
		respondWithDetail(w, http.StatusNotFound, domainErr.Message)
	default:
		respondWithDetail(w, http.StatusInternalServerError, detailInternal)
	}
}

func newIngestResponse(v *domain.Verdict) IngestResponse {
	return IngestResponse{
		Status:      string(v.State()),
		Duplicate:   !v.Stored,
		RecordID:    v.RecordID,
		PayloadHash: v.Fingerprint,
	}
}
