package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock services
type mockIngestService struct {
	authenticateFn func(ctx context.Context, signature string) error
	ingestFn       func(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error)
}

func (m *mockIngestService) Authenticate(ctx context.Context, signature string) error {
	if m.authenticateFn == nil {
		return nil
	}
	return m.authenticateFn(ctx, signature)
}

func (m *mockIngestService) Ingest(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error) {
	return m.ingestFn(ctx, req)
}

type mockQueryService struct {
	getByFingerprintFn func(ctx context.Context, signature, fingerprint string) (*domain.WebhookRecord, error)
}

func (m *mockQueryService) GetByFingerprint(ctx context.Context, signature, fingerprint string) (*domain.WebhookRecord, error) {
	return m.getByFingerprintFn(ctx, signature, fingerprint)
}

const testSecret = "s3cr3t"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRealHandler wires the real services over the in-memory store.
func newRealHandler(maxBody int64) (*WebhookHandler, *service.MockWebhookRepository) {
	repo := service.NewMockWebhookRepository()
	auth := service.NewAuthenticator(testSecret)
	h := NewWebhookHandler(
		service.NewIngestionService(repo, auth, discardLogger()),
		service.NewQueryService(repo, auth, discardLogger()),
		discardLogger(),
		maxBody,
	)
	return h, repo
}

func serve(h *WebhookHandler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func postWebhook(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(domain.SignatureHeader, signature)
	}
	return req
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Detail
}

func TestHandleWebhook_StoredThenDuplicate(t *testing.T) {
	h, repo := newRealHandler(1 << 20)
	wantHash := "d3626ac30a87e6f7a6428233b3c68299976865fa5508e4267c5415c76af7a772"

	rr := serve(h, postWebhook(`{"b":1,"a":2}`, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var first IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.Equal(t, IngestResponse{Status: "stored", Duplicate: false, RecordID: 1, PayloadHash: wantHash}, first)

	rr = serve(h, postWebhook(`{"a": 2, "b": 1}`, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)

	var second IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.Equal(t, IngestResponse{Status: "duplicate", Duplicate: true, RecordID: 1, PayloadHash: wantHash}, second)
	assert.Equal(t, 1, repo.Count())
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	h, repo := newRealHandler(1 << 20)

	for _, sig := range []string{"", "wrong", testSecret + " "} {
		rr := serve(h, postWebhook(`{"a":1}`, sig))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid signature", decodeDetail(t, rr))
	}
	assert.Equal(t, 0, repo.GetCalls("InsertIfAbsent"))
}

func TestHandleWebhook_InvalidSignatureWinsOverBadBody(t *testing.T) {
	h, _ := newRealHandler(1 << 20)

	rr := serve(h, postWebhook(`{not json`, "wrong"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleWebhook_InvalidJSON(t *testing.T) {
	h, repo := newRealHandler(1 << 20)

	for _, body := range []string{``, `{"a":`, `{"a":1} trailing`, `\xff`} {
		rr := serve(h, postWebhook(body, testSecret))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %q", body)
		assert.Equal(t, "Invalid JSON body", decodeDetail(t, rr))
	}
	assert.Equal(t, 0, repo.GetCalls("InsertIfAbsent"))
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	h, repo := newRealHandler(16)

	rr := serve(h, postWebhook(`{"padding":"`+strings.Repeat("x", 64)+`"}`, testSecret))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "Request body too large", decodeDetail(t, rr))
	assert.Equal(t, 0, repo.GetCalls("InsertIfAbsent"))
}

func TestHandleWebhook_OversizedUnsignedIsUnauthorized(t *testing.T) {
	h, repo := newRealHandler(16)
	body := `{"padding":"` + strings.Repeat("x", 64) + `"}`

	for _, sig := range []string{"", "wrong"} {
		rr := serve(h, postWebhook(body, sig))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid signature", decodeDetail(t, rr))
	}
	assert.Equal(t, 0, repo.GetCalls("InsertIfAbsent"))
}

func TestHandleWebhook_BodyNotReadWhenUnsigned(t *testing.T) {
	ingestCalled := false
	mockIngest := &mockIngestService{
		authenticateFn: func(ctx context.Context, signature string) error {
			return domain.NewInvalidSignatureError()
		},
		ingestFn: func(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error) {
			ingestCalled = true
			return nil, nil
		},
	}
	h := NewWebhookHandler(mockIngest, nil, discardLogger(), 1<<20)
	body := &countingReader{r: strings.NewReader(`{"a":1}`)}

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/webhook", body))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, ingestCalled)
	assert.Zero(t, body.n)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestHandleWebhook_StorageFailureHidesDetail(t *testing.T) {
	mockIngest := &mockIngestService{
		ingestFn: func(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error) {
			return nil, domain.NewStorageError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))
		},
	}
	h := NewWebhookHandler(mockIngest, nil, discardLogger(), 1<<20)

	rr := serve(h, postWebhook(`{}`, testSecret))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeDetail(t, rr))
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestHandleWebhook_PassesHeadersAndBody(t *testing.T) {
	var got domain.ReceivedRequest
	mockIngest := &mockIngestService{
		ingestFn: func(ctx context.Context, req domain.ReceivedRequest) (*domain.Verdict, error) {
			got = req
			return &domain.Verdict{Stored: true, RecordID: 7, Fingerprint: "f"}, nil
		},
	}
	h := NewWebhookHandler(mockIngest, nil, discardLogger(), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`[1,2]`))
	req.Header.Set("x-signature", "abc")
	rr := serve(h, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", got.Header(domain.SignatureHeader))
	assert.Equal(t, `[1,2]`, string(got.Body))
}

func TestHandleWebhook_WrongMethod(t *testing.T) {
	h, _ := newRealHandler(1 << 20)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleGetWebhook_Success(t *testing.T) {
	h, _ := newRealHandler(1 << 20)
	rr := serve(h, postWebhook(`{"b":[true,null],"a":"x"}`, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	var stored IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stored))

	req := httptest.NewRequest(http.MethodGet, "/webhooks/"+stored.PayloadHash, nil)
	req.Header.Set(domain.SignatureHeader, testSecret)
	rr = serve(h, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp RecordResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, stored.RecordID, resp.RecordID)
	assert.Equal(t, stored.PayloadHash, resp.PayloadHash)
	assert.JSONEq(t, `{"a":"x","b":[true,null]}`, string(resp.Payload))
	_, err := time.Parse(time.RFC3339Nano, resp.ReceivedAt)
	assert.NoError(t, err)
}

func TestHandleGetWebhook_Errors(t *testing.T) {
	h, _ := newRealHandler(1 << 20)
	missing := strings.Repeat("a", domain.FingerprintLength)

	tests := []struct {
		name      string
		path      string
		signature string
		status    int
	}{
		{"bad signature", "/webhooks/" + missing, "nope", http.StatusUnauthorized},
		{"bad signature beats bad fingerprint", "/webhooks/xyz", "", http.StatusUnauthorized},
		{"malformed fingerprint", "/webhooks/xyz", testSecret, http.StatusBadRequest},
		{"uppercase fingerprint", "/webhooks/" + strings.ToUpper(missing), testSecret, http.StatusBadRequest},
		{"not found", "/webhooks/" + missing, testSecret, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.signature != "" {
				req.Header.Set(domain.SignatureHeader, tt.signature)
			}
			rr := serve(h, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, decodeDetail(t, rr))
		})
	}
}

func TestHandleGetWebhook_StorageFailure(t *testing.T) {
	mockQuery := &mockQueryService{
		getByFingerprintFn: func(ctx context.Context, signature, fingerprint string) (*domain.WebhookRecord, error) {
			return nil, domain.NewStorageError(errors.New("timeout"))
		},
	}
	h := NewWebhookHandler(nil, mockQuery, discardLogger(), 1<<20)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/webhooks/"+strings.Repeat("b", 64), nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeDetail(t, rr))
}

func TestHandleHealth(t *testing.T) {
	h := NewWebhookHandler(nil, nil, discardLogger(), 0)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
