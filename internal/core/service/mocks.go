package service

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

// MockWebhookRepository is an in-memory dedup store used by tests.
// Insert and lookup happen under one lock, so it honours the same atomicity
// contract as the database-backed repositories.
type MockWebhookRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.WebhookRecord
	nextID  int64
	calls   map[string]int

	// Delay is slept before taking the lock to widen race windows.
	Delay time.Duration

	InsertIfAbsentFn    func(ctx context.Context, fingerprint string, canonicalPayload []byte, receivedAt time.Time) (domain.InsertOutcome, error)
	FindByFingerprintFn func(ctx context.Context, fingerprint string) (*domain.WebhookRecord, error)
}

func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{
		records: make(map[string]*domain.WebhookRecord),
		calls:   make(map[string]int),
	}
}

func (m *MockWebhookRepository) inc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
}

func (m *MockWebhookRepository) GetCalls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

func (m *MockWebhookRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MockWebhookRepository) InsertIfAbsent(ctx context.Context, fingerprint string, canonicalPayload []byte, receivedAt time.Time) (domain.InsertOutcome, error) {
	m.inc("InsertIfAbsent")
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.InsertIfAbsentFn != nil {
		return m.InsertIfAbsentFn(ctx, fingerprint, canonicalPayload, receivedAt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[fingerprint]; ok {
		return domain.AlreadyExists(existing.ID), nil
	}
	m.nextID++
	m.records[fingerprint] = &domain.WebhookRecord{
		ID:               m.nextID,
		Fingerprint:      fingerprint,
		CanonicalPayload: append([]byte(nil), canonicalPayload...),
		ReceivedAt:       receivedAt,
	}
	return domain.Created(m.nextID), nil
}

func (m *MockWebhookRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.WebhookRecord, error) {
	m.inc("FindByFingerprint")
	if m.FindByFingerprintFn != nil {
		return m.FindByFingerprintFn(ctx, fingerprint)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[fingerprint]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, domain.ErrRecordNotFound
}
