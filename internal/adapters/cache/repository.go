// Package cache fronts a dedup store with an in-process record cache.
// Stored records are immutable, so a cached entry never goes stale; expiry only bounds memory.
package cache

import (
	"context"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/core/ports"
	"github.com/patrickmn/go-cache"
)

// entry always knows the record id. Record is nil when the id came from a
// duplicate insert, which does not return the stored received_at.
type entry struct {
	ID     int64
	Record *domain.WebhookRecord
}

type CachedRepository struct {
	inner ports.WebhookRepository
	cache *cache.Cache
}

var _ ports.WebhookRepository = (*CachedRepository)(nil)

// NewCachedRepository wraps inner. Only known fingerprints are cached; misses always reach inner.
func NewCachedRepository(inner ports.WebhookRepository, defaultExpiration, cleanupInterval time.Duration) *CachedRepository {
	return &CachedRepository{
		inner: inner,
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

// InsertIfAbsent answers a repeat fingerprint from the cache without touching the store.
func (c *CachedRepository) InsertIfAbsent(ctx context.Context, fingerprint string, canonicalPayload []byte, receivedAt time.Time) (domain.InsertOutcome, error) {
	if e, found := c.get(fingerprint); found {
		return domain.AlreadyExists(e.ID), nil
	}

	outcome, err := c.inner.InsertIfAbsent(ctx, fingerprint, canonicalPayload, receivedAt)
	if err != nil {
		return outcome, err
	}

	switch outcome.Kind {
	case domain.OutcomeCreated:
		c.cache.SetDefault(fingerprint, &entry{
			ID: outcome.RecordID,
			Record: &domain.WebhookRecord{
				ID:               outcome.RecordID,
				Fingerprint:      fingerprint,
				CanonicalPayload: clonePayload(canonicalPayload),
				ReceivedAt:       receivedAt.UTC(),
			},
		})
	case domain.OutcomeAlreadyExists:
		// Add keeps a full record that a concurrent lookup may have stored.
		_ = c.cache.Add(fingerprint, &entry{ID: outcome.RecordID}, cache.DefaultExpiration)
	}
	return outcome, nil
}

func (c *CachedRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.WebhookRecord, error) {
	if e, found := c.get(fingerprint); found && e.Record != nil {
		return copyRecord(e.Record), nil
	}

	rec, err := c.inner.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(fingerprint, &entry{ID: rec.ID, Record: copyRecord(rec)})
	return rec, nil
}

// Len reports how many fingerprints are currently cached.
func (c *CachedRepository) Len() int {
	return c.cache.ItemCount()
}

func (c *CachedRepository) get(fingerprint string) (*entry, bool) {
	v, found := c.cache.Get(fingerprint)
	if !found {
		return nil, false
	}
	e, ok := v.(*entry)
	return e, ok
}

func copyRecord(r *domain.WebhookRecord) *domain.WebhookRecord {
	copied := *r
	copied.CanonicalPayload = clonePayload(r.CanonicalPayload)
	return &copied
}

func clonePayload(b []byte) []byte {
	return append([]byte(nil), b...)
}
