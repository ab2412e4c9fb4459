package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/webhook-receiver/internal/config"
	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
	"github.com/DanielPopoola/webhook-receiver/internal/testhelpers"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *WebhookRepository {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:           config.DriverSQLite,
		URL:              filepath.Join(t.TempDir(), "webhooks.db"),
		StatementTimeout: 5 * time.Second,
	}

	repo, err := Open(context.Background(), cfg, testhelpers.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestInsertIfAbsent_CreatesThenDuplicates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	fp := strings.Repeat("a", domain.FingerprintLength)
	receivedAt := time.Date(2026, 3, 4, 5, 6, 7, 891000000, time.UTC)

	first, err := repo.InsertIfAbsent(ctx, fp, []byte(`{"a":1}`), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.Created(1), first)

	second, err := repo.InsertIfAbsent(ctx, fp, []byte(`{"a":1}`), receivedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyExists(1), second)

	rec, err := repo.FindByFingerprint(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, fp, rec.Fingerprint)
	assert.Equal(t, `{"a":1}`, string(rec.CanonicalPayload))
	assert.True(t, receivedAt.Equal(rec.ReceivedAt))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsertIfAbsent_DistinctFingerprints(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a, err := repo.InsertIfAbsent(ctx, strings.Repeat("1", 64), []byte(`1`), time.Now())
	require.NoError(t, err)
	b, err := repo.InsertIfAbsent(ctx, strings.Repeat("2", 64), []byte(`2`), time.Now())
	require.NoError(t, err)

	assert.True(t, a.IsCreated())
	assert.True(t, b.IsCreated())
	assert.NotEqual(t, a.RecordID, b.RecordID)
}

func TestFindByFingerprint_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.FindByFingerprint(context.Background(), strings.Repeat("0", 64))
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestInsertIfAbsent_Concurrent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	fp := strings.Repeat("c", domain.FingerprintLength)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		ids      = map[int64]struct{}{}
		firstErr error
	)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			o, err := repo.InsertIfAbsent(ctx, fp, []byte(`{}`), time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				firstErr = err
				return
			}
			if o.IsCreated() {
				created++
			}
			ids[o.RecordID] = struct{}{}
		}()
	}
	close(start)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestMigrate_Idempotent(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: webhooks.fingerprint")))
	assert.False(t, IsUniqueViolation(nil))
}
