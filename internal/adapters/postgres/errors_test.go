package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsFingerprintConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"fingerprint constraint", &pgconn.PgError{Code: "23505", ConstraintName: "webhooks_fingerprint_key"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "webhooks_fingerprint_key"}), true},
		{"other unique constraint", &pgconn.PgError{Code: "23505", ConstraintName: "webhooks_pkey"}, false},
		{"not null violation", &pgconn.PgError{Code: "23502", ConstraintName: "webhooks_fingerprint_key"}, false},
		{"message text only", errors.New(`duplicate key value violates unique constraint "webhooks_fingerprint_key"`), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsFingerprintConflict(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE constraint failed")))
}
