package domain

import (
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the shared secret presented by the sender.
const SignatureHeader = "X-Signature"

// FingerprintLength is the length of a hex encoded SHA-256 digest.
const FingerprintLength = 64

// WebhookRecord is a persisted, deduplicated webhook payload.
// Fingerprint is unique across all records and a record is never mutated once written.
type WebhookRecord struct {
	ID               int64
	Fingerprint      string
	CanonicalPayload []byte
	ReceivedAt       time.Time
}

// ReceivedRequest is what the HTTP boundary hands to the ingestion pipeline.
type ReceivedRequest struct {
	Headers map[string]string
	Body    []byte
}

// Header looks up a header value case-insensitively.
func (r ReceivedRequest) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	if v, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota + 1
	OutcomeAlreadyExists
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// InsertOutcome is the tagged result of an insert-if-absent against the dedup store.
type InsertOutcome struct {
	Kind     OutcomeKind
	RecordID int64
}

func Created(id int64) InsertOutcome {
	return InsertOutcome{Kind: OutcomeCreated, RecordID: id}
}

func AlreadyExists(id int64) InsertOutcome {
	return InsertOutcome{Kind: OutcomeAlreadyExists, RecordID: id}
}

func (o InsertOutcome) IsCreated() bool {
	return o.Kind == OutcomeCreated
}

// Verdict is returned to the caller for every accepted request. It is never persisted.
type Verdict struct {
	Stored      bool
	RecordID    int64
	Fingerprint string
}

func (v *Verdict) State() IngestState {
	if v.Stored {
		return StateStored
	}
	return StateDuplicated
}

// IngestState names the stages a request passes through in the ingestion pipeline.
type IngestState string

const (
	StateUnauthenticated IngestState = "unauthenticated"
	StateAuthenticated   IngestState = "authenticated"
	StateParsed          IngestState = "parsed"
	StateCanonicalized   IngestState = "canonicalized"
	StateFingerprinted   IngestState = "fingerprinted"

	StateStored        IngestState = "stored"
	StateDuplicated    IngestState = "duplicate"
	StateAuthRejected  IngestState = "auth_rejected"
	StateMalformedBody IngestState = "malformed_body"
	StateStorageFailed IngestState = "storage_failed"
)

// IsTerminal reports whether no further pipeline stage runs after s.
func (s IngestState) IsTerminal() bool {
	switch s {
	case StateStored, StateDuplicated, StateAuthRejected, StateMalformedBody, StateStorageFailed:
		return true
	}
	return false
}

// IsValidFingerprint reports whether s looks like a lowercase hex SHA-256 digest.
func IsValidFingerprint(s string) bool {
	if len(s) != FingerprintLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
