// Package idempotency replays the first response for a repeated
// Idempotency-Key so retried checkouts and creations do not consume a second
// receipt or label number.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTTL bounds how long a completed response is replayed.
	DefaultTTL = 24 * time.Hour
	// DefaultPendingTTL bounds how long an unfinished request holds its key.
	DefaultPendingTTL = 2 * time.Minute
)

// State is the outcome of reserving a key.
type State int

const (
	// StateNew means the caller owns the key and should run the request.
	StateNew State = iota
	// StateCompleted means a stored response should be replayed.
	StateCompleted
	// StatePending means another request with the same key is still running.
	StatePending
)

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key already used for a different request")

// Response is the replayable part of an HTTP response.
type Response struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`
}

// record is what stores persist per key.
type record struct {
	Fingerprint string    `json:"fingerprint"`
	Completed   bool      `json:"completed"`
	Response    Response  `json:"response"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Store persists reservations and completed responses.
type Store interface {
	// Reserve claims key for fingerprint, holding it for pendingTTL.
	Reserve(ctx context.Context, key, fingerprint string, pendingTTL time.Duration) (State, Response, error)
	// Complete stores resp under key for ttl.
	Complete(ctx context.Context, key, fingerprint string, resp Response, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

func classify(rec record, fingerprint string) (State, Response, error) {
	if rec.Fingerprint != fingerprint {
		return StatePending, Response{}, ErrFingerprintMismatch
	}
	if rec.Completed {
		return StateCompleted, rec.Response, nil
	}
	return StatePending, Response{}, nil
}

func hashHex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// replayableHeaders drops hop-by-hop and per-response headers.
func replayableHeaders(header http.Header) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		switch strings.ToLower(name) {
		case "content-length", "date", "connection", "keep-alive", "transfer-encoding", "upgrade", "x-request-id":
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
