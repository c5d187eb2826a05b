package webauthn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

const (
	purposeRegistration = "reg"
	purposeLogin        = "login"
)

// ErrStoreUnavailable wraps Redis transport failures on the ceremony store.
var ErrStoreUnavailable = errors.New("ceremony store unavailable")

// CeremonyStore keeps pending ceremony sessions in Redis, one per user and
// purpose, TTL-bounded and strictly single-use: Consume removes the session
// before the verification outcome is known, so a failed Finish cannot be
// retried against the same challenge.
type CeremonyStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCeremonyStore builds the Redis-backed session store used by
// [NewCoordinator].
func NewCeremonyStore(client redis.UniversalClient, prefix string) *CeremonyStore {
	return &CeremonyStore{redis: client, prefix: prefix}
}

func (s *CeremonyStore) key(purpose, userID string) string {
	return s.prefix + ":" + purpose + ":" + userID
}

// Save stores the full session state for the pending ceremony. A second
// Begin for the same user and purpose replaces the first; only the latest
// challenge can complete.
func (s *CeremonyStore) Save(
	ctx context.Context,
	purpose, userID string,
	session *webauthn.SessionData,
	ttl time.Duration,
) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(purpose, userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume atomically fetches and deletes the pending session.
func (s *CeremonyStore) Consume(ctx context.Context, purpose, userID string) (*webauthn.SessionData, error) {
	raw, err := s.redis.GetDel(ctx, s.key(purpose, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCeremonyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, ErrCeremonyNotFound
	}
	return &session, nil
}
