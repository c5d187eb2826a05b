package identity

import (
	"context"
	"sync"
	"time"
)

const (
	minAccessTTL  = 5 * time.Minute
	minRefreshTTL = 24 * time.Hour
)

// tokenParameters is the resolved, validated form of the settings snapshot.
// Keys[0] is the current signing key; a configured previous key follows it so
// validators honor both during the rotation grace window.
type tokenParameters struct {
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Keys       [][]byte
	EmitScopes bool
}

// keyring caches the settings snapshot for a short TTL so key rotation does
// not cost a settings read per request. Reads and refreshes are serialized by
// a mutex; staleness is bounded by the TTL.
type keyring struct {
	settings SettingsProvider
	cacheTTL time.Duration

	mu        sync.Mutex
	cached    tokenParameters
	fetchedAt time.Time
	now       func() time.Time
}

func newKeyring(settings SettingsProvider, cacheTTL time.Duration) *keyring {
	return &keyring{
		settings: settings,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Parameters returns the cached parameters, refreshing from the settings
// provider on first use or TTL expiry. Disabled issuance or a missing current
// key is a configuration error and fails loudly; it is never folded into an
// authentication failure.
func (k *keyring) Parameters(ctx context.Context) (tokenParameters, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.fetchedAt.IsZero() && k.now().Sub(k.fetchedAt) < k.cacheTTL {
		return k.cached, nil
	}

	snap, err := k.settings.SecuritySettings(ctx)
	if err != nil {
		return tokenParameters{}, err
	}
	params, err := resolveParameters(snap)
	if err != nil {
		return tokenParameters{}, err
	}

	k.cached = params
	k.fetchedAt = k.now()
	return params, nil
}

// Invalidate drops the cached snapshot so the next call re-reads settings.
func (k *keyring) Invalidate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.fetchedAt = time.Time{}
}

func resolveParameters(snap SecuritySettings) (tokenParameters, error) {
	if !snap.JWTEnabled {
		return tokenParameters{}, ErrJWTDisabled
	}
	if len(snap.CurrentSigningKey) == 0 {
		return tokenParameters{}, ErrSigningKeyMissing
	}

	accessTTL := time.Duration(snap.AccessTokenMinutes) * time.Minute
	if accessTTL < minAccessTTL {
		accessTTL = minAccessTTL
	}
	refreshTTL := time.Duration(snap.RefreshTokenDays) * 24 * time.Hour
	if refreshTTL < minRefreshTTL {
		refreshTTL = minRefreshTTL
	}
	skew := time.Duration(snap.ClockSkewSeconds) * time.Second
	if skew < 0 {
		skew = 0
	}

	keys := [][]byte{append([]byte(nil), snap.CurrentSigningKey...)}
	if len(snap.PreviousSigningKey) > 0 {
		keys = append(keys, append([]byte(nil), snap.PreviousSigningKey...))
	}

	return tokenParameters{
		Issuer:     snap.Issuer,
		Audience:   snap.Audience,
		ClockSkew:  skew,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		Keys:       keys,
		EmitScopes: snap.EmitScopes,
	}, nil
}
