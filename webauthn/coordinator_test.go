package webauthn

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		RPDisplayName: "Darwin",
		RPID:          "localhost",
		RPOrigins:     []string{"http://localhost:8080"},
		CeremonyTTL:   5 * time.Minute,
		RedisPrefix:   "wa",
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	coordinator, err := NewCoordinator(testConfig(), NewCeremonyStore(client, "wa"))
	require.NoError(t, err)
	return coordinator, mr
}

func account() Account {
	return Account{
		ID:          "user-1",
		Name:        "alice@example.com",
		DisplayName: "Alice",
	}
}

func TestNewCoordinatorValidation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := NewCeremonyStore(client, "wa")

	cfg := testConfig()
	cfg.RPID = ""
	_, err = NewCoordinator(cfg, sessions)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.CeremonyTTL = 0
	_, err = NewCoordinator(cfg, sessions)
	assert.Error(t, err)

	_, err = NewCoordinator(testConfig(), nil)
	assert.Error(t, err)
}

func TestBeginRegistrationProducesOptions(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	ceremony, err := coordinator.BeginRegistration(context.Background(), account())
	require.NoError(t, err)
	require.NotEmpty(t, ceremony.Challenge)
	require.NotEmpty(t, ceremony.Options)

	// The options payload is the JSON the client hands to the authenticator.
	var payload struct {
		PublicKey struct {
			Challenge string `json:"challenge"`
			RP        struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"rp"`
			User struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(ceremony.Options, &payload))
	assert.Equal(t, "localhost", payload.PublicKey.RP.ID)
	assert.Equal(t, "Darwin", payload.PublicKey.RP.Name)
	assert.Equal(t, "alice@example.com", payload.PublicKey.User.Name)
	assert.NotEmpty(t, payload.PublicKey.Challenge)
}

func TestBeginLoginRequiresCredentials(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	// An account with no registered credentials has nothing to assert with.
	_, err := coordinator.BeginLogin(context.Background(), account())
	assert.ErrorIs(t, err, ErrCeremonyFailed)
}

func TestBeginLoginWithCredential(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	acct := account()
	acct.Credentials = []CredentialRecord{{
		CredentialID: []byte("credential-1"),
		PublicKey:    []byte{0x01, 0x02},
		SignCount:    7,
	}}

	ceremony, err := coordinator.BeginLogin(context.Background(), acct)
	require.NoError(t, err)
	assert.NotEmpty(t, ceremony.Challenge)
	assert.NotEmpty(t, ceremony.Options)
}

func TestFinishWithoutBegin(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	_, err := coordinator.FinishRegistration(context.Background(), account(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrCeremonyNotFound)

	_, err = coordinator.FinishLogin(context.Background(), account(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestCeremonySessionIsSingleUse(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coordinator.BeginRegistration(ctx, account())
	require.NoError(t, err)

	// A malformed response consumes the session even though it fails.
	_, err = coordinator.FinishRegistration(ctx, account(), []byte(`not json`))
	assert.ErrorIs(t, err, ErrCeremonyFailed)

	_, err = coordinator.FinishRegistration(ctx, account(), []byte(`not json`))
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestFinishLoginRejectsMalformedAssertion(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	ctx := context.Background()

	acct := account()
	acct.Credentials = []CredentialRecord{{
		CredentialID: []byte("credential-1"),
		PublicKey:    []byte{0x01, 0x02},
		SignCount:    7,
	}}

	_, err := coordinator.BeginLogin(ctx, acct)
	require.NoError(t, err)

	// The assertion body fails to parse, and the session is spent on the
	// attempt.
	_, err = coordinator.FinishLogin(ctx, acct, []byte(`not json`))
	assert.ErrorIs(t, err, ErrCeremonyFailed)

	_, err = coordinator.FinishLogin(ctx, acct, []byte(`not json`))
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestNewCoordinatorStrictCounters(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.StrictCounters = true
	coordinator, err := NewCoordinator(cfg, NewCeremonyStore(client, "wa"))
	require.NoError(t, err)
	assert.True(t, coordinator.strict)
}

func TestCeremonySessionExpires(t *testing.T) {
	coordinator, mr := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coordinator.BeginRegistration(ctx, account())
	require.NoError(t, err)

	mr.FastForward(6 * time.Minute)

	_, err = coordinator.FinishRegistration(ctx, account(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestSecondBeginReplacesSession(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	ctx := context.Background()

	first, err := coordinator.BeginRegistration(ctx, account())
	require.NoError(t, err)
	second, err := coordinator.BeginRegistration(ctx, account())
	require.NoError(t, err)
	assert.NotEqual(t, first.Challenge, second.Challenge)

	store := coordinator.sessions
	session, err := store.Consume(ctx, purposeRegistration, "user-1")
	require.NoError(t, err)
	assert.Equal(t, second.Challenge, session.Challenge)

	// Only one session existed; the first Begin's state is gone.
	_, err = store.Consume(ctx, purposeRegistration, "user-1")
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestCeremonyPurposesIsolated(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coordinator.BeginRegistration(ctx, account())
	require.NoError(t, err)

	// A pending registration must not complete a login.
	_, err = coordinator.FinishLogin(ctx, account(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestCounterAdvanced(t *testing.T) {
	cases := []struct {
		name   string
		stored uint32
		latest uint32
		strict bool
		want   bool
	}{
		{"strictly increasing", 5, 6, false, true},
		{"large jump", 5, 500, false, true},
		{"equal non-zero", 5, 5, false, false},
		{"regressed", 5, 4, false, false},
		{"reset to zero", 5, 0, false, false},
		{"counterless authenticator", 0, 0, false, true},
		{"first real increment", 0, 1, false, true},
		{"strict rejects counterless", 0, 0, true, false},
		{"strict keeps increments", 0, 1, true, true},
		{"strict keeps regression failure", 5, 4, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, counterAdvanced(tc.stored, tc.latest, tc.strict))
		})
	}
}

func TestAccountCredentialMapping(t *testing.T) {
	acct := Account{
		ID:          "user-1",
		Name:        "alice@example.com",
		DisplayName: "Alice",
		Credentials: []CredentialRecord{{
			CredentialID:    []byte("credential-1"),
			PublicKey:       []byte{0xAA},
			AttestationType: "none",
			AAGUID:          []byte{0x01},
			SignCount:       42,
			BackupEligible:  true,
		}},
	}

	assert.Equal(t, []byte("user-1"), acct.WebAuthnID())
	assert.Equal(t, "alice@example.com", acct.WebAuthnName())
	assert.Equal(t, "Alice", acct.WebAuthnDisplayName())

	creds := acct.WebAuthnCredentials()
	require.Len(t, creds, 1)
	assert.Equal(t, []byte("credential-1"), creds[0].ID)
	assert.Equal(t, uint32(42), creds[0].Authenticator.SignCount)
	assert.True(t, creds[0].Flags.BackupEligible)
	assert.False(t, creds[0].Flags.BackupState)
}
