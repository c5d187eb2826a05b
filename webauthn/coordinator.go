package webauthn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

var (
	// ErrCeremonyNotFound is returned when no pending ceremony session exists
	// for the user and purpose: it expired, was already consumed, or was
	// never begun.
	ErrCeremonyNotFound = errors.New("webauthn ceremony not found")
	// ErrCloneDetected is returned when an assertion's signature counter has
	// not advanced past the stored counter. A cloned authenticator replays
	// old counter state, so the ceremony must fail.
	ErrCloneDetected = errors.New("webauthn authenticator clone detected")
	// ErrCeremonyFailed wraps attestation and assertion verification
	// failures.
	ErrCeremonyFailed = errors.New("webauthn ceremony failed")
)

// Config carries relying-party metadata and ceremony-session tuning.
type Config struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	// CeremonyTTL bounds how long the client has between Begin and Finish.
	CeremonyTTL time.Duration
	RedisPrefix string
	// StrictCounters rejects any assertion whose signature counter does not
	// strictly increase. Counterless authenticators report zero on both
	// sides and are tolerated by default; strict deployments can refuse
	// them.
	StrictCounters bool
}

// CredentialRecord is the durable credential material the caller persists:
// everything needed to allow-list the credential on later logins and to run
// clone detection against the signature counter.
type CredentialRecord struct {
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	BackupEligible  bool
	BackupState     bool
}

// Account adapts a platform user to the ceremony library's view: a stable
// byte ID, naming for the authenticator UI, and the already-registered
// credentials.
type Account struct {
	ID          string
	Name        string
	DisplayName string
	Credentials []CredentialRecord
}

// WebAuthnID implements webauthn.User.
func (a Account) WebAuthnID() []byte { return []byte(a.ID) }

// WebAuthnName implements webauthn.User.
func (a Account) WebAuthnName() string { return a.Name }

// WebAuthnDisplayName implements webauthn.User.
func (a Account) WebAuthnDisplayName() string { return a.DisplayName }

// WebAuthnCredentials implements webauthn.User.
func (a Account) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(a.Credentials))
	for _, c := range a.Credentials {
		out = append(out, webauthn.Credential{
			ID:              c.CredentialID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Flags: webauthn.CredentialFlags{
				BackupEligible: c.BackupEligible,
				BackupState:    c.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				AAGUID:    c.AAGUID,
				SignCount: c.SignCount,
			},
		})
	}
	return out
}

// Ceremony is the Begin-side result: the full options payload to hand to the
// client, plus the challenge for callers that track it separately. The full
// server-side session state is retained in the session store, because
// verification needs the original options, not just the challenge.
type Ceremony struct {
	Options   json.RawMessage
	Challenge string
}

// Coordinator drives registration and login ceremonies. Each Begin stores a
// single-use session; each Finish consumes it, win or lose.
type Coordinator struct {
	wa       *webauthn.WebAuthn
	sessions *CeremonyStore
	ttl      time.Duration
	strict   bool
}

// NewCoordinator validates the relying-party config and builds a Coordinator
// using the given session store.
func NewCoordinator(cfg Config, sessions *CeremonyStore) (*Coordinator, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, err
	}
	if cfg.CeremonyTTL <= 0 {
		return nil, errors.New("ceremony ttl must be > 0")
	}
	if sessions == nil {
		return nil, errors.New("ceremony session store required")
	}

	return &Coordinator{
		wa:       wa,
		sessions: sessions,
		ttl:      cfg.CeremonyTTL,
		strict:   cfg.StrictCounters,
	}, nil
}

// BeginRegistration issues a fresh challenge and creation options, excluding
// the account's registered credentials so an authenticator is not enrolled
// twice.
func (c *Coordinator) BeginRegistration(ctx context.Context, acct Account) (*Ceremony, error) {
	exclusions := make([]protocol.CredentialDescriptor, 0, len(acct.Credentials))
	for _, cred := range acct.Credentials {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.CredentialID,
		})
	}

	creation, session, err := c.wa.BeginRegistration(acct, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	if err := c.sessions.Save(ctx, purposeRegistration, acct.ID, session, c.ttl); err != nil {
		return nil, err
	}

	options, err := json.Marshal(creation)
	if err != nil {
		return nil, err
	}
	return &Ceremony{Options: options, Challenge: session.Challenge}, nil
}

// FinishRegistration verifies the client's attestation response against the
// stored ceremony session and returns the credential material to persist.
// The session is consumed whether verification succeeds or fails.
func (c *Coordinator) FinishRegistration(ctx context.Context, acct Account, response []byte) (*CredentialRecord, error) {
	session, err := c.sessions.Consume(ctx, purposeRegistration, acct.ID)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	cred, err := c.wa.CreateCredential(acct, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	return recordFromCredential(cred), nil
}

// BeginLogin issues a fresh challenge and assertion options allow-listing the
// account's registered credentials.
func (c *Coordinator) BeginLogin(ctx context.Context, acct Account) (*Ceremony, error) {
	assertion, session, err := c.wa.BeginLogin(acct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	if err := c.sessions.Save(ctx, purposeLogin, acct.ID, session, c.ttl); err != nil {
		return nil, err
	}

	options, err := json.Marshal(assertion)
	if err != nil {
		return nil, err
	}
	return &Ceremony{Options: options, Challenge: session.Challenge}, nil
}

// FinishLogin verifies the assertion and returns the matched credential with
// its advanced signature counter, which the caller must persist before the
// next login. A counter that fails to advance is treated as a cloned
// authenticator and fails the ceremony.
func (c *Coordinator) FinishLogin(ctx context.Context, acct Account, response []byte) (*CredentialRecord, error) {
	session, err := c.sessions.Consume(ctx, purposeLogin, acct.ID)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	cred, err := c.wa.ValidateLogin(acct, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}
	if cred.Authenticator.CloneWarning {
		return nil, ErrCloneDetected
	}
	if stored, ok := storedSignCount(acct, cred.ID); ok {
		if !counterAdvanced(stored, cred.Authenticator.SignCount, c.strict) {
			return nil, ErrCloneDetected
		}
	}

	return recordFromCredential(cred), nil
}

// counterAdvanced applies the clone-detection invariant: the signature
// counter must strictly increase across logins. Authenticators without a
// counter always report zero on both sides, which is the one non-increase
// tolerated unless strict counter checking is on.
func counterAdvanced(stored, latest uint32, strict bool) bool {
	if !strict && stored == 0 && latest == 0 {
		return true
	}
	return latest > stored
}

func storedSignCount(acct Account, credentialID []byte) (uint32, bool) {
	for _, c := range acct.Credentials {
		if bytes.Equal(c.CredentialID, credentialID) {
			return c.SignCount, true
		}
	}
	return 0, false
}

func recordFromCredential(cred *webauthn.Credential) *CredentialRecord {
	return &CredentialRecord{
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}
