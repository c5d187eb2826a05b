package identity

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/shahramvafadar/darwin-identity/internal/audit"
	internalmetrics "github.com/shahramvafadar/darwin-identity/internal/metrics"
)

// SecuritySettings is the mutable token configuration snapshot read from the
// platform's settings store. The core only reads it; rotation is an operator
// action on the caller's side (move current key to previous, install a new
// current key).
type SecuritySettings struct {
	JWTEnabled         bool
	Issuer             string
	Audience           string
	AccessTokenMinutes int
	RefreshTokenDays   int
	CurrentSigningKey  []byte
	PreviousSigningKey []byte
	ClockSkewSeconds   int
	EmitScopes         bool
}

// SettingsProvider supplies the current [SecuritySettings] snapshot. The
// engine caches the result for Config.Token.SettingsCacheTTL, so staleness
// after a key rotation is bounded by that TTL.
type SettingsProvider interface {
	SecuritySettings(ctx context.Context) (SecuritySettings, error)
}

// SettingsProviderFunc adapts a function to the [SettingsProvider] interface.
type SettingsProviderFunc func(ctx context.Context) (SecuritySettings, error)

// SecuritySettings calls f.
func (f SettingsProviderFunc) SecuritySettings(ctx context.Context) (SecuritySettings, error) {
	return f(ctx)
}

// CredentialRecord is the slice of the user aggregate this core needs. The
// password hash is opaque PHC text; the security stamp is an opaque marker
// regenerated on every credential-affecting mutation.
type CredentialRecord struct {
	UserID        string
	Email         string
	PasswordHash  string
	SecurityStamp string
	TOTPEnabled   bool
	// TOTPSecret is the base32 shared secret, empty unless TOTPEnabled.
	// Never exposed past this boundary after enrollment.
	TOTPSecret      string
	WebAuthnEnabled bool
}

// CredentialProvider is the contract the caller implements over its user
// store. All lookups that miss must return ErrInvalidCredentials-compatible
// failures by returning (CredentialRecord{}, false, nil); errors are reserved
// for transport faults.
type CredentialProvider interface {
	ByIdentifier(ctx context.Context, identifier string) (CredentialRecord, bool, error)
	ByID(ctx context.Context, userID string) (CredentialRecord, bool, error)
	// UpdateSecurityStamp persists a fresh stamp for the user. Called by the
	// engine whenever a factor enrollment changes.
	UpdateSecurityStamp(ctx context.Context, userID, stamp string) error
	// EnableTOTP stores the base32 secret and marks the factor enrolled.
	EnableTOTP(ctx context.Context, userID, secretBase32 string) error
	// DisableTOTP destroys the stored secret.
	DisableTOTP(ctx context.Context, userID string) error
	// TOTPLastUsedCounter returns the highest HOTP counter accepted so far.
	TOTPLastUsedCounter(ctx context.Context, userID string) (int64, error)
	// SetTOTPLastUsedCounter persists the counter after a successful verify.
	SetTOTPLastUsedCounter(ctx context.Context, userID string, counter int64) error
}

// TokenPair is the result of issuance and refresh.
type TokenPair struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// LoginResult carries tokens on full success, or the MFA gate state when a
// second factor is still owed.
type LoginResult struct {
	UserID      string
	Tokens      *TokenPair
	MFARequired bool
	// MFAKinds lists the factors the account can satisfy ("totp",
	// "webauthn") when MFARequired is set.
	MFAKinds []string
}

// AccessClaimsResult is the decoded, validated content of an access token.
type AccessClaimsResult struct {
	UserID    string
	Email     string
	TokenID   string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TOTPProvision holds the raw secret material handed to the user exactly once
// at enrollment.
type TOTPProvision struct {
	SecretBase32 string
	URI          string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess counts fully authenticated logins.
	MetricLoginSuccess = MetricID(internalmetrics.MetricLoginSuccess)
	// MetricLoginFailure counts credential verification failures.
	MetricLoginFailure = MetricID(internalmetrics.MetricLoginFailure)
	// MetricLoginRateLimited counts limiter rejections.
	MetricLoginRateLimited = MetricID(internalmetrics.MetricLoginRateLimited)
	// MetricMFARequired counts logins deferred to a second factor.
	MetricMFARequired = MetricID(internalmetrics.MetricMFARequired)
	// MetricTOTPSuccess counts accepted TOTP codes.
	MetricTOTPSuccess = MetricID(internalmetrics.MetricTOTPSuccess)
	// MetricTOTPFailure counts rejected TOTP codes, replays included.
	MetricTOTPFailure = MetricID(internalmetrics.MetricTOTPFailure)
	// MetricWebAuthnSuccess counts completed authenticator ceremonies.
	MetricWebAuthnSuccess = MetricID(internalmetrics.MetricWebAuthnSuccess)
	// MetricWebAuthnFailure counts failed ceremonies, clone signals included.
	MetricWebAuthnFailure = MetricID(internalmetrics.MetricWebAuthnFailure)
	// MetricTokensIssued counts issued access+refresh pairs.
	MetricTokensIssued = MetricID(internalmetrics.MetricTokensIssued)
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess = MetricID(internalmetrics.MetricRefreshSuccess)
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure = MetricID(internalmetrics.MetricRefreshFailure)
	// MetricRefreshRevoked counts explicit refresh-token revocations.
	MetricRefreshRevoked = MetricID(internalmetrics.MetricRefreshRevoked)
	// MetricRevokeAll counts bulk per-user revocations.
	MetricRevokeAll = MetricID(internalmetrics.MetricRevokeAll)
	// MetricValidateFailure counts access-token validation failures.
	MetricValidateFailure = MetricID(internalmetrics.MetricValidateFailure)
	// MetricPermissionDenied counts negative permission evaluations.
	MetricPermissionDenied = MetricID(internalmetrics.MetricPermissionDenied)
)

// Metrics holds atomic counters for engine events.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance. When cfg.Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}
