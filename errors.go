package identity

import "errors"

var (
	// ErrInvalidCredentials is returned for every authentication failure that
	// the caller must not be able to distinguish: unknown identifier, wrong
	// password, or a disabled credential record.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the sliding-window limiter rejects
	// a login attempt. Reported separately from ErrInvalidCredentials so
	// clients can back off instead of re-prompting.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMFARequired is returned by LoginWithTOTP when the account owes a
	// second factor and no code was supplied.
	ErrMFARequired = errors.New("second factor required")
	// ErrTOTPInvalid is returned when a supplied TOTP code does not match any
	// step in the drift window or replays an already-used step.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotConfigured is returned when a TOTP operation targets an
	// account without an enrolled secret.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrTOTPSecretMalformed indicates a stored secret that is not valid
	// base32. This is an integration fault, not a user error.
	ErrTOTPSecretMalformed = errors.New("malformed totp secret")
	// ErrJWTDisabled is returned when token issuance is administratively
	// disabled in the settings snapshot. Configuration class: fatal, loud.
	ErrJWTDisabled = errors.New("jwt issuance disabled by configuration")
	// ErrSigningKeyMissing is returned when no current signing key is
	// configured. Configuration class: fatal, loud.
	ErrSigningKeyMissing = errors.New("no current signing key configured")
	// ErrTokenInvalid is returned when an access token fails signature,
	// issuer, audience, or lifetime validation.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenSubjectMissing is returned when an otherwise valid access token
	// carries no parseable subject claim.
	ErrTokenSubjectMissing = errors.New("token subject missing")
	// ErrRefreshInvalid covers every refresh-token failure: unknown value,
	// expired, already used, or device mismatch. Uniform on purpose.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrScopeInvalid is returned when token issuance is requested with a
	// scope outside the registered set.
	ErrScopeInvalid = errors.New("invalid scope")
	// ErrWebAuthnDisabled is returned from ceremony methods when no WebAuthn
	// coordinator was configured at build time.
	ErrWebAuthnDisabled = errors.New("webauthn not enabled")
	// ErrStoreUnavailable wraps Redis transport failures on the token and
	// ceremony stores.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrEngineNotReady is returned from methods on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
