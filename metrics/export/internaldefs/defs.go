package internaldefs

import (
	identity "github.com/shahramvafadar/darwin-identity"
)

// CounterDef binds an engine metric ID to its exported name and help text.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   identity.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: identity.MetricLoginSuccess, Name: "identity_login_success_total", Help: "Successful login attempts."},
	{ID: identity.MetricLoginFailure, Name: "identity_login_failure_total", Help: "Failed login attempts."},
	{ID: identity.MetricLoginRateLimited, Name: "identity_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: identity.MetricMFARequired, Name: "identity_mfa_required_total", Help: "Login flows deferred to a second factor."},
	{ID: identity.MetricTOTPSuccess, Name: "identity_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: identity.MetricTOTPFailure, Name: "identity_totp_failure_total", Help: "Failed TOTP verifications, replays included."},
	{ID: identity.MetricWebAuthnSuccess, Name: "identity_webauthn_success_total", Help: "Completed WebAuthn ceremonies."},
	{ID: identity.MetricWebAuthnFailure, Name: "identity_webauthn_failure_total", Help: "Failed WebAuthn ceremonies."},
	{ID: identity.MetricTokensIssued, Name: "identity_tokens_issued_total", Help: "Issued access and refresh token pairs."},
	{ID: identity.MetricRefreshSuccess, Name: "identity_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: identity.MetricRefreshFailure, Name: "identity_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: identity.MetricRefreshRevoked, Name: "identity_refresh_revoked_total", Help: "Explicit refresh token revocations."},
	{ID: identity.MetricRevokeAll, Name: "identity_revoke_all_total", Help: "Bulk per-user revocations."},
	{ID: identity.MetricValidateFailure, Name: "identity_validate_failure_total", Help: "Access token validation failures."},
	{ID: identity.MetricPermissionDenied, Name: "identity_permission_denied_total", Help: "Negative permission evaluations."},
}
