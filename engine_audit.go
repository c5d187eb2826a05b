package identity

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventMFARequired      = "mfa_required"
	auditEventTokensIssued     = "tokens_issued"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshInvalid   = "refresh_invalid"
	auditEventRefreshRevoked   = "refresh_revoked"
	auditEventRevokeAll        = "revoke_all"
	auditEventValidateFailure  = "token_validate_failure"
	auditEventTOTPProvisioned  = "totp_provisioned"
	auditEventTOTPEnabled      = "totp_enabled"
	auditEventTOTPDisabled     = "totp_disabled"
	auditEventTOTPSuccess      = "totp_success"
	auditEventTOTPFailure      = "totp_failure"
	auditEventWebAuthnSuccess  = "webauthn_success"
	auditEventWebAuthnFailure  = "webauthn_failure"
	auditEventPermissionDenied = "permission_denied"
)

// AuditErrorCode is the stable error label carried in audit events, decoupled
// from sentinel error text so sinks can aggregate on it.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrTOTPInvalid        AuditErrorCode = "totp_invalid"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrInvalidRefresh     AuditErrorCode = "invalid_refresh"
	auditErrInvalidScope       AuditErrorCode = "invalid_scope"
	auditErrConfiguration      AuditErrorCode = "configuration"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	deviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		DeviceID:  deviceID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPSecretMalformed):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenSubjectMissing):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrInvalidRefresh
	case errors.Is(err, ErrScopeInvalid):
		return auditErrInvalidScope
	case errors.Is(err, ErrJWTDisabled),
		errors.Is(err, ErrSigningKeyMissing):
		return auditErrConfiguration
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
