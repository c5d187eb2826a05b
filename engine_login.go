package identity

import (
	"context"
	"strings"
)

// Login authenticates a user by identifier and password. deviceID binds the
// refresh token issued on full success.
//
// When the account has a second factor enrolled, no tokens are issued: the
// result carries MFARequired with the factor kinds the account can satisfy,
// and the caller completes the login through [Engine.LoginWithTOTP] or the
// WebAuthn ceremony methods.
//
// Every authentication failure (unknown identifier, wrong password) reports
// ErrInvalidCredentials without distinguishing the cause. Limiter rejections
// report ErrLoginRateLimited so clients can back off instead of re-prompting.
func (e *Engine) Login(ctx context.Context, identifier, password, deviceID string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	limiterKey := limiterKeyFor(identifier)
	if !e.limiter.IsAllowed(limiterKey, e.config.RateLimit.MaxLoginAttempts, e.config.RateLimit.LoginWindow) {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", deviceID, ErrLoginRateLimited, nil)
		return nil, ErrLoginRateLimited
	}

	record, found, err := e.credentials.ByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !found || !e.passwords.Verify(record.PasswordHash, password) {
		e.limiter.Record(limiterKey, e.config.RateLimit.LoginWindow)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, record.UserID, "", deviceID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	e.limiter.Reset(limiterKey)

	if record.TOTPEnabled || record.WebAuthnEnabled {
		kinds := make([]string, 0, 2)
		if record.TOTPEnabled {
			kinds = append(kinds, "totp")
		}
		if record.WebAuthnEnabled {
			kinds = append(kinds, "webauthn")
		}
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditEventMFARequired, true, record.UserID, "", deviceID, nil, nil)
		return &LoginResult{
			UserID:      record.UserID,
			MFARequired: true,
			MFAKinds:    kinds,
		}, nil
	}

	pair, err := e.IssueTokens(ctx, record.UserID, record.Email, nil, deviceID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, record.UserID, "", deviceID, nil, nil)

	return &LoginResult{UserID: record.UserID, Tokens: pair}, nil
}

// LoginWithTOTP runs Login and, when the account owes a second factor,
// completes it with the supplied TOTP code in the same call.
func (e *Engine) LoginWithTOTP(ctx context.Context, identifier, password, code, deviceID string) (*LoginResult, error) {
	result, err := e.Login(ctx, identifier, password, deviceID)
	if err != nil {
		return nil, err
	}
	if !result.MFARequired {
		return result, nil
	}
	if code == "" {
		e.emitAudit(ctx, auditEventMFARequired, false, result.UserID, "", deviceID, ErrMFARequired, nil)
		return nil, ErrMFARequired
	}

	if err := e.VerifyTOTP(ctx, result.UserID, code); err != nil {
		return nil, err
	}

	record, found, err := e.credentials.ByID(ctx, result.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidCredentials
	}

	pair, err := e.IssueTokens(ctx, record.UserID, record.Email, nil, deviceID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, record.UserID, "", deviceID, nil, nil)

	return &LoginResult{UserID: record.UserID, Tokens: pair}, nil
}

// limiterKeyFor normalizes the identifier so case and whitespace variants of
// the same account share one attempt window.
func limiterKeyFor(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
