package identity

import (
	"context"
	"time"

	"github.com/shahramvafadar/darwin-identity/webauthn"
)

// ProvisionTOTP generates fresh secret material for TOTP enrollment. Nothing
// is persisted yet: the caller shows the URI to the user and completes the
// enrollment through [Engine.ConfirmTOTPEnrollment] with a code generated
// from this secret. The raw secret leaves the engine exactly once, here.
func (e *Engine) ProvisionTOTP(ctx context.Context, userID string) (*TOTPProvision, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	record, found, err := e.credentials.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidCredentials
	}

	_, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTOTPProvisioned, true, userID, "", "", nil, nil)

	return &TOTPProvision{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, record.Email),
	}, nil
}

// ConfirmTOTPEnrollment proves possession of the provisioned secret with a
// live code and persists the enrollment. The security stamp is regenerated
// and every refresh token revoked, so sessions predating the factor change
// cannot continue.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, userID, secretBase32, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	secret, err := e.totp.DecodeSecret(secretBase32)
	if err != nil {
		return err
	}

	ok, counter, err := e.totp.VerifyCode(secret, code, e.config.TOTP.Skew, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, userID, "", "", ErrTOTPInvalid, nil)
		return ErrTOTPInvalid
	}

	if err := e.credentials.EnableTOTP(ctx, userID, secretBase32); err != nil {
		return err
	}
	if e.config.TOTP.EnforceReplayProtection {
		if err := e.credentials.SetTOTPLastUsedCounter(ctx, userID, counter); err != nil {
			return err
		}
	}
	if err := e.bumpSecurityStamp(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, userID, "", "", nil, nil)

	return nil
}

// DisableTOTP removes the enrolled factor after a live code proves the caller
// still controls it. Stamp and refresh tokens are invalidated the same way
// enrollment does.
func (e *Engine) DisableTOTP(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.VerifyTOTP(ctx, userID, code); err != nil {
		return err
	}

	if err := e.credentials.DisableTOTP(ctx, userID); err != nil {
		return err
	}
	if err := e.bumpSecurityStamp(ctx, userID); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventTOTPDisabled, true, userID, "", "", nil, nil)

	return nil
}

// VerifyTOTP checks a code against the user's enrolled secret within the
// configured drift window. With replay protection on, a code for a step at or
// below the last accepted one is rejected even though it would otherwise
// match.
func (e *Engine) VerifyTOTP(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	record, found, err := e.credentials.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if !found || !record.TOTPEnabled || record.TOTPSecret == "" {
		return ErrTOTPNotConfigured
	}

	secret, err := e.totp.DecodeSecret(record.TOTPSecret)
	if err != nil {
		return err
	}

	ok, counter, err := e.totp.VerifyCode(secret, code, e.config.TOTP.Skew, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, userID, "", "", ErrTOTPInvalid, nil)
		return ErrTOTPInvalid
	}

	if e.config.TOTP.EnforceReplayProtection {
		last, err := e.credentials.TOTPLastUsedCounter(ctx, userID)
		if err != nil {
			return err
		}
		if counter <= last {
			e.metricInc(MetricTOTPFailure)
			e.emitAudit(ctx, auditEventTOTPFailure, false, userID, "", "", ErrTOTPInvalid, func() map[string]string {
				return map[string]string{"reason": "replay"}
			})
			return ErrTOTPInvalid
		}
		if err := e.credentials.SetTOTPLastUsedCounter(ctx, userID, counter); err != nil {
			return err
		}
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, true, userID, "", "", nil, nil)

	return nil
}

// BeginWebAuthnRegistration starts a credential registration ceremony for the
// account. The returned options payload goes to the client verbatim.
func (e *Engine) BeginWebAuthnRegistration(ctx context.Context, acct webauthn.Account) (*webauthn.Ceremony, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.passkeys == nil {
		return nil, ErrWebAuthnDisabled
	}
	return e.passkeys.BeginRegistration(ctx, acct)
}

// FinishWebAuthnRegistration verifies the client's attestation response and
// returns the credential material for the caller to persist. Enrollment is a
// credential-affecting change: the stamp is regenerated and all refresh
// tokens revoked.
func (e *Engine) FinishWebAuthnRegistration(ctx context.Context, acct webauthn.Account, response []byte) (*webauthn.CredentialRecord, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.passkeys == nil {
		return nil, ErrWebAuthnDisabled
	}

	cred, err := e.passkeys.FinishRegistration(ctx, acct, response)
	if err != nil {
		e.metricInc(MetricWebAuthnFailure)
		e.emitAudit(ctx, auditEventWebAuthnFailure, false, acct.ID, "", "", err, nil)
		return nil, err
	}

	if err := e.bumpSecurityStamp(ctx, acct.ID); err != nil {
		return nil, err
	}

	e.metricInc(MetricWebAuthnSuccess)
	e.emitAudit(ctx, auditEventWebAuthnSuccess, true, acct.ID, "", "", nil, func() map[string]string {
		return map[string]string{"ceremony": "registration"}
	})

	return cred, nil
}

// BeginWebAuthnLogin starts an assertion ceremony against the account's
// registered credentials.
func (e *Engine) BeginWebAuthnLogin(ctx context.Context, acct webauthn.Account) (*webauthn.Ceremony, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.passkeys == nil {
		return nil, ErrWebAuthnDisabled
	}
	return e.passkeys.BeginLogin(ctx, acct)
}

// FinishWebAuthnLogin verifies the assertion response, including the
// sign-counter clone check, and issues a token pair. The returned credential
// record carries the advanced counter; the caller must persist it so the next
// login's clone check compares against it.
func (e *Engine) FinishWebAuthnLogin(ctx context.Context, acct webauthn.Account, response []byte, deviceID string) (*webauthn.CredentialRecord, *TokenPair, error) {
	if !e.ready() {
		return nil, nil, ErrEngineNotReady
	}
	if e.passkeys == nil {
		return nil, nil, ErrWebAuthnDisabled
	}

	cred, err := e.passkeys.FinishLogin(ctx, acct, response)
	if err != nil {
		e.metricInc(MetricWebAuthnFailure)
		e.emitAudit(ctx, auditEventWebAuthnFailure, false, acct.ID, "", deviceID, err, nil)
		return nil, nil, err
	}

	record, found, err := e.credentials.ByID(ctx, acct.ID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := e.IssueTokens(ctx, record.UserID, record.Email, nil, deviceID)
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricWebAuthnSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventWebAuthnSuccess, true, record.UserID, "", deviceID, nil, func() map[string]string {
		return map[string]string{"ceremony": "login"}
	})

	return cred, pair, nil
}

// bumpSecurityStamp regenerates the user's security stamp and revokes every
// outstanding refresh token, so state issued before the credential change
// stops working everywhere.
func (e *Engine) bumpSecurityStamp(ctx context.Context, userID string) error {
	stamp, err := NewSecurityStamp()
	if err != nil {
		return err
	}
	if err := e.credentials.UpdateSecurityStamp(ctx, userID, stamp); err != nil {
		return err
	}
	if _, err := e.refresh.RevokeAllForUser(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}
