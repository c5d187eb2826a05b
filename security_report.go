package identity

import "context"

// SecurityReport is a point-in-time description of the engine's security
// posture: static hardening from Config plus the dynamic token parameters the
// settings snapshot currently resolves to. Intended for admin diagnostics
// endpoints; it never contains key material.
type SecurityReport struct {
	SigningAlgorithm      string
	JWTEnabled            bool
	Issuer                string
	Audience              string
	AccessTTLMinutes      int
	RefreshTTLDays        int
	PreviousKeyConfigured bool
	ScopesEmitted         bool
	Argon2                PasswordConfigReport
	TOTPReplayProtection  bool
	WebAuthnEnabled       bool
	RateLimitingActive    bool
	AuditActive           bool
	MetricsActive         bool
}

// PasswordConfigReport mirrors the active Argon2id parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport resolves the current settings snapshot and summarizes the
// engine's posture. A settings read failure degrades to the static half of
// the report rather than failing the call.
func (e *Engine) SecurityReport(ctx context.Context) SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		SigningAlgorithm: "HS256",
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		TOTPReplayProtection: e.config.TOTP.EnforceReplayProtection,
		WebAuthnEnabled:      e.passkeys != nil,
		RateLimitingActive:   e.config.RateLimit.MaxLoginAttempts > 0 && e.config.RateLimit.LoginWindow > 0,
		AuditActive:          e.audit != nil,
		MetricsActive:        e.metrics.Enabled(),
	}

	if e.keys == nil {
		return report
	}
	params, err := e.keys.Parameters(ctx)
	if err != nil {
		return report
	}

	report.JWTEnabled = true
	report.Issuer = params.Issuer
	report.Audience = params.Audience
	report.AccessTTLMinutes = int(params.AccessTTL.Minutes())
	report.RefreshTTLDays = int(params.RefreshTTL.Hours() / 24)
	report.PreviousKeyConfigured = len(params.Keys) > 1
	report.ScopesEmitted = params.EmitScopes
	return report
}
