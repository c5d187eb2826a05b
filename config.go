package identity

import (
	"errors"
	"strings"
	"time"
)

// Config carries the static tuning of the engine. Dynamic token parameters
// (issuer, audience, TTLs, signing keys) are not here: they come from the
// [SettingsProvider] snapshot so operators can rotate keys without a restart.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Token      TokenConfig
	Password   PasswordConfig
	TOTP       TOTPConfig
	WebAuthn   WebAuthnConfig
	RateLimit  RateLimitConfig
	Permission PermissionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// TokenConfig tunes the token subsystem around the dynamic settings snapshot.
type TokenConfig struct {
	// SettingsCacheTTL bounds how stale the cached settings snapshot may be
	// after a key rotation. One store read per TTL window, not per request.
	SettingsCacheTTL time.Duration
	// RedisPrefix namespaces refresh-token keys.
	RedisPrefix string
	// Scopes is the closed set of scope strings the issuer will embed.
	// Issuance with anything outside this set fails with ErrScopeInvalid.
	Scopes []string
}

// PasswordConfig holds Argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// TOTPConfig holds RFC 6238 parameters.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	// Skew is the drift window: codes for steps in [-Skew, +Skew] are
	// accepted.
	Skew int
	// EnforceReplayProtection rejects a code for a step at or below the
	// account's last-used counter.
	EnforceReplayProtection bool
}

// WebAuthnConfig holds relying-party metadata for authenticator ceremonies.
type WebAuthnConfig struct {
	Enabled       bool
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	// CeremonyTTL bounds how long a begun ceremony may wait for the client
	// response before its server-side session is discarded.
	CeremonyTTL time.Duration
	RedisPrefix string
	// StrictCounters refuses assertions whose signature counter stays at
	// zero, which also locks out counterless authenticators.
	StrictCounters bool
}

// RateLimitConfig tunes the in-process login limiter.
//
// The limiter is process-local. In a horizontally scaled deployment each
// instance counts independently; replacing it with a shared counter store is
// a deliberate non-goal of this core.
type RateLimitConfig struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
}

// PermissionConfig tunes the RBAC evaluator.
type PermissionConfig struct {
	// AdminKey is the distinguished permission that short-circuits every
	// check to true. Compared case-insensitively.
	AdminKey string
}

// AuditConfig tunes the audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig tunes the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SettingsCacheTTL: 60 * time.Second,
			RedisPrefix:      "di",
			Scopes:           []string{"api", "admin"},
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		TOTP: TOTPConfig{
			Issuer:                  "Darwin",
			Digits:                  6,
			Period:                  30,
			Algorithm:               "SHA1",
			Skew:                    1,
			EnforceReplayProtection: true,
		},
		WebAuthn: WebAuthnConfig{
			Enabled:     false,
			CeremonyTTL: 5 * time.Minute,
			RedisPrefix: "wa",
		},
		RateLimit: RateLimitConfig{
			MaxLoginAttempts: 5,
			LoginWindow:      15 * time.Minute,
		},
		Permission: PermissionConfig{
			AdminKey: "FULLADMIN",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate checks config invariants. Violations are operator misconfiguration
// and abort Build.
func (c *Config) Validate() error {
	if c.Token.SettingsCacheTTL <= 0 {
		return errors.New("Token SettingsCacheTTL must be > 0")
	}
	if c.Token.RedisPrefix == "" {
		return errors.New("Token RedisPrefix is required")
	}
	for _, s := range c.Token.Scopes {
		if strings.TrimSpace(s) == "" {
			return errors.New("Token Scopes must not contain empty entries")
		}
		if strings.ContainsAny(s, " ,") {
			return errors.New("Token Scopes must not contain separators")
		}
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("TOTP Skew must be >= 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// valid (empty treated as SHA1)
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}

	if c.WebAuthn.Enabled {
		if c.WebAuthn.RPID == "" {
			return errors.New("WebAuthn RPID is required when WebAuthn is enabled")
		}
		if c.WebAuthn.RPDisplayName == "" {
			return errors.New("WebAuthn RPDisplayName is required when WebAuthn is enabled")
		}
		if len(c.WebAuthn.RPOrigins) == 0 {
			return errors.New("WebAuthn RPOrigins is required when WebAuthn is enabled")
		}
		if c.WebAuthn.CeremonyTTL <= 0 {
			return errors.New("WebAuthn CeremonyTTL must be > 0")
		}
		if c.WebAuthn.RedisPrefix == "" {
			return errors.New("WebAuthn RedisPrefix is required")
		}
	}

	if c.RateLimit.MaxLoginAttempts <= 0 {
		return errors.New("RateLimit MaxLoginAttempts must be > 0")
	}
	if c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit LoginWindow must be > 0")
	}

	if strings.TrimSpace(c.Permission.AdminKey) == "" {
		return errors.New("Permission AdminKey is required")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Scopes = append([]string(nil), cfg.Token.Scopes...)
	out.WebAuthn.RPOrigins = append([]string(nil), cfg.WebAuthn.RPOrigins...)
	return out
}
