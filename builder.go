package identity

import (
	"errors"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/shahramvafadar/darwin-identity/internal/audit"
	"github.com/shahramvafadar/darwin-identity/password"
	"github.com/shahramvafadar/darwin-identity/permission"
	"github.com/shahramvafadar/darwin-identity/webauthn"
)

// Builder assembles an [Engine]. Configure it with the fluent With methods
// and call [Builder.Build] exactly once.
//
// Builder instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	settings        SettingsProvider
	credentials     CredentialProvider
	permissionStore permission.Store
	auditSink       AuditSink

	built bool
}

// New returns a Builder pre-loaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is cloned, so
// later mutation of cfg by the caller has no effect on the Builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the refresh-token store and the
// WebAuthn ceremony session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSettingsProvider sets the source of the dynamic token settings
// snapshot (issuer, audience, TTLs, signing keys).
func (b *Builder) WithSettingsProvider(sp SettingsProvider) *Builder {
	b.settings = sp
	return b
}

// WithCredentialProvider sets the caller's user store adapter.
func (b *Builder) WithCredentialProvider(cp CredentialProvider) *Builder {
	b.credentials = cp
	return b
}

// WithPermissionStore sets the source of role and permission assignments.
func (b *Builder) WithPermissionStore(store permission.Store) *Builder {
	b.permissionStore = store
	return b
}

// WithAuditSink sets the destination for audit events. Has no effect unless
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metric counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and dependencies and constructs the
// Engine. A Builder can build at most one Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.settings == nil {
		return nil, errors.New("settings provider required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential provider required")
	}
	if b.permissionStore == nil {
		return nil, errors.New("permission store required")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	evaluator, err := permission.NewEvaluator(b.permissionStore, cfg.Permission.AdminKey)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		credentials: b.credentials,
		keys:        newKeyring(b.settings, cfg.Token.SettingsCacheTTL),
		refresh:     newRefreshStore(b.redis, cfg.Token.RedisPrefix),
		permissions: evaluator,
		passwords:   hasher,
		totp:        newTOTPManager(cfg.TOTP),
		limiter:     newLoginLimiter(),
		audit:       internalaudit.NewDispatcher(auditDispatcherConfig(cfg.Audit), b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
	}

	if cfg.WebAuthn.Enabled {
		sessions := webauthn.NewCeremonyStore(b.redis, cfg.WebAuthn.RedisPrefix)
		coordinator, err := webauthn.NewCoordinator(webauthn.Config{
			RPDisplayName:  cfg.WebAuthn.RPDisplayName,
			RPID:           cfg.WebAuthn.RPID,
			RPOrigins:      cfg.WebAuthn.RPOrigins,
			CeremonyTTL:    cfg.WebAuthn.CeremonyTTL,
			RedisPrefix:    cfg.WebAuthn.RedisPrefix,
			StrictCounters: cfg.WebAuthn.StrictCounters,
		}, sessions)
		if err != nil {
			return nil, err
		}
		engine.passkeys = coordinator
	}

	b.built = true

	return engine, nil
}

func auditDispatcherConfig(cfg AuditConfig) internalaudit.Config {
	return internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}
}
