package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shahramvafadar/darwin-identity/internal"
	internalaudit "github.com/shahramvafadar/darwin-identity/internal/audit"
	"github.com/shahramvafadar/darwin-identity/jwt"
	"github.com/shahramvafadar/darwin-identity/password"
	"github.com/shahramvafadar/darwin-identity/permission"
	"github.com/shahramvafadar/darwin-identity/webauthn"
)

// Engine is the runtime surface of the identity core. Construct it through
// [Builder.Build]; a zero or nil Engine fails every operation with
// ErrEngineNotReady instead of panicking.
//
// Engine instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	credentials CredentialProvider
	keys        *keyring
	refresh     *refreshStore
	permissions *permission.Evaluator
	passwords   *password.Hasher
	totp        *totpManager
	limiter     *loginLimiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	passkeys    *webauthn.Coordinator
}

// Close drains and stops the audit dispatcher. Safe on a nil Engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.keys != nil && e.refresh != nil && e.credentials != nil
}

// validateScopes checks the requested scopes against the registered set.
// Duplicates are rejected together with unknown entries, so the scope claim
// is always a canonical subset.
func (e *Engine) validateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		known := false
		for _, allowed := range e.config.Token.Scopes {
			if s == allowed {
				known = true
				break
			}
		}
		if !known {
			return ErrScopeInvalid
		}
		if _, dup := seen[s]; dup {
			return ErrScopeInvalid
		}
		seen[s] = struct{}{}
	}
	return nil
}

// managerFor builds a signing manager from the current parameter snapshot.
// The manager is cheap (a struct around the snapshot), so per-call
// construction keeps rotation semantics correct without caching keys twice.
func managerFor(params tokenParameters) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		AccessTTL: params.AccessTTL,
		Issuer:    params.Issuer,
		Audience:  params.Audience,
		Leeway:    params.ClockSkew,
		Keys:      params.Keys,
	})
}

// IssueTokens mints an access and refresh token pair for an already
// authenticated user. deviceID binds the refresh token: rotation and
// revocation of that token require the same device identity.
func (e *Engine) IssueTokens(ctx context.Context, userID, email string, scopes []string, deviceID string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, errors.New("user id required")
	}
	if err := e.validateScopes(scopes); err != nil {
		return nil, err
	}

	params, err := e.keys.Parameters(ctx)
	if err != nil {
		return nil, err
	}

	if !params.EmitScopes {
		scopes = nil
	}

	pair, err := e.mintPair(ctx, params, userID, email, scopes, deviceID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTokensIssued)
	e.emitAudit(ctx, auditEventTokensIssued, true, userID, "", deviceID, nil, nil)

	return pair, nil
}

// mintPair signs the access token and persists a fresh refresh row.
func (e *Engine) mintPair(
	ctx context.Context,
	params tokenParameters,
	userID, email string,
	scopes []string,
	deviceID string,
) (*TokenPair, error) {
	manager, err := managerFor(params)
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiry, err := manager.CreateAccess(userID, email, scopes)
	if err != nil {
		return nil, err
	}

	refreshToken, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	hash, err := internal.HashOpaqueToken(refreshToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	refreshExpiry := now.Add(params.RefreshTTL)
	if err := e.refresh.Save(ctx, userID, deviceID, strings.Join(scopes, " "), hash, now, refreshExpiry); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  refreshToken,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Refresh rotates a refresh token: the presented row is atomically spent and
// a new pair is minted with the scope set the original pair was issued with.
// Every failure that depends on the token's state collapses into
// ErrRefreshInvalid; only backend faults surface as ErrStoreUnavailable.
func (e *Engine) Refresh(ctx context.Context, refreshToken, deviceID string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	hash, err := internal.HashOpaqueToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	userID, scope, ok, err := e.refresh.Consume(ctx, hash, deviceID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", deviceID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	record, found, err := e.credentials.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, "", deviceID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	params, err := e.keys.Parameters(ctx)
	if err != nil {
		return nil, err
	}

	var scopes []string
	if params.EmitScopes {
		scopes = strings.Fields(scope)
	}

	pair, err := e.mintPair(ctx, params, userID, record.Email, scopes, deviceID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, "", deviceID, nil, nil)

	return pair, nil
}

// ValidateAccess verifies an access token's signature against the full key
// set, its issuer, audience, and lifetime within the configured clock skew,
// and returns the decoded claims.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AccessClaimsResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	params, err := e.keys.Parameters(ctx)
	if err != nil {
		return nil, err
	}
	manager, err := managerFor(params)
	if err != nil {
		return nil, err
	}

	claims, err := manager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, jwt.ErrSubjectMissing) {
			e.emitAudit(ctx, auditEventValidateFailure, false, "", "", "", ErrTokenSubjectMissing, nil)
			return nil, ErrTokenSubjectMissing
		}
		e.emitAudit(ctx, auditEventValidateFailure, false, "", "", "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	result := &AccessClaimsResult{
		UserID:  claims.Subject,
		Email:   claims.Email,
		TokenID: claims.ID,
		Scopes:  claims.Scopes(),
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}

// RevokeRefreshToken marks the presented refresh token used. Idempotent:
// revoking an unknown, expired, or already-spent token succeeds silently.
func (e *Engine) RevokeRefreshToken(ctx context.Context, refreshToken, deviceID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	hash, err := internal.HashOpaqueToken(refreshToken)
	if err != nil {
		return nil
	}

	spent, err := e.refresh.Revoke(ctx, hash, deviceID, time.Now().UTC())
	if err != nil {
		return err
	}
	if spent {
		e.metricInc(MetricRefreshRevoked)
		e.emitAudit(ctx, auditEventRefreshRevoked, true, "", "", deviceID, nil, nil)
	}
	return nil
}

// RevokeAllForUser marks every live refresh token of the user as used across
// all devices and returns how many were spent.
func (e *Engine) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, errors.New("user id required")
	}

	count, err := e.refresh.RevokeAllForUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(count)}
	})

	return count, nil
}

// HasPermission evaluates the permission key for the user through the RBAC
// graph, honoring the full-admin bypass.
func (e *Engine) HasPermission(ctx context.Context, userID, key string) (bool, error) {
	if e == nil || e.permissions == nil {
		return false, ErrEngineNotReady
	}

	allowed, err := e.permissions.Has(ctx, userID, key)
	if err != nil {
		return false, err
	}
	if !allowed {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, userID, "", "", nil, func() map[string]string {
			return map[string]string{"permission": key}
		})
	}
	return allowed, nil
}

// PermissionsFor returns the user's effective permission keys, upper-cased
// and sorted.
func (e *Engine) PermissionsFor(ctx context.Context, userID string) ([]string, error) {
	if e == nil || e.permissions == nil {
		return nil, ErrEngineNotReady
	}
	return e.permissions.All(ctx, userID)
}
