package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config is a snapshot of token parameters. Instances are built from the
// settings cache on each use, so key rotation needs no process restart.
type Config struct {
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
	// Keys holds HMAC signing keys in priority order. Keys[0] (the current
	// key) signs every new token; all entries verify, so tokens signed
	// before a rotation stay valid until natural expiry.
	Keys [][]byte
}

// ErrSubjectMissing is returned by ParseAccess when a token is otherwise
// valid but carries no subject claim.
var ErrSubjectMissing = errors.New("token subject missing")

// Manager signs and parses HS256 access tokens.
type Manager struct {
	config Config
}

// AccessClaims is the claim set of an access token: registered subject,
// lifetime, issuer and audience claims, plus the application email claim, a
// random jti, and an optional space-separated scope string.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Scopes splits the scope claim.
func (c *AccessClaims) Scopes() []string {
	if c == nil || c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}

// NewManager validates the parameter snapshot.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 5*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Keys) == 0 {
		return nil, errors.New("hs256 requires at least one key")
	}
	for _, k := range cfg.Keys {
		if len(k) < 32 {
			return nil, errors.New("hs256 key must be >= 256 bits")
		}
	}

	return &Manager{config: cfg}, nil
}

// CreateAccess signs a token for the subject with the current key. notBefore
// is now; expiry is now + AccessTTL.
func (m *Manager) CreateAccess(userID, email string, scopes []string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("empty subject")
	}

	now := time.Now()
	expiry := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		Email: email,
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Keys[0])
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// ParseAccess validates signature (against every configured key), issuer,
// audience, and lifetime with the configured leeway, and requires a subject.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		keys := make([]jwt.VerificationKey, 0, len(m.config.Keys))
		for _, k := range m.config.Keys {
			keys = append(keys, k)
		}
		return jwt.VerificationKeySet{Keys: keys}, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrSubjectMissing
	}

	return claims, nil
}
