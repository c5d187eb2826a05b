package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	currentKey  = []byte("current-signing-key-0123456789abcdef")
	previousKey = []byte("previous-signing-key-0123456789abcde")
	strangerKey = []byte("stranger-signing-key-0123456789abcde")
)

func testConfig() Config {
	return Config{
		AccessTTL: 15 * time.Minute,
		Issuer:    "darwin",
		Audience:  "darwin-web",
		Leeway:    30 * time.Second,
		Keys:      [][]byte{currentKey, previousKey},
	}
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, expiry, err := m.CreateAccess("user-1", "alice@example.com", []string{"api", "admin"})
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}
	if time.Until(expiry) > 15*time.Minute || time.Until(expiry) < 14*time.Minute {
		t.Fatalf("unexpected expiry %v", expiry)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.ID == "" {
		t.Fatal("expected non-empty jti")
	}
	scopes := claims.Scopes()
	if len(scopes) != 2 || scopes[0] != "api" || scopes[1] != "admin" {
		t.Fatalf("scopes = %v", scopes)
	}
}

func TestParseAcceptsPreviousKey(t *testing.T) {
	signer, err := NewManager(Config{
		AccessTTL: 15 * time.Minute,
		Issuer:    "darwin",
		Audience:  "darwin-web",
		Keys:      [][]byte{previousKey},
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	token, _, err := signer.CreateAccess("user-1", "", nil)
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	verifier, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	if _, err := verifier.ParseAccess(token); err != nil {
		t.Fatalf("expected previous-key token to verify, got %v", err)
	}
}

func TestParseRejectsUnknownKey(t *testing.T) {
	stranger, err := NewManager(Config{
		AccessTTL: 15 * time.Minute,
		Issuer:    "darwin",
		Audience:  "darwin-web",
		Keys:      [][]byte{strangerKey},
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	token, _, err := stranger.CreateAccess("user-1", "", nil)
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	verifier, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	if _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("expected unknown-key token to be rejected")
	}
}

func TestParseRejectsWrongIssuerAndAudience(t *testing.T) {
	foreign, err := NewManager(Config{
		AccessTTL: 15 * time.Minute,
		Issuer:    "somebody-else",
		Audience:  "other-app",
		Keys:      [][]byte{currentKey},
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	token, _, err := foreign.CreateAccess("user-1", "", nil)
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	verifier, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	if _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("expected token with foreign issuer and audience to be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.Leeway = 0
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	expiredCfg := cfg
	expiredCfg.AccessTTL = time.Nanosecond
	expired, err := NewManager(expiredCfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	token, _, err := expired.CreateAccess("user-1", "", nil)
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRequiresSubject(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	if _, _, err := m.CreateAccess("", "", nil); err == nil {
		t.Fatal("expected CreateAccess without subject to fail")
	}

	now := time.Now()
	subjectless := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "darwin",
		Audience:  jwt.ClaimStrings{"darwin-web"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	})
	signed, err := subjectless.SignedString(currentKey)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}

	if _, err := m.ParseAccess(signed); !errors.Is(err, ErrSubjectMissing) {
		t.Fatalf("expected ErrSubjectMissing, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{AccessTTL: 0, Keys: [][]byte{currentKey}}},
		{"no keys", Config{AccessTTL: time.Minute}},
		{"short key", Config{AccessTTL: time.Minute, Keys: [][]byte{[]byte("short")}}},
		{"excess leeway", Config{AccessTTL: time.Minute, Leeway: 10 * time.Minute, Keys: [][]byte{currentKey}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected config validation to fail")
			}
		})
	}
}
