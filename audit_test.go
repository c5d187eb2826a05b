package identity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	internalaudit "github.com/shahramvafadar/darwin-identity/internal/audit"
)

func collectEvents(t *testing.T, sink *ChannelSink, want int) []AuditEvent {
	t.Helper()
	events := make([]AuditEvent, 0, want)
	timeout := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case event := <-sink.Events():
			events = append(events, event)
		case <-timeout:
			t.Fatalf("collected %d of %d audit events before timeout", len(events), want)
		}
	}
	return events
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, event := range events {
		if event.EventType == eventType {
			return event, true
		}
	}
	return AuditEvent{}, false
}

func TestAuditTrailForLoginAndRefresh(t *testing.T) {
	sink := NewChannelSink(64)
	env := newAuditedEngine(t, sink)
	ctx := context.Background()

	result, err := env.engine.Login(ctx, "alice@example.com", testPassword, "laptop")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice@example.com", "wrong-password", "laptop"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, result.Tokens.RefreshToken, "laptop"); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, result.Tokens.RefreshToken, "laptop"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}

	// tokens_issued + login_success + login_failure + refresh_success +
	// refresh_invalid.
	events := collectEvents(t, sink, 5)

	success, ok := findEvent(events, "login_success")
	if !ok {
		t.Fatalf("no login_success event in %+v", events)
	}
	if !success.Success || success.UserID != "user-1" || success.DeviceID != "laptop" {
		t.Fatalf("login_success = %+v", success)
	}

	failure, ok := findEvent(events, "login_failure")
	if !ok {
		t.Fatal("no login_failure event")
	}
	if failure.Success || failure.Error != "invalid_credentials" {
		t.Fatalf("login_failure = %+v", failure)
	}

	invalid, ok := findEvent(events, "refresh_invalid")
	if !ok {
		t.Fatal("no refresh_invalid event")
	}
	if invalid.Error != "invalid_refresh" {
		t.Fatalf("refresh_invalid = %+v", invalid)
	}
}

func TestAuditRevokeAllCarriesCount(t *testing.T) {
	sink := NewChannelSink(64)
	env := newAuditedEngine(t, sink)
	ctx := context.Background()

	if _, err := env.engine.IssueTokens(ctx, "user-1", "alice@example.com", nil, "laptop"); err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}
	if _, err := env.engine.IssueTokens(ctx, "user-1", "alice@example.com", nil, "phone"); err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}
	if _, err := env.engine.RevokeAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAllForUser error: %v", err)
	}

	events := collectEvents(t, sink, 3)
	revoke, ok := findEvent(events, "revoke_all")
	if !ok {
		t.Fatal("no revoke_all event")
	}
	if revoke.Metadata["revoked"] != "2" {
		t.Fatalf("revoke_all metadata = %+v", revoke.Metadata)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEngine(t, nil)

	if _, err := env.engine.IssueTokens(context.Background(), "user-1", "alice@example.com", nil, "laptop"); err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}
	if got := env.engine.AuditDropped(); got != 0 {
		t.Fatalf("dropped = %d, want 0", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "login_success",
		UserID:    "user-1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "login_failure",
		Error:     "invalid_credentials",
	})

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("wrote %d lines, want 2", lines)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}

	d := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "login_success"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops once the buffer filled")
	}
	close(blocked)
	d.Close()
}

func TestDispatcherCloseIdempotent(t *testing.T) {
	d := internalaudit.NewDispatcher(internalaudit.Config{Enabled: true, BufferSize: 4}, NoOpSink{})
	d.Close()
	d.Close()

	// Disabled audit produces a nil dispatcher, and every method tolerates it.
	nilDispatcher := internalaudit.NewDispatcher(internalaudit.Config{Enabled: false}, NoOpSink{})
	nilDispatcher.Emit(context.Background(), AuditEvent{})
	nilDispatcher.Close()
	if nilDispatcher.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestAuditErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, "invalid_credentials"},
		{ErrLoginRateLimited, "rate_limited"},
		{ErrTOTPInvalid, "totp_invalid"},
		{ErrTOTPNotConfigured, "totp_invalid"},
		{ErrTokenInvalid, "invalid_token"},
		{ErrTokenSubjectMissing, "invalid_token"},
		{ErrRefreshInvalid, "invalid_refresh"},
		{ErrScopeInvalid, "invalid_scope"},
		{ErrJWTDisabled, "configuration"},
		{ErrStoreUnavailable, "backend_unavailable"},
		{errors.New("something else"), "internal_error"},
	}

	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func newAuditedEngine(t *testing.T, sink AuditSink) *testEnv {
	t.Helper()
	return newTestEngineWithSink(t, func(cfg *Config) {
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
		cfg.Audit.DropIfFull = false
	}, sink)
}
