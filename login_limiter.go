package identity

import (
	"sync"
	"time"
)

// loginLimiter is a process-local sliding-window counter keyed by an opaque
// string (identifier, or an IP+identifier composite chosen by the caller).
// State is never persisted; each instance counts independently, so this
// deters casual brute force but is not a cross-instance control.
type loginLimiter struct {
	mu      sync.Mutex
	windows map[string]*loginWindow
	now     func() time.Time
}

type loginWindow struct {
	count       int
	windowStart time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		windows: make(map[string]*loginWindow),
		now:     time.Now,
	}
}

// IsAllowed reports whether another attempt for key fits inside the window.
// An elapsed window resets the counter.
func (l *loginLimiter) IsAllowed(key string, maxAttempts int, window time.Duration) bool {
	if l == nil || key == "" || maxAttempts <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return true
	}
	if l.now().Sub(w.windowStart) > window {
		delete(l.windows, key)
		return true
	}
	return w.count < maxAttempts
}

// Record counts one attempt for key, starting a new window if the previous
// one has elapsed.
func (l *loginLimiter) Record(key string, window time.Duration) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.windowStart) > window {
		l.windows[key] = &loginWindow{count: 1, windowStart: now}
		return
	}
	w.count++
}

// Reset clears the counter for key. Called after a successful login so a
// legitimate user does not inherit a stranger's failed attempts on a shared
// key.
func (l *loginLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
