package permission

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Permission is one grantable key in the RBAC graph.
type Permission struct {
	Key     string
	Deleted bool
}

// Role is a named permission grant. Deleted roles and deleted permissions
// inside live roles are both excluded from resolution.
type Role struct {
	Key         string
	Deleted     bool
	Permissions []Permission
}

// Store is the read-only contract over the platform's user→role→permission
// graph. Implementations resolve the user's role links and return each role
// with its permission rows, soft-delete flags included; filtering is the
// evaluator's job so every caller gets identical semantics.
type Store interface {
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
}

// Evaluator resolves effective permission sets and answers single-key checks.
// Keys compare case-insensitively; the admin key short-circuits every check.
type Evaluator struct {
	store    Store
	adminKey string
}

// NewEvaluator builds an Evaluator. adminKey is the distinguished full-admin
// permission.
func NewEvaluator(store Store, adminKey string) (*Evaluator, error) {
	if store == nil {
		return nil, errors.New("permission store required")
	}
	adminKey = normalize(adminKey)
	if adminKey == "" {
		return nil, errors.New("admin key required")
	}
	return &Evaluator{store: store, adminKey: adminKey}, nil
}

// Has reports whether the user holds the permission, either directly through
// a role or through the full-admin bypass.
func (e *Evaluator) Has(ctx context.Context, userID, key string) (bool, error) {
	want := normalize(key)
	if want == "" {
		return false, nil
	}

	set, err := e.resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, ok := set[e.adminKey]; ok {
		return true, nil
	}
	_, ok := set[want]
	return ok, nil
}

// All returns the user's full effective permission set, normalized to upper
// case and sorted, for batch UI decisions. The admin key does not expand into
// other keys; callers that need the bypass semantics use Has.
func (e *Evaluator) All(ctx context.Context, userID string) ([]string, error) {
	set, err := e.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (e *Evaluator) resolve(ctx context.Context, userID string) (map[string]struct{}, error) {
	roles, err := e.store.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, role := range roles {
		if role.Deleted {
			continue
		}
		for _, perm := range role.Permissions {
			if perm.Deleted {
				continue
			}
			if k := normalize(perm.Key); k != "" {
				set[k] = struct{}{}
			}
		}
	}
	return set, nil
}

func normalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
