// Package identity provides the identity and session security core for the
// Darwin commerce platform: JWT access tokens with rotating signing keys,
// opaque persisted refresh tokens, Argon2id password hashing, TOTP and
// WebAuthn second factors, and role-based permission evaluation.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// identity is the public surface. It exposes [Engine], [Builder], [Config],
// the provider contracts ([CredentialProvider], [SettingsProvider],
// [permission.Store]), and value types (TokenPair, LoginResult, etc.). All
// internal coordination (token encoding, audit dispatch, metric counters)
// lives under internal/ and is never exported.
//
// The platform's CRUD layers (catalog, orders, CMS) never appear here. They
// consume this core through the provider interfaces and through the token
// validation and permission entry points.
//
// # What this package must NOT do
//
//   - Persist users, roles, or settings itself; those stores belong to the
//     caller and are reached only through the provider contracts.
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Distinguish authentication failure causes to callers. Bad password,
//     unknown account, and spent refresh token all surface the same way.
package identity
