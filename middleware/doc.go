// Package middleware exposes HTTP middleware adapters built on top of the
// identity engine's token validation and permission evaluation.
//
// # Guards
//
//   - [RequireAuth] validates the bearer access token and injects the decoded
//     claims into the request context.
//   - [RequirePermission] additionally evaluates one permission key for the
//     token's subject.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// [identity.Engine.ValidateAccess] and [identity.Engine.HasPermission].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the Engine.
package middleware
