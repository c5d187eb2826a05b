// Package webauthn coordinates authenticator registration and login
// ceremonies on top of github.com/go-webauthn/webauthn.
//
// The coordinator owns the challenge lifecycle: Begin stores the complete
// ceremony session (the verification step needs the original options in
// full, not only the challenge) in Redis with a TTL, and Finish consumes it
// single-use regardless of outcome. Credential persistence stays with the
// caller; the coordinator returns the durable material (public key, AAGUID,
// signature counter) and enforces the counter-advance clone check on login.
package webauthn
