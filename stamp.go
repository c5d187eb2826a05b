package identity

import (
	"github.com/shahramvafadar/darwin-identity/internal"
)

// NewSecurityStamp returns a fresh opaque stamp (256 bits of entropy,
// base64url). The owning user aggregate stores it and regenerates it on every
// credential-affecting mutation, which invalidates stamps embedded in
// long-lived client state.
func NewSecurityStamp() (string, error) {
	return internal.NewStamp()
}

// SecurityStampsEqual compares two stamps in fixed time. Empty stamps are
// never equal to anything.
func SecurityStampsEqual(a, b string) bool {
	return internal.StampsEqual(a, b)
}
