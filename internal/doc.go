// Package internal holds token material helpers shared by the root package
// and its stores: opaque refresh-token generation and hashing, and security
// stamp generation and constant-time comparison.
package internal
