// Package password implements Argon2id credential hashing in PHC string
// format.
//
// Hashes embed their own salt and cost parameters, so verification needs no
// side storage. Comparison uses [crypto/subtle.ConstantTimeCompare]; a
// malformed stored hash verifies as a non-match rather than an error, keeping
// the failure surface uniform for callers handling user-supplied credentials.
package password
