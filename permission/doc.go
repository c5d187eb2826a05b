// Package permission evaluates role-based permission grants.
//
// The platform owns the user→role→permission graph; this package reads it
// through the [Store] contract and applies the shared semantics: soft-deleted
// rows never grant, keys compare case-insensitively, and the distinguished
// full-admin key passes every check.
package permission
