// Package jwt signs and validates HS256 access tokens against a rotating key
// set: new tokens always carry the current key's signature, while validation
// accepts the previous key until tokens signed under it have expired.
package jwt
