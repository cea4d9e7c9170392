package token

import "errors"

// Sentinel errors for token operations. Expired and invalid tokens both
// surface to callers as unauthorized, but remain distinguishable for
// logging and tests.
var (
	// ErrTokenExpired indicates a structurally valid, correctly signed
	// token whose exp claim has lapsed.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrMissingSubject indicates a valid token without a sub claim.
	ErrMissingSubject = errors.New("token has no subject")
)
