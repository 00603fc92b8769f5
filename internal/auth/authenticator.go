package auth

import "context"

// Authenticator verifies operator credentials for the administrative API.
// Implementations can be swapped (static password, SSO) without touching the
// HTTP layer.
type Authenticator interface {
	// Authenticate verifies the credential and returns the subject the
	// issued token should carry.
	Authenticate(ctx context.Context, credential string) (subject string, err error)
}
