package auth

import "errors"

// Failure taxonomy for the credential lifecycle. Callers branch on these
// with errors.Is; wrapped detail is for logs only and never shown to users.
var (
	// ErrNotFound means no credential is stored for the user key.
	ErrNotFound = errors.New("credentials not found")

	// ErrStoreUnavailable means the backing storage could not be reached.
	// Distinct from ErrNotFound so callers can tell "no credential" apart
	// from "could not check".
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrReauthorizationRequired means the credential can no longer be
	// refreshed. The caller must discard it and restart the connect flow.
	ErrReauthorizationRequired = errors.New("reauthorization required")

	// ErrInvalidState means the redirect carried a state token that was
	// never issued, was already consumed, or is foreign. The message is
	// deliberately uniform across those cases.
	ErrInvalidState = errors.New("invalid or expired authorization state")

	// ErrExchangeFailed means the provider rejected the code or refresh
	// exchange, or the exchange timed out. The flow must restart from
	// Begin; a consumed state token is never retryable.
	ErrExchangeFailed = errors.New("token exchange failed")
)
