package ai

import "errors"

var (
	// ErrUnauthorized means the backend rejected the credential (invalid
	// key, no active billing). The session resets its authorization state
	// when it sees this.
	ErrUnauthorized = errors.New("ai: credential rejected")

	// ErrMalformed means the backend answered but the payload failed
	// schema validation. Treated like any other transient failure.
	ErrMalformed = errors.New("ai: malformed model response")
)

// IsAuthError reports whether err stems from a rejected credential.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
