package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeError carries a message that may be shown to staff verbatim. Kind
// classifies the failure for transport mapping.
type UserSafeError struct {
	Message string
	Kind    error
}

func (e *UserSafeError) Error() string { return e.Message }

func (e *UserSafeError) Unwrap() error { return e.Kind }

// Safe returns an error whose message is fit for a toast notification.
func Safe(message string, kind error) error {
	return &UserSafeError{Message: message, Kind: kind}
}

// GenericFailureMessage is shown for errors that were never marked safe.
const GenericFailureMessage = "Something went wrong. Please try again."

// UserSafeMessage extracts the user-facing message from err. Errors that were
// never marked safe collapse to GenericFailureMessage.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe *UserSafeError
	if errors.As(err, &safe) {
		return safe.Message
	}
	return GenericFailureMessage
}
