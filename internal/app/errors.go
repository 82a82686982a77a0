package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	ErrUsernameRequired = errors.New("username required")
	ErrEmailRequired    = errors.New("email required")
	ErrPasswordRequired = errors.New("password required")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrEmailTaken       = errors.New("email already exists")

	ErrTextRequired    = errors.New("diary text required")
	ErrMessageRequired = errors.New("message required")
	ErrEntryNotFound   = errors.New("diary entry not found")

	// ErrAnalysisUnavailable wraps analyzer transport failures so handlers
	// can map them to a gateway error instead of a generic server error.
	ErrAnalysisUnavailable = errors.New("analysis backend unavailable")
)
