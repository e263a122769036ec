package domain

import "errors"

var (
	// ErrEngineUnavailable is returned when the dialogue engine call fails.
	ErrEngineUnavailable = errors.New("dialogue engine unavailable")

	// ErrSendFailed is returned when a single outbound platform send fails.
	ErrSendFailed = errors.New("platform send failed")
)

// ErrConfigMissing is returned at startup when a required credential is unset.
var ErrConfigMissing = errors.New("required configuration missing")
