package apperrors

import "errors"

// Standardized store and configuration errors
var (
	ErrChecksumMismatch  = errors.New("snapshot checksum mismatch")
	ErrUnknownBackend    = errors.New("unknown persistence backend")
	ErrStoreClosed       = errors.New("snapshot store closed")
	ErrInvalidZoneBounds = errors.New("zone bounds invalid")
	ErrUnknownPolicyType = errors.New("unknown exit policy type")
)
