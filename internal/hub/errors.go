package hub

import "errors"

// Error taxonomy for the hub core. Every failure is either rejected at the
// boundary (validation, lookup) or logged and contained (dispatch, sweeps);
// none is process-fatal.
var (
	// ErrValidation marks a malformed readout payload. Nothing is
	// persisted when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrUntrusted marks a device reporting faster than its assigned
	// interval or with a clock ahead of the hub. Rejected and logged as a
	// warning; device state is unchanged.
	ErrUntrusted = errors.New("untrusted behavior")

	// ErrNotFound is returned for unknown device or alert identifiers.
	ErrNotFound = errors.New("not found")

	// ErrAlreadySent is returned by the manual dispatch entry point when
	// the alert's email was already sent during its open lifetime.
	ErrAlreadySent = errors.New("alert email already sent")

	// ErrUnsupportedType is returned by the manual dispatch entry point
	// for non-temperature alerts.
	ErrUnsupportedType = errors.New("only temperature alerts can be emailed")

	// ErrBadRegistrationKey is returned when a device registration carries
	// a credential that does not match the current keyring value.
	ErrBadRegistrationKey = errors.New("bad registration key")
)
