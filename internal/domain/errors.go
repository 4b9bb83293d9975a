package domain

import "errors"

// Failure taxonomy shared by all storage backends. Backends wrap these with
// fmt.Errorf("...: %w", ...) so callers can dispatch on errors.Is while the
// message keeps the operation context.
var (
	// ErrNotFound reports an unknown location or history date.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness violation, such as adding a location
	// whose name or alias already exists, or removing a location that still
	// has dependent history.
	ErrConflict = errors.New("conflict")

	// ErrValidation reports malformed caller input, such as a date range
	// whose end precedes its start. Never worth retrying.
	ErrValidation = errors.New("validation")

	// ErrCorruptArchive reports an archive container that cannot be parsed.
	// Fatal for the location it belongs to.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrCorruptDocument reports a stored history payload that cannot be
	// decoded. Fatal for that single record.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrStorage reports an I/O or database failure. Fatal to the current
	// operation; retry policy belongs to the caller.
	ErrStorage = errors.New("storage")
)
