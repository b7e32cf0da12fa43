package registry

import "errors"

var (
	// ErrValidation covers empty fields and malformed links.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a link is already used by another site.
	ErrConflict = errors.New("link already in use")
	// ErrNotFound is returned for unknown site names.
	ErrNotFound = errors.New("site not found")
)
