package results

import "errors"

// Domain errors for result store operations.
var (
	ErrNotFound        = errors.New("result not found")
	ErrDuplicate       = errors.New("result already exists")
	ErrInvalidRecord   = errors.New("invalid result record")
	ErrInvalidCriteria = errors.New("invalid search criteria")
	ErrSchemaMissing   = errors.New("results schema missing")
)
