package apperr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotReady signals that a matching request has no terminal result yet.
	ErrNotReady = errors.New("result not ready")
	// ErrReferenceNotFound signals a dataset or datastore ID that does not exist.
	ErrReferenceNotFound = errors.New("reference not found")
)
