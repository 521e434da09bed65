package services

import "errors"

var (
	// ErrValidation marks input rejected before anything was stored.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a store failure. Nothing was published.
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("not found")
)
