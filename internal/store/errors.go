package store

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidFilter   = errors.New("invalid filter")
)
