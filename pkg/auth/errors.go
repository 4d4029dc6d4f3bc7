package auth

import "errors"

var (
	ErrMissingToken   = errors.New("auth: missing bearer token")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrExpiredToken   = errors.New("auth: token is expired")
	ErrInvalidSubject = errors.New("auth: token subject is not a user id")
	ErrMissingSecret  = errors.New("auth: signing secret is required")
	ErrUnauthorized   = errors.New("auth: unauthorized")
)
