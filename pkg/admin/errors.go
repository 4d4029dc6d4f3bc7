package admin

import "errors"

var (
	ErrInvalidUserID = errors.New("admin: invalid user id in ADMIN_USER_IDS")
	ErrForbidden     = errors.New("admin: access denied")
)
