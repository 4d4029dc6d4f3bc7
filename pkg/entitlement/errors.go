package entitlement

import "errors"

var (
	ErrAccessDenied     = errors.New("access denied")
	ErrUnknownPlanLevel = errors.New("unknown required plan")
)
