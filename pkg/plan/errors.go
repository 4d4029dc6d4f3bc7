package plan

import "errors"

var (
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFreePlanHasNoPrice       = errors.New("free plan has no price")
	ErrPriceNotConfigured       = errors.New("price id is not configured")
	ErrInvalidInterval          = errors.New("invalid billing interval")
	ErrUnknownPlan              = errors.New("unknown plan")
)
