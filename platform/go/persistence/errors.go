package persistence

import "errors"

var (
	// ErrAccountNotFound indicates a missing account record.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountConflict indicates a uniqueness violation on email or username.
	ErrAccountConflict = errors.New("account conflict")
	// ErrTenantNotFound indicates a missing tenant record.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrDomainTaken indicates the candidate subdomain or tenant slug is already bound.
	ErrDomainTaken = errors.New("domain already taken")
	// ErrPropertyNotFound indicates a missing property record.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrPlanNotFound indicates a missing subscription plan.
	ErrPlanNotFound = errors.New("subscription plan not found")
)
