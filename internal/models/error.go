package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountSuspended = errors.New("account is suspended")

	// Detection errors, never fatal to a login
	ErrStoreUnavailable    = errors.New("attempt store unavailable")
	ErrMalformedRecord     = errors.New("malformed attempt record")
	ErrAlertDeliveryFailed = errors.New("alert delivery failed")
)
