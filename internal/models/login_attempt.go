package models

import "time"

// AttemptStatus is the recorded outcome of an authentication attempt
type AttemptStatus string

const (
	AttemptStatusAttempted       AttemptStatus = "attempted"
	AttemptStatusSuccess         AttemptStatus = "success"
	AttemptStatusFailed          AttemptStatus = "failed"
	AttemptStatusAccountNotFound AttemptStatus = "account_not_found"
	AttemptStatusUnauthorized    AttemptStatus = "unauthorized"
	AttemptStatusError           AttemptStatus = "error"
	AttemptStatusReset           AttemptStatus = "reset"
)

// DefaultAttemptRetention is how long attempts are kept before the cleanup job removes them
const DefaultAttemptRetention = 30 * 24 * time.Hour

// LoginAttempt represents a single authentication attempt.
// Identifier and AccountID are empty when the caller sent no identifier or it did not resolve.
type LoginAttempt struct {
	ID          string        `db:"id"`
	Identifier  string        `db:"identifier"`
	AccountID   string        `db:"account_id"`
	IPAddress   string        `db:"ip_address"`
	UserAgent   string        `db:"user_agent"`
	AttemptTime time.Time     `db:"attempt_time"`
	Status      AttemptStatus `db:"status"`
	ExpiresAt   time.Time     `db:"expires_at"`
}

// AttemptFilter selects login attempts. Empty fields are not filtered on.
type AttemptFilter struct {
	IPAddress  string
	Identifier string
	AccountID  string
	Statuses   []AttemptStatus
}
