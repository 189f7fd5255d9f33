package models

import (
	"time"
)

// Account status values
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDisabled  = "disabled"
)

// User is a dashboard account. Username is optional; people can sign in with either field.
type User struct {
	ID           string
	Email        string
	Username     *string
	PasswordHash string
	Name         string
	Role         string // "user" or "admin"
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
