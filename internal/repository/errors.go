// Package repository implements persistence for all domain entities on
// top of database/sql.  This file defines the sentinel errors shared
// across repositories; handlers map them onto HTTP statuses with
// errors.Is rather than matching on driver error strings.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a referenced entity does not exist.
// Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource their role or ownership does not permit. Handlers translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with existing state,
// such as registering a duplicate plate number. Handlers translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSerialExists is returned when a cylinder registration reuses an
// existing serial number.
var ErrSerialExists = errors.New("serial number already exists")

// ErrCodeCollision is returned when a generated QR code or RFID tag
// collides with an existing one. Registration retries generation a
// bounded number of times before giving up.
var ErrCodeCollision = errors.New("generated code already exists")

// ErrInvalidTransition is returned when a status change is not
// permitted by the relevant state machine. The current status is left
// untouched.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInvalidState is returned when an operation is not allowed in the
// entity's current state, e.g. assigning a retired cylinder.
var ErrInvalidState = errors.New("invalid state for operation")

// ErrEmailExists is returned when a signup reuses an email address.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is returned when a signup reuses a username.
var ErrUsernameExists = errors.New("username already exists")

// ErrRefreshInvalid is returned when a refresh token is unknown,
// revoked or expired.
var ErrRefreshInvalid = errors.New("refresh token invalid")

// isDuplicate recognises MySQL error 1062 (duplicate entry) without
// depending on the driver's error type.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
