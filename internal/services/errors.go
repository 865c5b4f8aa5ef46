// Package services defines the business logic for lead intake, claim
// arbitration and agent identity. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Lead-related errors. Claim outcomes are not errors; see ClaimOutcome.
var (
	// ErrInvalidLead is returned when a submission fails validation
	// (empty name, malformed email, oversized fields).
	ErrInvalidLead = errors.New("invalid lead")
)

// Agent and authentication errors.
var (
	// ErrUnknownAgent is returned when a claimant id does not resolve to an agent.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnauthenticated is returned for missing, malformed or expired tokens.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials signals a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrWeakPassword is returned when a password is shorter than the
	// configured minimum or longer than bcrypt accepts.
	ErrWeakPassword = errors.New("password must be between 6 and 72 characters")

	// ErrInvalidAgent is returned for registration input that fails validation.
	ErrInvalidAgent = errors.New("invalid agent")
)

// ErrStorageUnavailable wraps every failure of the underlying store so that
// handlers can answer 5xx without inspecting driver errors.
var ErrStorageUnavailable = errors.New("storage unavailable")

// storageErr wraps err as ErrStorageUnavailable, keeping the driver text for logs.
func storageErr(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
