// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// Tenant errors
	ErrUnprovisioned = errors.New("community not provisioned")

	// Infrastructure errors
	ErrStorage         = errors.New("storage error")
	ErrExternalService = errors.New("external service error")
	ErrGone            = errors.New("entity gone")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "policy", "roles"
	Op      string // Operation that failed, e.g., "AwardXP", "Provision"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger domain errors
var (
	ErrNotProvisioned   = NewDomainError("ledger", "Resolve", ErrUnprovisioned, "community has not been set up")
	ErrMemberNotFound   = NewDomainError("ledger", "Member", ErrNotFound, "member has no record")
	ErrCooldownActive   = NewDomainError("ledger", "AwardXP", ErrInvalidState, "award cooldown still active")
	ErrInvalidCommunity = NewDomainError("ledger", "Validate", ErrInvalidID, "community ID must be a numeric snowflake")
	ErrInvalidMember    = NewDomainError("ledger", "Validate", ErrInvalidID, "member ID must be a numeric snowflake")
	ErrProvisioning     = NewDomainError("ledger", "Provision", ErrStorage, "failed to provision community namespace")
	ErrTransientStorage = NewDomainError("ledger", "Query", ErrStorage, "storage temporarily unavailable")
)

// Leveling and policy errors
var (
	ErrNegativeLevel     = NewDomainError("leveling", "Validate", ErrNegativeValue, "level must be zero or greater")
	ErrMultiplierRange   = NewDomainError("policy", "Validate", ErrValueOutOfRange, "multiplier must be between 0.1 and 10.0")
	ErrMalformedPolicy   = NewDomainError("policy", "Decode", ErrInvalidFormat, "stored channel policy is malformed")
	ErrAutomatedTarget   = NewDomainError("leveling", "Assign", ErrInvalidInput, "automated accounts cannot hold levels")
	ErrConfirmationGone  = NewDomainError("admin", "Confirm", ErrExpired, "confirmation window has closed")
	ErrConfirmationOwner = NewDomainError("admin", "Confirm", ErrInvalidInput, "confirmation belongs to another member")
)

// Platform errors
var (
	ErrEntityGone = NewDomainError("platform", "Fetch", ErrGone, "member, channel or role no longer exists")
)

// IsNotProvisioned reports whether the community has no ledger namespace.
func IsNotProvisioned(err error) bool {
	return errors.Is(err, ErrUnprovisioned)
}

// IsEntityGone reports whether a platform entity disappeared.
func IsEntityGone(err error) bool {
	return errors.Is(err, ErrGone)
}

// IsCooldown reports whether an award was blocked by the cooldown window.
func IsCooldown(err error) bool {
	return errors.Is(err, ErrCooldownActive)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}
