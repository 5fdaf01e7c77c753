package domain

import "fmt"

// Error types for consistent error handling across the aggregator.

// ErrAuth indicates the login or token exchange failed. It is fatal to a run.
type ErrAuth struct {
	Step string // login, token
	Err  error
}

func (e *ErrAuth) Error() string {
	return fmt.Sprintf("authentication failed [%s]: %v", e.Step, e.Err)
}

func (e *ErrAuth) Unwrap() error {
	return e.Err
}

// ErrFetch indicates a page of a resource could not be fetched or decoded.
type ErrFetch struct {
	Resource Resource
	Link     string
	Err      error
}

func (e *ErrFetch) Error() string {
	return fmt.Sprintf("fetch %s page %s: %v", e.Resource, e.Link, e.Err)
}

func (e *ErrFetch) Unwrap() error {
	return e.Err
}

// ErrUnexpectedStatus indicates a non-2xx answer from the remote API.
type ErrUnexpectedStatus struct {
	Service    string
	StatusCode int
}

func (e *ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("%s API returned status %d", e.Service, e.StatusCode)
}

// ErrMissingField indicates a response or entry lacks an expected field.
type ErrMissingField struct {
	Field string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrPageLimit indicates a walk exceeded the configured page ceiling.
type ErrPageLimit struct {
	Resource Resource
	MaxPages int
}

func (e *ErrPageLimit) Error() string {
	return fmt.Sprintf("%s: more than %d pages", e.Resource, e.MaxPages)
}

// ErrPaginationCycle indicates a next link pointed back to a visited page.
type ErrPaginationCycle struct {
	Resource Resource
	Link     string
}

func (e *ErrPaginationCycle) Error() string {
	return fmt.Sprintf("%s: pagination cycle at %s", e.Resource, e.Link)
}

// ErrValidation indicates a validation error (bad input or configuration).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}
