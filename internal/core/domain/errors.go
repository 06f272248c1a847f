package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the core matches exactly one of
// these through errors.Is.
var (
	ErrTransport = errors.New("transport failure")
	ErrRemote    = errors.New("remote error")
	ErrContract  = errors.New("contract violation")
	ErrPolicy    = errors.New("policy violation")
)

var ErrNotFound = errors.New("domain: not found")

// Policy and contract sentinels. They also match their kind above.
var (
	ErrInvalidTransition = &PolicyViolation{Rule: "transition"}
	ErrTargetReached     = &PolicyViolation{Rule: "target_reached"}
	ErrWouldExceedTarget = &PolicyViolation{Rule: "exceeds_target"}
	ErrUnlabeledRow      = &PolicyViolation{Rule: "unlabeled_row"}
	ErrSeedCount         = &PolicyViolation{Rule: "seed_count"}
	ErrRecommendCount    = &PolicyViolation{Rule: "recommendation_count"}
	ErrMissingAttribute  = &ContractViolation{Field: "seed_attribute"}
	ErrMissingLabel      = &ContractViolation{Field: "LABEL"}
)

// TransportError wraps a network or HTTP failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// RemoteError is an error envelope returned by the catalog in place of data.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrRemote, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrRemote, e.Status, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// Unauthorized reports whether the remote rejected the credential.
func (e *RemoteError) Unauthorized() bool {
	return e.Status == 401
}

// ContractViolation reports a field missing from a response or upload.
type ContractViolation struct {
	Field  string
	Detail string
}

func (e *ContractViolation) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: missing %s", ErrContract, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", ErrContract, e.Field, e.Detail)
}

// Is matches the kind sentinel and any ContractViolation with the same field.
func (e *ContractViolation) Is(target error) bool {
	if target == ErrContract {
		return true
	}
	t, ok := target.(*ContractViolation)
	return ok && t.Field == e.Field
}

// PolicyViolation reports a workflow rule that was broken.
type PolicyViolation struct {
	Rule   string
	Detail string
}

func (e *PolicyViolation) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrPolicy, e.Rule)
	}
	return fmt.Sprintf("%s: %s: %s", ErrPolicy, e.Rule, e.Detail)
}

// Is matches the kind sentinel and any PolicyViolation with the same rule.
func (e *PolicyViolation) Is(target error) bool {
	if target == ErrPolicy {
		return true
	}
	t, ok := target.(*PolicyViolation)
	return ok && t.Rule == e.Rule
}

func violation(base *PolicyViolation, format string, args ...any) error {
	return &PolicyViolation{Rule: base.Rule, Detail: fmt.Sprintf(format, args...)}
}

func missing(field, format string, args ...any) error {
	return &ContractViolation{Field: field, Detail: fmt.Sprintf(format, args...)}
}
