package authz

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrProjectNotFound    = errors.New("project not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvariantViolation = errors.New("invariant violation")
)

// Specific invariant failures wrap ErrInvariantViolation so callers can
// match either the broad kind or the exact cause.
var (
	ErrAlreadyMember  = fmt.Errorf("%w: account already holds a role on this project", ErrInvariantViolation)
	ErrMemberViaGrant = fmt.Errorf("%w: membership is added via AddMember, not GrantRole", ErrInvariantViolation)
	ErrOwnerViaGrant  = fmt.Errorf("%w: ownership changes only via ChangeOwner", ErrInvariantViolation)
	ErrDuplicateGrant = fmt.Errorf("%w: account already holds this role", ErrInvariantViolation)
	ErrKickOwner      = fmt.Errorf("%w: cannot revoke all roles of the project owner", ErrInvariantViolation)
	ErrUnknownRole    = fmt.Errorf("%w: unknown role", ErrInvariantViolation)
)
