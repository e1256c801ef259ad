package policy

import "fmt"

// PolicyErrorKind classifies malformed or unauthorized filter requests.
type PolicyErrorKind string

const (
	InvalidRole PolicyErrorKind = "invalid_role"
	Forbidden   PolicyErrorKind = "forbidden"
)

// PolicyError is returned by FilterVisible. No predicate accompanies it.
type PolicyError struct {
	Kind PolicyErrorKind
	Role string
}

func (e *PolicyError) Error() string {
	switch e.Kind {
	case InvalidRole:
		return fmt.Sprintf("policy: invalid role %q", e.Role)
	case Forbidden:
		return fmt.Sprintf("policy: role %q may not request all-agent visibility", e.Role)
	default:
		return "policy: " + string(e.Kind)
	}
}

// Is matches on Kind so callers can use errors.Is with ErrInvalidRole and
// ErrForbidden.
func (e *PolicyError) Is(target error) bool {
	t, ok := target.(*PolicyError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Role == "" || t.Role == e.Role)
}

var (
	ErrInvalidRole = &PolicyError{Kind: InvalidRole}
	ErrForbidden   = &PolicyError{Kind: Forbidden}
)

// DenyReason explains why a single-ticket action was refused.
type DenyReason string

const (
	DenyNotOwner    DenyReason = "not_owner"
	DenyNotAssigned DenyReason = "not_assigned"
	DenyExpired     DenyReason = "expired"
	DenyInvalidRole DenyReason = "invalid_role"
)

// Decision is the outcome of Authorize. The zero value denies nothing and
// allows nothing; use Allowed to check.
type Decision struct {
	Allow  bool
	Reason DenyReason
}

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool { return d.Allow }

// Err returns nil for allowed decisions and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

func allow() Decision { return Decision{Allow: true} }

func deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// DeniedError carries a deny reason across service boundaries.
type DeniedError struct {
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return "policy: access denied: " + string(e.Reason)
}
