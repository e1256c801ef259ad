package service

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/policy"
	apperrors "github.com/analyticket/helpdesk/pkg/util/errorutil"
)

// policyFailure converts a FilterVisible error into a DomainError that still
// unwraps to the *policy.PolicyError.
func policyFailure(err error) error {
	var pe *policy.PolicyError
	if !errors.As(err, &pe) {
		return apperrors.MapError(err)
	}
	switch pe.Kind {
	case policy.InvalidRole:
		return &apperrors.DomainError{
			Code:       "INVALID_ROLE",
			Message:    "your account role is not recognized",
			HTTPStatus: http.StatusForbidden,
			Err:        err,
		}
	default:
		return &apperrors.DomainError{
			Code:       "FORBIDDEN",
			Message:    "all-agent view requires an agent or admin role",
			HTTPStatus: http.StatusForbidden,
			Err:        err,
		}
	}
}

// deniedError renders a deny decision with a message per reason.
func deniedError(d policy.Decision, ticketID string) error {
	details := map[string]any{"ticket_id": ticketID, "reason": string(d.Reason)}
	var de *apperrors.DomainError
	switch d.Reason {
	case policy.DenyExpired:
		de = apperrors.NewGone("TICKET_EXPIRED", "this ticket no longer belongs to your recent history", details)
	case policy.DenyNotOwner:
		de = apperrors.NewDomainError("NOT_OWNER", "you do not own this ticket", http.StatusForbidden, details)
	case policy.DenyNotAssigned:
		de = apperrors.NewDomainError("NOT_ASSIGNED", "this ticket is not assigned to you", http.StatusForbidden, details)
	default:
		de = apperrors.NewDomainError("INVALID_ROLE", "your account role is not recognized", http.StatusForbidden, details)
	}
	de.Err = d.Err()
	return de
}

func ticketLookupError(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func transitionError(err error, from, to domain.TicketStatus) error {
	details := map[string]any{"from": from, "to": to}
	if errors.Is(err, domain.ErrTicketClosed) {
		return apperrors.NewConflict("ticket is closed", details)
	}
	return apperrors.NewConflict("invalid status transition", details)
}
