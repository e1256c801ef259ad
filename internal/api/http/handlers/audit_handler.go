package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/analyticket/helpdesk/pkg/util/errorutil"
)

// DenialCounter counts recorded denials for a principal.
type DenialCounter interface {
	CountByPrincipal(ctx context.Context, principalID string) (int, error)
}

// AuditHandler exposes the denial audit trail to admins.
type AuditHandler struct {
	denials DenialCounter
}

// NewAuditHandler constructs handler.
func NewAuditHandler(denials DenialCounter) *AuditHandler {
	return &AuditHandler{denials: denials}
}

// CountDenials GET /admin/audit/denials?principal_id=.
func (h *AuditHandler) CountDenials(c *fiber.Ctx) error {
	principalID := strings.TrimSpace(c.Query("principal_id"))
	if principalID == "" {
		return apperrors.NewValidationError("principal_id required", nil)
	}
	n, err := h.denials.CountByPrincipal(c.UserContext(), principalID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"principal_id": principalID, "denied": n}})
}
