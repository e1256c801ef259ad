package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/analyticket/helpdesk/internal/api/dto"
	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/service"
	apperrors "github.com/analyticket/helpdesk/pkg/util/errorutil"
)

// UsersHandler exposes account and preference endpoints.
type UsersHandler struct {
	auth          *service.AuthService
	notifications *service.NotificationService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, notifications *service.NotificationService) *UsersHandler {
	return &UsersHandler{auth: authService, notifications: notifications}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	res, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authPayload(res)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authPayload(res)})
}

// CreateStaff handles POST /admin/staff.
func (h *UsersHandler) CreateStaff(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.StaffCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.auth.CreateStaff(c.UserContext(), p, req.Name, req.Email, req.Password, domain.ParseRole(string(req.Role)))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// GetPreferences handles GET /me/notifications.
func (h *UsersHandler) GetPreferences(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	prefs, err := h.notifications.GetPreferences(c.UserContext(), p)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": preferencesResponse(prefs)})
}

// UpdatePreferences handles PUT /me/notifications.
func (h *UsersHandler) UpdatePreferences(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.NotificationPreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	prefs, err := h.notifications.UpdatePreferences(c.UserContext(), p, service.PreferencesUpdate{
		EmailOnStatusChange: req.EmailOnStatusChange,
		EmailOnNewMessage:   req.EmailOnNewMessage,
		EmailOnAssignment:   req.EmailOnAssignment,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": preferencesResponse(prefs)})
}

func authPayload(res *service.AuthResult) fiber.Map {
	return fiber.Map{
		"user": userResponse(res.User),
		"auth": dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
	}
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

func preferencesResponse(prefs *domain.NotificationPreferences) dto.NotificationPreferencesResponse {
	resp := dto.NotificationPreferencesResponse{
		EmailOnStatusChange: prefs.EmailOnStatusChange,
		EmailOnNewMessage:   prefs.EmailOnNewMessage,
		EmailOnAssignment:   prefs.EmailOnAssignment,
	}
	if !prefs.UpdatedAt.IsZero() {
		updated := prefs.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
