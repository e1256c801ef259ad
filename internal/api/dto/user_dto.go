package dto

import (
	"time"

	"github.com/analyticket/helpdesk/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StaffCreateRequest payload for admin-provisioned accounts.
type StaffCreateRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotificationPreferencesRequest payload. Absent fields are left unchanged.
type NotificationPreferencesRequest struct {
	EmailOnStatusChange *bool `json:"email_on_status_change"`
	EmailOnNewMessage   *bool `json:"email_on_new_message"`
	EmailOnAssignment   *bool `json:"email_on_assignment"`
}

// NotificationPreferencesResponse mirrors stored settings.
type NotificationPreferencesResponse struct {
	EmailOnStatusChange bool       `json:"email_on_status_change"`
	EmailOnNewMessage   bool       `json:"email_on_new_message"`
	EmailOnAssignment   bool       `json:"email_on_assignment"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}
