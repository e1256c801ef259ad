package service

import (
	"context"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/analyticket/helpdesk/internal/config"
	"github.com/analyticket/helpdesk/internal/domain"
)

func newAuthService(users *memUsers) *AuthService {
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            bcrypt.MinCost,
	}}
	return NewAuthService(cfg, users)
}

func TestRegisterAndLogin(t *testing.T) {
	users := newMemUsers()
	svc := newAuthService(users)
	ctx := context.Background()

	res, err := svc.Register(ctx, "Dana", " Dana@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.User.Role != domain.RoleUser || res.User.Email != "dana@example.com" || res.Token == "" {
		t.Fatalf("unexpected register result %+v", res.User)
	}
	claims, err := svc.TokenManager().ParseToken(res.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if p := claims.Principal(); p.ID != res.User.ID || p.Role != domain.RoleUser {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := svc.Login(ctx, "DANA@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = svc.Login(ctx, "dana@example.com", "wrong-password")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", de.HTTPStatus)
	}
	_, err = svc.Login(ctx, "nobody@example.com", "whatever1")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", de.HTTPStatus)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(newMemUsers())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Dana", "dana@example.com", "short"); err == nil {
		t.Fatal("weak password accepted")
	}
	if _, err := svc.Register(ctx, "Dana", "not-an-email", "long-enough"); err == nil {
		t.Fatal("invalid email accepted")
	}
	if _, err := svc.Register(ctx, "Dana", "dana@example.com", "long-enough"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, "Dana Again", "dana@example.com", "long-enough")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", de.HTTPStatus)
	}
}

func TestCreateStaffRequiresAdmin(t *testing.T) {
	svc := newAuthService(newMemUsers())
	ctx := context.Background()

	_, err := svc.CreateStaff(ctx, agentA, "New", "new@example.com", "long-enough", domain.RoleAgent)
	if de := domainErr(t, err); de.HTTPStatus != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", de.HTTPStatus)
	}
	if _, err := svc.CreateStaff(ctx, admin, "New", "new@example.com", "long-enough", domain.RoleUser); err == nil {
		t.Fatal("staff endpoint created a plain user")
	}
	user, err := svc.CreateStaff(ctx, admin, "New", "new@example.com", "long-enough", domain.RoleAgent)
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if user.Role != domain.RoleAgent {
		t.Fatalf("expected agent, got %s", user.Role)
	}
}
