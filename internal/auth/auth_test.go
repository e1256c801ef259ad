package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/analyticket/helpdesk/internal/domain"
	apperrors "github.com/analyticket/helpdesk/pkg/util/errorutil"
)

func TestTokenRoundTripKeepsUnknownRole(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken(domain.Principal{ID: "u1", Role: "guest"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry")
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	p := claims.Principal()
	if p.ID != "u1" || p.Role != "guest" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestParseTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	issuer := NewTokenManager("a", 5)
	token, _, _ := issuer.GenerateToken(domain.Principal{ID: "u1", Role: domain.RoleUser})
	if _, err := NewTokenManager("b", 5).ParseToken(token); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}

	stale := NewTokenManager("a", 5)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, _ := stale.GenerateToken(domain.Principal{ID: "u1", Role: domain.RoleUser})
	if _, err := issuer.ParseToken(old); err == nil {
		t.Fatalf("expired token must fail")
	}
}

func newTestApp(tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.ID + ":" + string(p.Role))
	})
	app.Get("/", handlers...)
	return app
}

func TestMiddlewareAndRoleGuard(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, RequireRole(domain.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing header: status %d", resp.StatusCode)
	}

	userToken, _, _ := tm.GenerateToken(domain.Principal{ID: "u1", Role: domain.RoleUser})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user on admin route: status %d", resp.StatusCode)
	}

	adminToken, _, _ := tm.GenerateToken(domain.Principal{ID: "root", Role: domain.RoleAdmin})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+adminToken)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin: status %d", resp.StatusCode)
	}
}
