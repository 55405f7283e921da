package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger-backend/internal/database/dbtest"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-test-secret-test-secret-123"

func hash(t *testing.T, s string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func TestPINAuthorizer(t *testing.T) {
	db := dbtest.New(t)
	if err := db.Create(&models.User{
		Name: "Sup", Email: "sup@example.com", PasswordHash: hash(t, "pw"),
		Role: models.RoleSupervisor, PinHash: hash(t, "4321"),
	}).Error; err != nil {
		t.Fatal(err)
	}
	// cashier'ın PIN'i olsa bile kabul edilmemeli
	if err := db.Create(&models.User{
		Name: "Kasa", Email: "kasa@example.com", PasswordHash: hash(t, "pw"),
		Role: models.RoleCashier, PinHash: hash(t, "1111"),
	}).Error; err != nil {
		t.Fatal(err)
	}

	a := NewPINAuthorizer(db, []string{hash(t, "master-9999")})

	tests := []struct {
		secret string
		want   bool
	}{
		{"master-9999", true},
		{"4321", true},
		{"1111", false},
		{"", false},
		{"0000", false},
	}
	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			got, err := a.Authorize(context.Background(), tt.secret)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorize(%q) = %v, want %v", tt.secret, got, tt.want)
			}
		})
	}
}

func TestLoginAndRoleGate(t *testing.T) {
	db := dbtest.New(t)

	app := fiber.New()
	app.Post("/bootstrap", BootstrapHandler(db))
	app.Post("/login", LoginHandler(db, testSecret))
	protected := app.Group("", JWTMiddleware(testSecret))
	protected.Get("/me", MeHandler(db))
	protected.Get("/sup-only", RequireRole(models.RoleSupervisor), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	do := func(method, path, body, token string) *http.Response {
		t.Helper()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		return resp
	}

	resp := do("POST", "/bootstrap", `{"name":"Sup","email":"Sup@Example.com","password":"pw","pin":"4321"}`, "")
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("bootstrap status = %d", resp.StatusCode)
	}
	if resp := do("POST", "/bootstrap", `{"name":"Two","email":"two@example.com","password":"pw"}`, ""); resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("ikinci bootstrap status = %d, want 403", resp.StatusCode)
	}

	if resp := do("POST", "/login", `{"email":"sup@example.com","password":"wrong"}`, ""); resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("yanlış şifre status = %d, want 401", resp.StatusCode)
	}

	resp = do("POST", "/login", `{"email":"sup@example.com","password":"pw"}`, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.User.HasPIN || out.User.Role != models.RoleSupervisor {
		t.Errorf("beklenmeyen kullanıcı: %+v", out.User)
	}

	if resp := do("GET", "/me", "", ""); resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("token'sız /me status = %d, want 401", resp.StatusCode)
	}
	if resp := do("GET", "/sup-only", "", out.Token); resp.StatusCode != fiber.StatusOK {
		t.Errorf("supervisor /sup-only status = %d, want 200", resp.StatusCode)
	}

	cashier := models.User{ID: 99, Email: "c@example.com", Role: models.RoleCashier}
	cashierToken, err := GenerateToken(testSecret, &cashier)
	if err != nil {
		t.Fatal(err)
	}
	if resp := do("GET", "/sup-only", "", cashierToken); resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("cashier /sup-only status = %d, want 403", resp.StatusCode)
	}
}
