package auth

import (
	"strings"

	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type BootstrapRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PIN      string `json:"pin"`
}

type CreateUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
	PIN      string          `json:"pin"` // opsiyonel, sadece supervisor
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID     uint            `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	HasPIN bool            `json:"has_pin"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		HasPIN: u.PinHash != "",
	}
}

// POST /api/auth/bootstrap: ilk supervisor'ı oluşturur, sonra kapanır
func BootstrapHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BootstrapRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		var count int64
		if err := db.Model(&models.User{}).Where("role = ?", models.RoleSupervisor).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar okunamadı")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Zaten bir supervisor var")
		}

		user, err := createUser(db, CreateUserRequest{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     models.RoleSupervisor,
			PIN:      body.PIN,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/auth/users (sadece supervisor)
func CreateUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		switch body.Role {
		case models.RoleCashier, models.RoleSupervisor:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz rol (cashier|supervisor)")
		}
		if body.PIN != "" && body.Role != models.RoleSupervisor {
			return fiber.NewError(fiber.StatusBadRequest, "PIN sadece supervisor için tanımlanabilir")
		}

		user, err := createUser(db, body)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

func createUser(db *gorm.DB, body CreateUserRequest) (*models.User, error) {
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	body.Name = strings.TrimSpace(body.Name)

	if body.Email == "" || body.Password == "" || body.Name == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
	}

	user := models.User{
		Name:         body.Name,
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         body.Role,
	}

	if body.PIN != "" {
		if len(body.PIN) < 4 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "PIN en az 4 karakter olmalı")
		}
		pinHash, err := bcrypt.GenerateFromPassword([]byte(body.PIN), bcrypt.DefaultCost)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusInternalServerError, "PIN hashlenemedi")
		}
		user.PinHash = string(pinHash)
	}

	if err := db.Create(&user).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusConflict, "Kullanıcı oluşturulamadı (email kullanımda olabilir)")
	}
	return &user, nil
}

func LoginHandler(db *gorm.DB, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := db.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		token, err := GenerateToken(secret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(&user),
		})
	}
}

func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := db.First(&user, UserID(c)).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
		}
		return c.JSON(toUserResponse(&user))
	}
}
