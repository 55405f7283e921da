package auth

import (
	"context"

	"ledger-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Authorizer yetkili bir sırrı (supervisor PIN'i veya master override) doğrular.
type Authorizer interface {
	Authorize(ctx context.Context, secret string) (bool, error)
}

// PINAuthorizer: config'teki sabit hash'ler + PIN'i olan supervisor kullanıcıları
type PINAuthorizer struct {
	db     *gorm.DB
	hashes []string
}

func NewPINAuthorizer(db *gorm.DB, staticHashes []string) *PINAuthorizer {
	return &PINAuthorizer{db: db, hashes: staticHashes}
}

func (a *PINAuthorizer) Authorize(ctx context.Context, secret string) (bool, error) {
	if secret == "" {
		return false, nil
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(secret)) == nil {
			return true, nil
		}
	}

	if a.db == nil {
		return false, nil
	}

	var supervisors []models.User
	if err := a.db.WithContext(ctx).
		Where("role = ? AND pin_hash <> ''", models.RoleSupervisor).
		Find(&supervisors).Error; err != nil {
		return false, err
	}
	for _, u := range supervisors {
		if bcrypt.CompareHashAndPassword([]byte(u.PinHash), []byte(secret)) == nil {
			return true, nil
		}
	}

	return false, nil
}
