package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ledger-backend/internal/database"
	"ledger-backend/internal/database/dbtest"
	"ledger-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestWithTransactionRollsBack(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := database.WithTransaction(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Client{Name: "Ayşe", CurrentBalance: decimal.NewFromInt(10)}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	var count int64
	db.Model(&models.Client{}).Count(&count)
	if count != 0 {
		t.Errorf("rollback sonrası %d müşteri kaldı, 0 bekleniyordu", count)
	}
}

func TestWithTransactionCommits(t *testing.T) {
	db := dbtest.New(t)

	err := database.WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		return tx.Create(&models.Client{Name: "Mehmet"}).Error
	})
	if err != nil {
		t.Fatalf("beklenmeyen hata: %v", err)
	}

	var c models.Client
	if err := database.LockForUpdate(db).First(&c, "name = ?", "Mehmet").Error; err != nil {
		t.Fatalf("müşteri okunamadı: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock wrapped", fmt.Errorf("save: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := database.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := database.Open("oracle", ""); err == nil {
		t.Fatal("bilinmeyen sürücü için hata bekleniyordu")
	}
}
