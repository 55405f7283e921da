package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client: veresiye (kredili) satış yapılan müşteri
type Client struct {
	ID             uint            `gorm:"primaryKey"`
	Name           string          `gorm:"size:150;not null"`
	Phone          string          `gorm:"size:50"`
	CreditLimit    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"` // açık faturaların kalan toplamı (>= 0)
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
