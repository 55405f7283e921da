package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment: müşteriden alınan tahsilat. Bir kez oluşturulur, değişmez.
type Payment struct {
	ID              uint `gorm:"primaryKey"`
	ClientID        uint `gorm:"index;not null"`
	Client          Client
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Note            string          `gorm:"size:255"`
	RecordedBy      uint
	PreviousBalance decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	NewBalance      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Unallocated     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"` // açık borçtan fazla ödenen kısım
	CreatedAt       time.Time

	Allocations []PaymentAllocation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// PaymentAllocation: tahsilatın fatura bazında dağılımı (fiş basımı için)
type PaymentAllocation struct {
	ID            uint            `gorm:"primaryKey"`
	PaymentID     uint            `gorm:"index;not null"`
	InvoiceID     uint            `gorm:"index;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
}
