package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashMovementType string

const (
	CashIn  CashMovementType = "IN"
	CashOut CashMovementType = "OUT"
)

// CashMovement: kasaya giren/çıkan her para hareketi (vardiya mutabakatı için)
type CashMovement struct {
	ID         uint             `gorm:"primaryKey"`
	Date       time.Time        `gorm:"index;not null"` // gün bazlı
	Type       CashMovementType `gorm:"size:10;not null"`
	Amount     decimal.Decimal  `gorm:"type:numeric(14,2);not null"`
	Reason     string           `gorm:"size:255;not null"`
	SourceType string           `gorm:"size:30;index"` // "payment" / "sale"
	SourceID   uint             `gorm:"index"`
	RecordedBy uint
	CreatedAt  time.Time
}
