package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product: katalog ürünü. Tartılan ürünlerde stok kesirli olabilir.
type Product struct {
	ID           uint            `gorm:"primaryKey"`
	Name         string          `gorm:"size:150;not null"`
	SKU          string          `gorm:"size:50;index"`
	Unit         string          `gorm:"size:20;not null;default:'adet'"`
	Price        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Stock        decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	PackQuantity int             `gorm:"not null;default:1"` // bir paket kaç birim
	IsWeighable  bool            `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
