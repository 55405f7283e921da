package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCredit PaymentMethod = "credit" // veresiye
)

// Invoice: tamamlanmış satış (ticket). Kredili satışta RemainingBalance = Total ile başlar,
// sadece ödeme dağıtımı tarafından azaltılır; 0'a inince artık değişmez.
type Invoice struct {
	ID               uint  `gorm:"primaryKey"`
	ClientID         *uint `gorm:"index"` // nakit satışta nil olabilir
	Client           *Client
	Method           PaymentMethod   `gorm:"size:20;not null"`
	Total            decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	RemainingBalance decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	AmountTendered   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Date             time.Time       `gorm:"index;not null"` // FIFO anahtarı
	Details          string          `gorm:"type:text"`      // ödeme detayları (JSON)
	RecordedBy       uint
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items   []InvoiceItem    `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	History []InvoicePayment `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// InvoiceItem: fatura satırı
type InvoiceItem struct {
	ID           uint            `gorm:"primaryKey"`
	InvoiceID    uint            `gorm:"index;not null"`
	ProductID    uint            `gorm:"index;not null"`
	Name         string          `gorm:"size:150;not null"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Quantity     decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	PackQuantity int             `gorm:"not null;default:1"`
	LineSubtotal decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt    time.Time
}

// InvoicePayment: faturanın ödeme geçmişi (sıralı)
type InvoicePayment struct {
	ID        uint            `gorm:"primaryKey"`
	InvoiceID uint            `gorm:"index;not null"`
	PaymentID *uint           `gorm:"index"`
	Date      time.Time       `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Note      string          `gorm:"size:255"`
	CreatedAt time.Time
}
