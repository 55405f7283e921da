package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderReady      OrderStatus = "READY"
	OrderDelivered  OrderStatus = "DELIVERED"
)

// Rank: yön karşılaştırması için sıra numarası, bilinmeyen durum için 0
func (s OrderStatus) Rank() int {
	switch s {
	case OrderPending:
		return 1
	case OrderProcessing:
		return 2
	case OrderReady:
		return 3
	case OrderDelivered:
		return 4
	default:
		return 0
	}
}

func (s OrderStatus) Valid() bool {
	return s.Rank() > 0
}

// Order: hazırlanıp teslim edilecek sipariş (Kanban kartı)
type Order struct {
	ID               uint            `gorm:"primaryKey"`
	Folio            string          `gorm:"size:40;uniqueIndex;not null"`
	ClientID         *uint           `gorm:"index"`
	CustomerName     string          `gorm:"size:150"`
	Status           OrderStatus     `gorm:"size:20;index;not null;default:'PENDING'"`
	PickingCompleted bool            `gorm:"not null;default:false"`
	Priority         int             `gorm:"not null;default:0"`
	AdvancePayment   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Balance          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	DeliveryDate     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"index;not null"`
	ProductID uint            `gorm:"index"`
	Name      string          `gorm:"size:150;not null"`
	SKU       string          `gorm:"size:50"`
	Quantity  decimal.Decimal `gorm:"type:numeric(14,3);not null"`
}

// PickingCheck: toplama listesinde işaretlenmiş kalem
type PickingCheck struct {
	ID          uint `gorm:"primaryKey"`
	OrderID     uint `gorm:"not null;uniqueIndex:idx_picking_order_item"`
	OrderItemID uint `gorm:"not null;uniqueIndex:idx_picking_order_item"`
	CheckedAt   time.Time
}

// PendingAuthorization: supervisor onayı bekleyen geri yönlü hareket.
// Sipariş başına en fazla bir tane; süresi dolunca geçersiz.
type PendingAuthorization struct {
	ID          uint        `gorm:"primaryKey"`
	OrderID     uint        `gorm:"not null;uniqueIndex"`
	FromStatus  OrderStatus `gorm:"size:20;not null"`
	ToStatus    OrderStatus `gorm:"size:20;not null"`
	RequestedBy uint
	Attempts    int       `gorm:"not null;default:0"`
	ExpiresAt   time.Time `gorm:"index;not null"`
	CreatedAt   time.Time
}
