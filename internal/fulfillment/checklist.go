package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/audit"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ChecklistItem struct {
	OrderItemID uint            `json:"order_item_id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	Checked     bool            `json:"checked"`
}

type ChecklistView struct {
	OrderID          uint               `json:"order_id"`
	Status           models.OrderStatus `json:"status"`
	PickingCompleted bool               `json:"picking_completed"`
	Items            []ChecklistItem    `json:"items"`
	Checked          int                `json:"checked"`
	Total            int                `json:"total"`
}

type FinishResult struct {
	OrderID          uint               `json:"order_id"`
	Status           models.OrderStatus `json:"status"`
	PickingCompleted bool               `json:"picking_completed"`
	Checked          int                `json:"checked"`
	Total            int                `json:"total"`
	Warning          string             `json:"warning,omitempty"`
}

func (s *Service) Checklist(ctx context.Context, orderID uint) (*ChecklistView, error) {
	return buildChecklist(s.db.WithContext(ctx), orderID)
}

// ToggleChecklistItem kalemi işaretler veya işareti kaldırır, yeni durumu döner
func (s *Service) ToggleChecklistItem(ctx context.Context, orderID, itemID uint) (bool, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	var checked bool
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := lockOrder(tx, orderID); err != nil {
			return err
		}

		var item models.OrderItem
		if err := tx.Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("sipariş kalemi", itemID)
			}
			return apperr.Persistence("sipariş kalemi okunamadı", err)
		}

		res := tx.Where("order_id = ? AND order_item_id = ?", orderID, itemID).Delete(&models.PickingCheck{})
		if res.Error != nil {
			return apperr.Persistence("işaret kaldırılamadı", res.Error)
		}
		if res.RowsAffected > 0 {
			checked = false
			return nil
		}

		if err := tx.Create(&models.PickingCheck{OrderID: orderID, OrderItemID: itemID, CheckedAt: s.now()}).Error; err != nil {
			return apperr.Persistence("kalem işaretlenemedi", err)
		}
		checked = true
		return nil
	})
	return checked, err
}

// FinishPicking toplamayı tamamlar ve siparişi PROCESSING'e çeker; READY'ye
// geçiş ayrıca istenmelidir. Tekrar çağrılması güvenlidir.
func (s *Service) FinishPicking(ctx context.Context, orderID, finishedBy uint) (*FinishResult, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	now := s.now()
	var result *FinishResult

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderDelivered {
			return fmt.Errorf("teslim edilmiş siparişte toplama yapılamaz: %w", apperr.ErrInvalidTransition)
		}
		if err := s.checkNoPending(tx, orderID, now); err != nil {
			return err
		}

		view, err := buildChecklist(tx, orderID)
		if err != nil {
			return err
		}

		result = &FinishResult{
			OrderID:          orderID,
			PickingCompleted: true,
			Checked:          view.Checked,
			Total:            view.Total,
		}
		if view.Checked < view.Total {
			result.Warning = fmt.Sprintf("%d kalemden %d tanesi işaretlendi", view.Total, view.Checked)
		}

		if !order.PickingCompleted {
			if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Update("picking_completed", true).Error; err != nil {
				return apperr.Persistence("toplama durumu güncellenemedi", err)
			}
			if err := audit.WriteLog(tx, audit.LogOptions{
				UserID:      finishedBy,
				EntityType:  "order",
				EntityID:    orderID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Toplama tamamlandı (%d/%d)", view.Checked, view.Total),
			}); err != nil {
				return apperr.Persistence("audit log yazılamadı", err)
			}
		}

		// READY'deki sipariş geri çekilmez
		if order.Status.Rank() < models.OrderProcessing.Rank() {
			if err := applyStatus(tx, order, models.OrderProcessing, finishedBy, "toplama bitti"); err != nil {
				return err
			}
		}
		result.Status = order.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func buildChecklist(db *gorm.DB, orderID uint) (*ChecklistView, error) {
	var order models.Order
	if err := db.Preload("Items", func(q *gorm.DB) *gorm.DB {
		return q.Order("id asc")
	}).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sipariş", orderID)
		}
		return nil, apperr.Persistence("sipariş okunamadı", err)
	}

	var checks []models.PickingCheck
	if err := db.Where("order_id = ?", orderID).Find(&checks).Error; err != nil {
		return nil, apperr.Persistence("toplama listesi okunamadı", err)
	}
	checked := make(map[uint]bool, len(checks))
	for _, c := range checks {
		checked[c.OrderItemID] = true
	}

	view := &ChecklistView{
		OrderID:          order.ID,
		Status:           order.Status,
		PickingCompleted: order.PickingCompleted,
		Items:            make([]ChecklistItem, 0, len(order.Items)),
		Total:            len(order.Items),
	}
	for _, it := range order.Items {
		view.Items = append(view.Items, ChecklistItem{
			OrderItemID: it.ID,
			Name:        it.Name,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			Checked:     checked[it.ID],
		})
		if checked[it.ID] {
			view.Checked++
		}
	}
	return view, nil
}
