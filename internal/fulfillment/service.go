package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/audit"
	"ledger-backend/internal/database"
	"ledger-backend/internal/keylock"
	"ledger-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeApplied              Outcome = "applied"
	OutcomePendingAuthorization Outcome = "pending_authorization"
	OutcomeRejected             Outcome = "rejected"
)

type Service struct {
	db    *gorm.DB
	gate  *Gate
	locks *keylock.Map
	now   func() time.Time
}

func NewService(db *gorm.DB, gate *Gate) *Service {
	return &Service{
		db:    db,
		gate:  gate,
		locks: keylock.New(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type NewOrderItem struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type NewOrder struct {
	ClientID       *uint
	CustomerName   string
	Priority       int
	AdvancePayment decimal.Decimal
	Balance        decimal.Decimal
	DeliveryDate   *time.Time
	Items          []NewOrderItem
	CreatedBy      uint
}

type TransitionResult struct {
	OrderID    uint               `json:"order_id"`
	Outcome    Outcome            `json:"outcome"`
	FromStatus models.OrderStatus `json:"from_status"`
	ToStatus   models.OrderStatus `json:"to_status"`
	Status     models.OrderStatus `json:"status"`
	// PROCESSING'e girildi ve toplama bitmedi: arayüz toplama listesini açmalı
	OpenChecklist bool       `json:"open_checklist"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type AuthorizationResult struct {
	OrderID    uint               `json:"order_id"`
	Granted    bool               `json:"granted"`
	FromStatus models.OrderStatus `json:"from_status"`
	Status     models.OrderStatus `json:"status"`
}

func (s *Service) CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("sipariş en az bir kalem içermeli: %w", apperr.ErrInvalidInput)
	}
	if in.AdvancePayment.IsNegative() || in.Balance.IsNegative() {
		return nil, apperr.ErrInvalidAmount
	}

	draft := models.Order{
		Folio:            uuid.NewString(),
		ClientID:         in.ClientID,
		CustomerName:     strings.TrimSpace(in.CustomerName),
		Status:           models.OrderPending,
		PickingCompleted: false,
		Priority:         in.Priority,
		AdvancePayment:   in.AdvancePayment.Round(2),
		Balance:          in.Balance.Round(2),
		DeliveryDate:     in.DeliveryDate,
	}

	var order models.Order
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		// tekrar denemede önceki denemenin ID ve kalemleri taşınmaz
		order = draft
		order.Items = nil

		if in.ClientID != nil {
			var client models.Client
			if err := tx.First(&client, "id = ?", *in.ClientID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("müşteri", *in.ClientID)
				}
				return apperr.Persistence("müşteri okunamadı", err)
			}
			if order.CustomerName == "" {
				order.CustomerName = client.Name
			}
		}

		for i, it := range in.Items {
			if !it.Quantity.IsPositive() {
				return fmt.Errorf("kalem %d: miktar 0'dan büyük olmalı: %w", i+1, apperr.ErrInvalidInput)
			}
			item := models.OrderItem{ProductID: it.ProductID, Name: strings.TrimSpace(it.Name), SKU: it.SKU, Quantity: it.Quantity}
			if it.ProductID > 0 {
				var p models.Product
				if err := tx.First(&p, "id = ?", it.ProductID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return apperr.NotFound("ürün", it.ProductID)
					}
					return apperr.Persistence("ürün okunamadı", err)
				}
				if item.Name == "" {
					item.Name = p.Name
				}
				if item.SKU == "" {
					item.SKU = p.SKU
				}
			}
			if item.Name == "" {
				return fmt.Errorf("kalem %d: ürün adı zorunlu: %w", i+1, apperr.ErrInvalidInput)
			}
			order.Items = append(order.Items, item)
		}

		if err := tx.Create(&order).Error; err != nil {
			return apperr.Persistence("sipariş oluşturulamadı", err)
		}
		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      in.CreatedBy,
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Sipariş %s oluşturuldu, %d kalem", order.Folio, len(order.Items)),
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sipariş", orderID)
		}
		return nil, apperr.Persistence("sipariş okunamadı", err)
	}
	return &order, nil
}

type BoardColumn struct {
	Status models.OrderStatus `json:"status"`
	Orders []models.Order     `json:"orders"`
}

var boardStatuses = []models.OrderStatus{
	models.OrderPending,
	models.OrderProcessing,
	models.OrderReady,
	models.OrderDelivered,
}

// ListBoard siparişleri Kanban sütunlarına böler (öncelik yüksek olan önce)
func (s *Service) ListBoard(ctx context.Context) ([]BoardColumn, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Order("priority desc, created_at asc, id asc").
		Find(&orders).Error; err != nil {
		return nil, apperr.Persistence("siparişler okunamadı", err)
	}

	cols := make([]BoardColumn, len(boardStatuses))
	idx := make(map[models.OrderStatus]int, len(boardStatuses))
	for i, st := range boardStatuses {
		cols[i] = BoardColumn{Status: st, Orders: []models.Order{}}
		idx[st] = i
	}
	for _, o := range orders {
		if i, ok := idx[o.Status]; ok {
			cols[i].Orders = append(cols[i].Orders, o)
		}
	}
	return cols, nil
}

// DeleteOrder idari silme; bir durum geçişi değildir
func (s *Service) DeleteOrder(ctx context.Context, orderID, deletedBy uint) error {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}

		for _, m := range []any{&models.PickingCheck{}, &models.PendingAuthorization{}, &models.OrderItem{}} {
			if err := tx.Where("order_id = ?", orderID).Delete(m).Error; err != nil {
				return apperr.Persistence("sipariş bağlı kayıtları silinemedi", err)
			}
		}
		if err := tx.Delete(&models.Order{}, orderID).Error; err != nil {
			return apperr.Persistence("sipariş silinemedi", err)
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      deletedBy,
			EntityType:  "order",
			EntityID:    orderID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Sipariş %s silindi (%s)", order.Folio, order.Status),
			Before:      map[string]any{"status": order.Status, "picking_completed": order.PickingCompleted},
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}
		return nil
	})
}

// RequestTransition Kanban'dan gelen durum değişikliğini uygular.
// Kurallar sırayla: bekleyen onay, terminal durum, toplama kapısı, geri yön kapısı.
func (s *Service) RequestTransition(ctx context.Context, orderID uint, to models.OrderStatus, requestedBy uint) (*TransitionResult, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("bilinmeyen durum %q: %w", to, apperr.ErrInvalidInput)
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	now := s.now()
	var result *TransitionResult

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := s.checkNoPending(tx, orderID, now); err != nil {
			return err
		}

		from := order.Status
		result = &TransitionResult{OrderID: orderID, FromStatus: from, ToStatus: to, Status: from}

		if from == to {
			result.Outcome = OutcomeApplied
			return nil
		}
		if from == models.OrderDelivered {
			return fmt.Errorf("teslim edilmiş sipariş geri alınamaz: %w", apperr.ErrInvalidTransition)
		}

		// READY'ye ancak toplama bittikten sonra girilir
		if to.Rank() >= models.OrderReady.Rank() && from.Rank() < models.OrderReady.Rank() && !order.PickingCompleted {
			return apperr.ErrPickingIncomplete
		}

		if to.Rank() < from.Rank() {
			expires := now.Add(s.gate.cfg.PendingTTL)
			pending := models.PendingAuthorization{
				OrderID:     orderID,
				FromStatus:  from,
				ToStatus:    to,
				RequestedBy: requestedBy,
				ExpiresAt:   expires,
			}
			if err := tx.Create(&pending).Error; err != nil {
				return apperr.Persistence("onay isteği kaydedilemedi", err)
			}
			if err := audit.WriteLog(tx, audit.LogOptions{
				UserID:      requestedBy,
				EntityType:  "order",
				EntityID:    orderID,
				Action:      models.AuditActionTransition,
				Description: fmt.Sprintf("%s -> %s geri yönlü hareket onay bekliyor", from, to),
			}); err != nil {
				return apperr.Persistence("audit log yazılamadı", err)
			}
			result.Outcome = OutcomePendingAuthorization
			result.ExpiresAt = &expires
			return nil
		}

		if err := applyStatus(tx, order, to, requestedBy, ""); err != nil {
			return err
		}
		result.Outcome = OutcomeApplied
		result.Status = to
		result.OpenChecklist = to == models.OrderProcessing && !order.PickingCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitAuthorization bekleyen geri yönlü hareketi supervisor sırrıyla çözer.
// Hatalı denemeler sayılır; sınır aşılınca bekleyen istek düşer.
func (s *Service) SubmitAuthorization(ctx context.Context, orderID uint, secret string, submittedBy uint) (*AuthorizationResult, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	pending, err := s.activePending(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Authorizer kendi sorgularını yapar, transaction dışında çağrılır
	capability, err := s.gate.Challenge(ctx, secret, orderID, pending.ToStatus)
	if errors.Is(err, apperr.ErrAuthorizationDenied) {
		return nil, s.recordDenied(ctx, pending, submittedBy)
	}
	if err != nil {
		return nil, err
	}

	// jti bir kez harcanır, transaction tekrar denense de burada kalır
	if err := s.gate.Consume(capability, orderID, pending.ToStatus); err != nil {
		return nil, err
	}

	var result *AuthorizationResult
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}

		var current models.PendingAuthorization
		if err := tx.Where("order_id = ?", orderID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNoPendingAuthorization
			}
			return apperr.Persistence("onay isteği okunamadı", err)
		}
		if current.ID != pending.ID {
			return apperr.ErrNoPendingAuthorization
		}

		if err := tx.Delete(&current).Error; err != nil {
			return apperr.Persistence("onay isteği silinemedi", err)
		}
		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      submittedBy,
			EntityType:  "order",
			EntityID:    orderID,
			Action:      models.AuditActionAuthorize,
			Description: fmt.Sprintf("%s -> %s onaylandı", current.FromStatus, current.ToStatus),
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}

		from := order.Status
		if err := applyStatus(tx, order, current.ToStatus, submittedBy, "supervisor onayı"); err != nil {
			return err
		}
		result = &AuthorizationResult{OrderID: orderID, Granted: true, FromStatus: from, Status: current.ToStatus}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelAuthorization bekleyen isteği yan etkisiz olarak düşürür
func (s *Service) CancelAuthorization(ctx context.Context, orderID, cancelledBy uint) error {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := lockOrder(tx, orderID); err != nil {
			return err
		}

		res := tx.Where("order_id = ?", orderID).Delete(&models.PendingAuthorization{})
		if res.Error != nil {
			return apperr.Persistence("onay isteği silinemedi", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNoPendingAuthorization
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      cancelledBy,
			EntityType:  "order",
			EntityID:    orderID,
			Action:      models.AuditActionDeny,
			Description: "Geri yönlü hareket iptal edildi",
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}
		return nil
	})
}

// activePending: süresi dolmuş istek burada temizlenir
func (s *Service) activePending(ctx context.Context, orderID uint) (*models.PendingAuthorization, error) {
	var pending models.PendingAuthorization
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&pending).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, err := s.GetOrder(ctx, orderID); err != nil {
				return nil, err
			}
			return nil, apperr.ErrNoPendingAuthorization
		}
		return nil, apperr.Persistence("onay isteği okunamadı", err)
	}

	if !s.now().Before(pending.ExpiresAt) {
		if err := s.db.WithContext(ctx).Delete(&pending).Error; err != nil {
			return nil, apperr.Persistence("süresi dolan onay isteği silinemedi", err)
		}
		return nil, apperr.ErrAuthorizationExpired
	}
	return &pending, nil
}

func (s *Service) recordDenied(ctx context.Context, pending *models.PendingAuthorization, by uint) error {
	attempts := pending.Attempts + 1
	left := s.gate.cfg.MaxAttempts - attempts

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if left <= 0 {
			if err := tx.Delete(pending).Error; err != nil {
				return apperr.Persistence("onay isteği silinemedi", err)
			}
		} else if err := tx.Model(pending).Update("attempts", attempts).Error; err != nil {
			return apperr.Persistence("deneme sayısı güncellenemedi", err)
		}

		return audit.WriteLog(tx, audit.LogOptions{
			UserID:      by,
			EntityType:  "order",
			EntityID:    pending.OrderID,
			Action:      models.AuditActionDeny,
			Description: fmt.Sprintf("%s -> %s için hatalı PIN (%d/%d)", pending.FromStatus, pending.ToStatus, attempts, s.gate.cfg.MaxAttempts),
		})
	})
	if err != nil {
		return apperr.Persistence("red kaydı yazılamadı", err)
	}

	if left <= 0 {
		return fmt.Errorf("%w: deneme hakkı bitti, istek iptal edildi", apperr.ErrAuthorizationDenied)
	}
	return fmt.Errorf("%w: %d deneme hakkı kaldı", apperr.ErrAuthorizationDenied, left)
}

func (s *Service) checkNoPending(tx *gorm.DB, orderID uint, now time.Time) error {
	var pending models.PendingAuthorization
	err := tx.Where("order_id = ?", orderID).First(&pending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Persistence("onay isteği okunamadı", err)
	}
	if now.Before(pending.ExpiresAt) {
		return apperr.ErrAuthorizationPending
	}
	if err := tx.Delete(&pending).Error; err != nil {
		return apperr.Persistence("süresi dolan onay isteği silinemedi", err)
	}
	return nil
}

func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := database.LockForUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sipariş", orderID)
		}
		return nil, apperr.Persistence("sipariş okunamadı", err)
	}
	return &order, nil
}

func applyStatus(tx *gorm.DB, order *models.Order, to models.OrderStatus, by uint, note string) error {
	from := order.Status
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", to).Error; err != nil {
		return apperr.Persistence("sipariş durumu güncellenemedi", err)
	}
	order.Status = to

	desc := fmt.Sprintf("%s -> %s", from, to)
	if note != "" {
		desc += " (" + note + ")"
	}
	if err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      by,
		EntityType:  "order",
		EntityID:    order.ID,
		Action:      models.AuditActionTransition,
		Description: desc,
		Before:      map[string]any{"status": from},
		After:       map[string]any{"status": to},
	}); err != nil {
		return apperr.Persistence("audit log yazılamadı", err)
	}
	return nil
}
