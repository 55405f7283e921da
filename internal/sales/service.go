package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/audit"
	"ledger-backend/internal/cashflow"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var epsilon = decimal.New(5, -3)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CartLine: sepetteki tek satır. UnitPrice boşsa katalog fiyatı kullanılır.
type CartLine struct {
	ProductID uint             `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type SaleRequest struct {
	Items      []CartLine
	Total      decimal.Decimal
	Method     models.PaymentMethod
	ClientID   *uint
	Details    map[string]string
	RecordedBy uint
}

// StockShortfall: stoktan fazla satılan ürün. Hata değil, satış devam eder.
type StockShortfall struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

type SaleResult struct {
	Invoice             models.Invoice   `json:"invoice"`
	Shortfalls          []StockShortfall `json:"shortfalls"`
	CreditLimitExceeded bool             `json:"credit_limit_exceeded"`
}

func validate(req SaleRequest) error {
	if !req.Total.Round(2).IsPositive() {
		return apperr.ErrInvalidAmount
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("sepet boş: %w", apperr.ErrInvalidInput)
	}
	switch req.Method {
	case models.PaymentMethodCash, models.PaymentMethodCard:
	case models.PaymentMethodCredit:
		if req.ClientID == nil || *req.ClientID == 0 {
			return fmt.Errorf("veresiye satış için müşteri zorunlu: %w", apperr.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("ödeme yöntemi geçersiz (%q): %w", req.Method, apperr.ErrInvalidInput)
	}
	for i, line := range req.Items {
		if line.ProductID == 0 {
			return fmt.Errorf("satır %d: ürün seçilmedi: %w", i+1, apperr.ErrInvalidInput)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("satır %d: miktar 0'dan büyük olmalı: %w", i+1, apperr.ErrInvalidInput)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return fmt.Errorf("satır %d: birim fiyat negatif olamaz: %w", i+1, apperr.ErrInvalidInput)
		}
	}
	return nil
}

// PostSale fatura başlığını, satırları, stok düşümünü ve (veresiye ise) müşteri
// bakiyesini tek transaction'da yazar. Fatura yazılmadan satış tamamlanmış sayılmaz.
func (s *Service) PostSale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	total := req.Total.Round(2)
	now := s.now()

	details := "{}"
	if len(req.Details) > 0 {
		b, err := json.Marshal(req.Details)
		if err != nil {
			return nil, fmt.Errorf("ödeme detayları okunamadı: %w", apperr.ErrInvalidInput)
		}
		details = string(b)
	}

	tendered := total
	if req.Method == models.PaymentMethodCash {
		if raw, ok := req.Details["tendered"]; ok && raw != "" {
			v, err := decimal.NewFromString(raw)
			if err != nil || v.LessThan(total) {
				return nil, fmt.Errorf("alınan nakit toplamdan az olamaz: %w", apperr.ErrInvalidAmount)
			}
			tendered = v.Round(2)
		}
	}

	ids := productIDs(req.Items)

	var result *SaleResult
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		result = &SaleResult{}

		var client *models.Client
		if req.ClientID != nil && *req.ClientID > 0 {
			var c models.Client
			q := tx
			if req.Method == models.PaymentMethodCredit {
				q = database.LockForUpdate(tx)
			}
			if err := q.First(&c, "id = ?", *req.ClientID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("müşteri", *req.ClientID)
				}
				return apperr.Persistence("müşteri okunamadı", err)
			}
			client = &c
		}

		inv := models.Invoice{
			ClientID:         req.ClientID,
			Method:           req.Method,
			Total:            total,
			RemainingBalance: decimal.Zero,
			AmountTendered:   tendered,
			Date:             now,
			Details:          details,
			RecordedBy:       req.RecordedBy,
		}
		if req.Method == models.PaymentMethodCredit {
			inv.RemainingBalance = total
			inv.AmountTendered = decimal.Zero
		}
		if err := tx.Create(&inv).Error; err != nil {
			return apperr.Persistence("fatura oluşturulamadı", err)
		}

		// ürünler id sırasıyla kilitlenir; sepet sırası farklı iki satış deadlock olmaz
		var locked []models.Product
		if err := database.LockForUpdate(tx).Where("id IN ?", ids).Order("id asc").Find(&locked).Error; err != nil {
			return apperr.Persistence("ürünler okunamadı", err)
		}
		products := make(map[uint]*models.Product, len(locked))
		for i := range locked {
			products[locked[i].ID] = &locked[i]
		}

		linesTotal := decimal.Zero
		for _, line := range req.Items {
			pp, ok := products[line.ProductID]
			if !ok {
				return apperr.NotFound("ürün", line.ProductID)
			}
			p := *pp

			price := p.Price
			if line.UnitPrice != nil {
				price = *line.UnitPrice
			}
			pack := p.PackQuantity
			if pack <= 0 {
				pack = 1
			}

			item := models.InvoiceItem{
				InvoiceID:    inv.ID,
				ProductID:    p.ID,
				Name:         p.Name,
				UnitPrice:    price,
				Quantity:     line.Quantity,
				PackQuantity: pack,
				LineSubtotal: price.Mul(line.Quantity).Round(2),
			}
			if err := tx.Create(&item).Error; err != nil {
				return apperr.Persistence("fatura satırı yazılamadı", err)
			}
			inv.Items = append(inv.Items, item)
			linesTotal = linesTotal.Add(item.LineSubtotal)

			units := line.Quantity.Mul(decimal.NewFromInt(int64(pack)))
			shortfall, err := deductStock(tx, p, units)
			if err != nil {
				return err
			}
			pp.Stock = decimal.Max(decimal.Zero, p.Stock.Sub(units))
			if shortfall != nil {
				result.Shortfalls = append(result.Shortfalls, *shortfall)
			}
		}

		if linesTotal.Sub(total).Abs().GreaterThan(epsilon) {
			log.Printf("[WARN] fatura #%d: satır toplamı %s, gönderilen toplam %s", inv.ID, linesTotal.StringFixed(2), total.StringFixed(2))
		}

		switch req.Method {
		case models.PaymentMethodCredit:
			newBalance := client.CurrentBalance.Add(total)
			if err := tx.Model(&models.Client{}).
				Where("id = ?", client.ID).
				Update("current_balance", newBalance).Error; err != nil {
				return apperr.Persistence("müşteri bakiyesi güncellenemedi", err)
			}
			if client.CreditLimit.IsPositive() && newBalance.GreaterThan(client.CreditLimit) {
				result.CreditLimitExceeded = true
				log.Printf("[WARN] müşteri #%d kredi limitini aştı: bakiye=%s limit=%s", client.ID, newBalance.StringFixed(2), client.CreditLimit.StringFixed(2))
			}
			client.CurrentBalance = newBalance
			inv.Client = client

		case models.PaymentMethodCash:
			mov := models.CashMovement{
				Date:       now,
				Type:       models.CashIn,
				Amount:     total,
				Reason:     fmt.Sprintf("Nakit satış #%d", inv.ID),
				SourceType: "invoice",
				SourceID:   inv.ID,
				RecordedBy: req.RecordedBy,
			}
			if err := cashflow.Record(tx, &mov); err != nil {
				return apperr.Persistence("kasa hareketi yazılamadı", err)
			}
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      req.RecordedBy,
			EntityType:  "invoice",
			EntityID:    inv.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("%s satış, %d kalem, toplam %s", req.Method, len(inv.Items), total.StringFixed(2)),
			After:       map[string]any{"total": total, "method": req.Method, "client_id": req.ClientID},
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}

		result.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, sf := range result.Shortfalls {
		log.Printf("[WARN] stok yetersiz: ürün #%d %s istenen=%s mevcut=%s", sf.ProductID, sf.Name, sf.Requested.String(), sf.Available.String())
	}
	return result, nil
}

func productIDs(lines []CartLine) []uint {
	seen := make(map[uint]bool, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// deductStock stoğu tek koşullu UPDATE ile düşer, sıfırın altına inmez.
func deductStock(tx *gorm.DB, p models.Product, qty decimal.Decimal) (*StockShortfall, error) {
	if err := tx.Model(&models.Product{}).
		Where("id = ?", p.ID).
		Update("stock", gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", qty, qty)).Error; err != nil {
		return nil, apperr.Persistence("stok güncellenemedi", err)
	}

	if p.Stock.LessThan(qty) {
		return &StockShortfall{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: qty,
			Available: p.Stock,
		}, nil
	}
	return nil, nil
}
