package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/audit"
	"ledger-backend/internal/cashflow"
	"ledger-backend/internal/database"
	"ledger-backend/internal/keylock"
	"ledger-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const partialPaymentNote = "kısmi ödeme"

type Service struct {
	db    *gorm.DB
	locks *keylock.Map
	now   func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		locks: keylock.New(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type PaymentRequest struct {
	ClientID   uint
	Amount     decimal.Decimal
	Note       string
	RecordedBy uint
}

// PaymentResult fiş basımı için gereken her şeyi taşır
type PaymentResult struct {
	PaymentID       uint            `json:"payment_id"`
	ClientID        uint            `json:"client_id"`
	ClientName      string          `json:"client_name"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Unallocated     decimal.Decimal `json:"unallocated"`
	Breakdown       []Allocation    `json:"breakdown"`
	Date            time.Time       `json:"date"`
}

// RegisterPayment tahsilatı müşterinin açık faturalarına FIFO sırasıyla dağıtır.
// Faturalar, müşteri bakiyesi, kasa hareketi ve tahsilat kaydı tek transaction'da yazılır.
func (s *Service) RegisterPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.ErrInvalidAmount
	}

	// aynı müşteriye eşzamanlı tahsilatlar sıraya girer
	unlock := s.locks.Lock(req.ClientID)
	defer unlock()

	now := s.now()
	var result *PaymentResult

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var client models.Client
		if err := database.LockForUpdate(tx).First(&client, "id = ?", req.ClientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("müşteri", req.ClientID)
			}
			return apperr.Persistence("müşteri okunamadı", err)
		}

		var invoices []models.Invoice
		if err := database.LockForUpdate(tx).
			Where("client_id = ? AND remaining_balance > 0", client.ID).
			Order("date asc, id asc").
			Find(&invoices).Error; err != nil {
			return apperr.Persistence("açık faturalar okunamadı", err)
		}

		open := make([]OpenInvoice, 0, len(invoices))
		byID := make(map[uint]*models.Invoice, len(invoices))
		for i := range invoices {
			inv := &invoices[i]
			open = append(open, OpenInvoice{ID: inv.ID, Date: inv.Date, Remaining: inv.RemainingBalance})
			byID[inv.ID] = inv
		}

		allocations, rest := Allocate(open, amount)

		prevBalance := client.CurrentBalance
		newBalance := decimal.Max(decimal.Zero, prevBalance.Sub(amount))

		payment := models.Payment{
			ClientID:        client.ID,
			Amount:          amount,
			Note:            strings.TrimSpace(req.Note),
			RecordedBy:      req.RecordedBy,
			PreviousBalance: prevBalance,
			NewBalance:      newBalance,
			Unallocated:     rest,
		}
		for _, a := range allocations {
			payment.Allocations = append(payment.Allocations, models.PaymentAllocation{
				InvoiceID:     a.InvoiceID,
				Amount:        a.Amount,
				BalanceBefore: a.BalanceBefore,
				BalanceAfter:  a.BalanceAfter,
			})
		}
		if err := tx.Create(&payment).Error; err != nil {
			return apperr.Persistence("tahsilat kaydedilemedi", err)
		}

		for _, a := range allocations {
			inv := byID[a.InvoiceID]
			if err := tx.Model(&models.Invoice{}).
				Where("id = ?", inv.ID).
				Updates(map[string]any{
					"remaining_balance": a.BalanceAfter,
					"amount_tendered":   inv.AmountTendered.Add(a.Amount),
				}).Error; err != nil {
				return apperr.Persistence("fatura güncellenemedi", err)
			}

			paymentID := payment.ID
			entry := models.InvoicePayment{
				InvoiceID: inv.ID,
				PaymentID: &paymentID,
				Date:      now,
				Amount:    a.Amount,
				Note:      partialPaymentNote,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return apperr.Persistence("fatura ödeme geçmişi yazılamadı", err)
			}
		}

		if err := tx.Model(&models.Client{}).
			Where("id = ?", client.ID).
			Update("current_balance", newBalance).Error; err != nil {
			return apperr.Persistence("müşteri bakiyesi güncellenemedi", err)
		}

		mov := models.CashMovement{
			Date:       now,
			Type:       models.CashIn,
			Amount:     amount,
			Reason:     fmt.Sprintf("Tahsilat: %s", client.Name),
			SourceType: "payment",
			SourceID:   payment.ID,
			RecordedBy: req.RecordedBy,
		}
		if err := cashflow.Record(tx, &mov); err != nil {
			return apperr.Persistence("kasa hareketi yazılamadı", err)
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      req.RecordedBy,
			EntityType:  "client",
			EntityID:    client.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("%s tahsilat, %d faturaya dağıtıldı", amount.StringFixed(2), len(allocations)),
			Before:      map[string]any{"current_balance": prevBalance},
			After:       map[string]any{"current_balance": newBalance, "payment_id": payment.ID},
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}

		result = &PaymentResult{
			PaymentID:       payment.ID,
			ClientID:        client.ID,
			ClientName:      client.Name,
			PreviousBalance: prevBalance,
			NewBalance:      newBalance,
			AmountPaid:      amount,
			Unallocated:     rest,
			Breakdown:       allocations,
			Date:            now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Unallocated.IsPositive() {
		log.Printf("[WARN] müşteri #%d: %s tutar hiçbir faturaya dağıtılamadı", result.ClientID, result.Unallocated.StringFixed(2))
	}
	return result, nil
}

type NewClient struct {
	Name        string
	Phone       string
	CreditLimit decimal.Decimal
	CreatedBy   uint
}

func (s *Service) CreateClient(ctx context.Context, in NewClient) (*models.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("müşteri adı zorunlu: %w", apperr.ErrInvalidInput)
	}
	if in.CreditLimit.IsNegative() {
		return nil, fmt.Errorf("kredi limiti negatif olamaz: %w", apperr.ErrInvalidInput)
	}

	client := models.Client{
		Name:           name,
		Phone:          strings.TrimSpace(in.Phone),
		CreditLimit:    in.CreditLimit.Round(2),
		CurrentBalance: decimal.Zero,
	}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&client).Error; err != nil {
			return apperr.Persistence("müşteri oluşturulamadı", err)
		}
		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      in.CreatedBy,
			EntityType:  "client",
			EntityID:    client.ID,
			Action:      models.AuditActionCreate,
			Description: "Müşteri oluşturuldu: " + client.Name,
			After:       client,
		}); err != nil {
			return apperr.Persistence("audit log yazılamadı", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

type Statement struct {
	Client       models.Client    `json:"client"`
	OpenInvoices []models.Invoice `json:"open_invoices"`
	OpenDebt     decimal.Decimal  `json:"open_debt"`
}

// Statement müşterinin açık faturalarını FIFO sırasıyla döner
func (s *Service) Statement(ctx context.Context, clientID uint) (*Statement, error) {
	db := s.db.WithContext(ctx)

	var client models.Client
	if err := db.First(&client, "id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("müşteri", clientID)
		}
		return nil, apperr.Persistence("müşteri okunamadı", err)
	}

	var invoices []models.Invoice
	if err := db.Preload("History", func(q *gorm.DB) *gorm.DB {
		return q.Order("date asc, id asc")
	}).
		Where("client_id = ? AND remaining_balance > 0", clientID).
		Order("date asc, id asc").
		Find(&invoices).Error; err != nil {
		return nil, apperr.Persistence("açık faturalar okunamadı", err)
	}

	debt := decimal.Zero
	for _, inv := range invoices {
		debt = debt.Add(inv.RemainingBalance)
	}

	return &Statement{Client: client, OpenInvoices: invoices, OpenDebt: debt}, nil
}

type Reconciliation struct {
	ClientID       uint            `json:"client_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	OpenDebt       decimal.Decimal `json:"open_debt"`
	Drift          decimal.Decimal `json:"drift"`
	Consistent     bool            `json:"consistent"`
}

// Reconcile müşteri bakiyesini açık faturaların toplamıyla karşılaştırır.
// Fark düzeltilmez, sadece raporlanır.
func (s *Service) Reconcile(ctx context.Context, clientID uint) (*Reconciliation, error) {
	st, err := s.Statement(ctx, clientID)
	if err != nil {
		return nil, err
	}

	drift := st.Client.CurrentBalance.Sub(st.OpenDebt)
	rec := &Reconciliation{
		ClientID:       clientID,
		CurrentBalance: st.Client.CurrentBalance,
		OpenDebt:       st.OpenDebt,
		Drift:          drift,
		Consistent:     drift.Abs().LessThanOrEqual(epsilon),
	}
	if !rec.Consistent {
		log.Printf("[WARN] müşteri #%d bakiye tutarsız: bakiye=%s açık borç=%s", clientID, rec.CurrentBalance.StringFixed(2), rec.OpenDebt.StringFixed(2))
	}
	return rec, nil
}
