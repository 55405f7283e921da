package cashflow

import (
	"strings"
	"time"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateCashMovementRequest struct {
	Date   *string                 `json:"date"` // "2025-12-09" formatında, boşsa bugün
	Type   models.CashMovementType `json:"type"` // "IN" | "OUT"
	Amount decimal.Decimal         `json:"amount"`
	Reason string                  `json:"reason"`
}

type CashMovementResponse struct {
	ID         uint                    `json:"id"`
	Date       string                  `json:"date"`
	Type       models.CashMovementType `json:"type"`
	Amount     decimal.Decimal         `json:"amount"`
	Reason     string                  `json:"reason"`
	SourceType string                  `json:"source_type"`
	SourceID   uint                    `json:"source_id"`
	CreatedAt  string                  `json:"created_at"`
}

type DailySummaryResponse struct {
	Date     string          `json:"date"`
	TotalIn  decimal.Decimal `json:"total_in"`
	TotalOut decimal.Decimal `json:"total_out"`
	Net      decimal.Decimal `json:"net"`
	Count    int             `json:"count"`
}

func toResponse(m *models.CashMovement) CashMovementResponse {
	return CashMovementResponse{
		ID:         m.ID,
		Date:       m.Date.Format("2006-01-02"),
		Type:       m.Type,
		Amount:     m.Amount,
		Reason:     m.Reason,
		SourceType: m.SourceType,
		SourceID:   m.SourceID,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

// -------------------------------------------------
// POST /api/cash-movements
// Elle kasa hareketi: gider ödemesi, kasadan para çekme, kasaya bozuk para koyma
// -------------------------------------------------
func CreateCashMovementHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCashMovementRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if !body.Amount.Round(2).IsPositive() {
			return fiber.NewError(fiber.StatusBadRequest, "Tutar 0'dan büyük olmalı")
		}

		switch body.Type {
		case models.CashIn, models.CashOut:
			// ok
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz type (IN|OUT)")
		}

		body.Reason = strings.TrimSpace(body.Reason)
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Açıklama zorunlu")
		}

		// tarih
		var date time.Time
		if body.Date != nil && *body.Date != "" {
			d, err := time.Parse("2006-01-02", *body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı geçersiz, 'YYYY-MM-DD' olmalı")
			}
			date = d
		}

		userID := auth.UserID(c)
		mov := models.CashMovement{
			Date:       date,
			Type:       body.Type,
			Amount:     body.Amount.Round(2),
			Reason:     body.Reason,
			SourceType: "manual",
			RecordedBy: userID,
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := Record(tx, &mov); err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				UserID:      userID,
				EntityType:  "cash_movement",
				EntityID:    mov.ID,
				Action:      models.AuditActionCreate,
				Description: string(mov.Type) + " " + mov.Amount.StringFixed(2) + ": " + mov.Reason,
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kayıt oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(&mov))
	}
}

// -------------------------------------------------
// GET /api/cash-movements?from=2025-12-01&to=2025-12-31&type=IN
// -------------------------------------------------
func ListCashMovementsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f ListFilter

		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi geçersiz")
			}
			f.From = &from
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi geçersiz")
			}
			// to günü dahil
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
			f.To = &to
		}

		switch t := models.CashMovementType(c.Query("type")); t {
		case "", models.CashIn, models.CashOut:
			f.Type = t
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz type (IN|OUT)")
		}

		movs, err := List(db, f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kayıtlar listelenemedi")
		}

		resp := make([]CashMovementResponse, 0, len(movs))
		for i := range movs {
			resp = append(resp, toResponse(&movs[i]))
		}

		return c.JSON(resp)
	}
}

// -------------------------------------------------
// GET /api/cash-movements/summary?date=2025-12-09 (boşsa bugün)
// -------------------------------------------------
func DailySummaryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		day := time.Now().UTC()
		if dateStr := c.Query("date"); dateStr != "" {
			d, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı geçersiz, 'YYYY-MM-DD' olmalı")
			}
			day = d
		}

		sum, err := Summarize(db, day)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Özet hesaplanamadı")
		}

		return c.JSON(DailySummaryResponse{
			Date:     sum.Date.Format("2006-01-02"),
			TotalIn:  sum.TotalIn,
			TotalOut: sum.TotalOut,
			Net:      sum.Net,
			Count:    sum.Count,
		})
	}
}
