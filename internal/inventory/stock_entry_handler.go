package inventory

import (
	"errors"
	"fmt"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/audit"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StockEntryMode string

const (
	StockReceive StockEntryMode = "receive" // mal kabul: stoğa ekle
	StockCount   StockEntryMode = "count"   // sayım: stoğu sayılan miktara eşitle
)

type CreateStockEntryRequest struct {
	Mode     StockEntryMode  `json:"mode"`
	Quantity decimal.Decimal `json:"quantity"`
	Note     string          `json:"note"`
}

type StockEntryResponse struct {
	ProductID     uint            `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Mode          StockEntryMode  `json:"mode"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	Stock         decimal.Decimal `json:"stock"`
}

// POST /api/products/:id/stock (sadece supervisor)
func CreateStockEntryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		productID, err := c.ParamsInt("id")
		if err != nil || productID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ürün id")
		}

		var body CreateStockEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Mode == "" {
			body.Mode = StockReceive
		}

		switch body.Mode {
		case StockReceive:
			if !body.Quantity.IsPositive() {
				return fiber.NewError(fiber.StatusBadRequest, "Kabul miktarı 0'dan büyük olmalı")
			}
		case StockCount:
			if body.Quantity.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "Sayım miktarı negatif olamaz")
			}
		default:
			return fiber.NewError(fiber.StatusBadRequest, "mode 'receive' veya 'count' olmalı")
		}

		var resp StockEntryResponse
		err = database.WithTransaction(c.UserContext(), db, func(tx *gorm.DB) error {
			var p models.Product
			if err := database.LockForUpdate(tx).First(&p, "id = ?", productID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("ürün", uint(productID))
				}
				return apperr.Persistence("ürün okunamadı", err)
			}

			newStock := body.Quantity
			if body.Mode == StockReceive {
				newStock = p.Stock.Add(body.Quantity)
			}

			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", newStock).Error; err != nil {
				return apperr.Persistence("stok güncellenemedi", err)
			}

			desc := fmt.Sprintf("Stok %s: %s -> %s", body.Mode, p.Stock.String(), newStock.String())
			if body.Note != "" {
				desc += " (" + body.Note + ")"
			}
			if err := audit.WriteLog(tx, audit.LogOptions{
				UserID:      auth.UserID(c),
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionUpdate,
				Description: desc,
				Before:      map[string]any{"stock": p.Stock},
				After:       map[string]any{"stock": newStock},
			}); err != nil {
				return apperr.Persistence("audit log yazılamadı", err)
			}

			resp = StockEntryResponse{
				ProductID:     p.ID,
				ProductName:   p.Name,
				Mode:          body.Mode,
				PreviousStock: p.Stock,
				Stock:         newStock,
			}
			return nil
		})
		if err != nil {
			return apperr.ToFiber(err)
		}

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}
