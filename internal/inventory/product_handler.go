package inventory

import (
	"errors"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductResponse struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	Stock        decimal.Decimal `json:"stock"`
	PackQuantity int             `json:"pack_quantity"`
	IsWeighable  bool            `json:"is_weighable"`
}

type CreateProductRequest struct {
	Name         string          `json:"name"`
	SKU          string          `json:"sku"` // Opsiyonel
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	Stock        decimal.Decimal `json:"stock"`
	PackQuantity int             `json:"pack_quantity"` // 0 ise 1
	IsWeighable  bool            `json:"is_weighable"`
}

type UpdateProductRequest struct {
	Name         *string          `json:"name"`
	Unit         *string          `json:"unit"`
	Price        *decimal.Decimal `json:"price"`
	PackQuantity *int             `json:"pack_quantity"`
	IsWeighable  *bool            `json:"is_weighable"`
}

func toProductResponse(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		SKU:          p.SKU,
		Unit:         p.Unit,
		Price:        p.Price,
		Stock:        p.Stock,
		PackQuantity: p.PackQuantity,
		IsWeighable:  p.IsWeighable,
	}
}

// GET /api/products?q=süt (tüm authenticated kullanıcılar görebilir)
func ListProductsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.Model(&models.Product{})

		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		res := make([]ProductResponse, 0, len(products))
		for i := range products {
			res = append(res, toProductResponse(&products[i]))
		}
		return c.JSON(res)
	}
}

// POST /api/products (sadece supervisor)
func CreateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Unit = strings.TrimSpace(body.Unit)
		body.SKU = strings.TrimSpace(body.SKU)

		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name zorunlu")
		}
		if body.Unit == "" {
			body.Unit = "adet"
		}
		if body.Price.IsNegative() || body.Stock.IsNegative() || body.PackQuantity < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Fiyat, stok ve paket miktarı negatif olamaz")
		}
		if body.PackQuantity == 0 {
			body.PackQuantity = 1
		}

		// SKU unique kontrolü (boş değilse)
		if body.SKU != "" {
			var existing models.Product
			err := db.Where("sku = ?", body.SKU).First(&existing).Error
			if err == nil {
				return fiber.NewError(fiber.StatusBadRequest, "Bu SKU zaten kullanılıyor")
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusInternalServerError, "Ürünler okunamadı")
			}
		}

		p := models.Product{
			Name:         body.Name,
			SKU:          body.SKU,
			Unit:         body.Unit,
			Price:        body.Price.Round(2),
			Stock:        body.Stock,
			PackQuantity: body.PackQuantity,
			IsWeighable:  body.IsWeighable,
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				UserID:      auth.UserID(c),
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: "Ürün oluşturuldu: " + p.Name,
				After:       toProductResponse(&p),
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(&p))
	}
}

// PUT /api/products/:id (sadece supervisor). Stok buradan değişmez, /stock kullanılır.
func UpdateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var p models.Product
		if err := db.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}
		before := toProductResponse(&p)

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name boş olamaz")
			}
			p.Name = name
		}

		if body.Unit != nil {
			unit := strings.TrimSpace(*body.Unit)
			if unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Unit boş olamaz")
			}
			p.Unit = unit
		}

		if body.Price != nil {
			if body.Price.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "Fiyat negatif olamaz")
			}
			p.Price = body.Price.Round(2)
		}

		if body.PackQuantity != nil {
			if *body.PackQuantity <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Paket miktarı 0'dan büyük olmalı")
			}
			p.PackQuantity = *body.PackQuantity
		}

		if body.IsWeighable != nil {
			p.IsWeighable = *body.IsWeighable
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			// stock kolonuna dokunma, eşzamanlı satışların düşümünü ezmesin
			if err := tx.Model(&p).Select("name", "unit", "price", "pack_quantity", "is_weighable").Updates(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				UserID:      auth.UserID(c),
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionUpdate,
				Description: "Ürün güncellendi: " + p.Name,
				Before:      before,
				After:       toProductResponse(&p),
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün güncellenemedi")
		}

		return c.JSON(toProductResponse(&p))
	}
}
