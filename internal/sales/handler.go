package sales

import (
	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PostSaleRequest struct {
	Items    []CartLine           `json:"items"`
	Total    decimal.Decimal      `json:"total"`
	Method   models.PaymentMethod `json:"method"`
	ClientID *uint                `json:"client_id"`
	Details  map[string]string    `json:"details"`
}

type InvoiceItemResponse struct {
	ProductID    uint            `json:"product_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	PackQuantity int             `json:"pack_quantity"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

type InvoiceResponse struct {
	ID               uint                  `json:"id"`
	ClientID         *uint                 `json:"client_id"`
	Method           models.PaymentMethod  `json:"method"`
	Total            decimal.Decimal       `json:"total"`
	RemainingBalance decimal.Decimal       `json:"remaining_balance"`
	AmountTendered   decimal.Decimal       `json:"amount_tendered"`
	Change           decimal.Decimal       `json:"change"`
	Date             string                `json:"date"`
	Items            []InvoiceItemResponse `json:"items"`
}

type PostSaleResponse struct {
	Invoice             InvoiceResponse  `json:"invoice"`
	Shortfalls          []StockShortfall `json:"shortfalls"`
	CreditLimitExceeded bool             `json:"credit_limit_exceeded"`
}

// POST /api/sales
func PostSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PostSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		res, err := svc.PostSale(c.UserContext(), SaleRequest{
			Items:      body.Items,
			Total:      body.Total,
			Method:     body.Method,
			ClientID:   body.ClientID,
			Details:    body.Details,
			RecordedBy: auth.UserID(c),
		})
		if err != nil {
			return apperr.ToFiber(err)
		}

		inv := res.Invoice
		resp := PostSaleResponse{
			Invoice: InvoiceResponse{
				ID:               inv.ID,
				ClientID:         inv.ClientID,
				Method:           inv.Method,
				Total:            inv.Total,
				RemainingBalance: inv.RemainingBalance,
				AmountTendered:   inv.AmountTendered,
				Change:           decimal.Zero,
				Date:             inv.Date.Format("2006-01-02 15:04:05"),
				Items:            make([]InvoiceItemResponse, 0, len(inv.Items)),
			},
			Shortfalls:          res.Shortfalls,
			CreditLimitExceeded: res.CreditLimitExceeded,
		}
		if inv.Method == models.PaymentMethodCash {
			resp.Invoice.Change = inv.AmountTendered.Sub(inv.Total)
		}
		if resp.Shortfalls == nil {
			resp.Shortfalls = []StockShortfall{}
		}
		for _, it := range inv.Items {
			resp.Invoice.Items = append(resp.Invoice.Items, InvoiceItemResponse{
				ProductID:    it.ProductID,
				Name:         it.Name,
				UnitPrice:    it.UnitPrice,
				Quantity:     it.Quantity,
				PackQuantity: it.PackQuantity,
				LineSubtotal: it.LineSubtotal,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}
