package ledger

import (
	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateClientRequest struct {
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type ClientResponse struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreatedAt      string          `json:"created_at"`
}

type RegisterPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type InvoiceSummary struct {
	ID               uint            `json:"id"`
	Date             string          `json:"date"`
	Total            decimal.Decimal `json:"total"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	AmountTendered   decimal.Decimal `json:"amount_tendered"`
	Payments         int             `json:"payments"`
}

type StatementResponse struct {
	Client       ClientResponse   `json:"client"`
	OpenInvoices []InvoiceSummary `json:"open_invoices"`
	OpenDebt     decimal.Decimal  `json:"open_debt"`
}

func clientIDParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz müşteri id")
	}
	return uint(id), nil
}

// POST /api/clients
func CreateClientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateClientRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		client, err := svc.CreateClient(c.UserContext(), NewClient{
			Name:        body.Name,
			Phone:       body.Phone,
			CreditLimit: body.CreditLimit,
			CreatedBy:   auth.UserID(c),
		})
		if err != nil {
			return apperr.ToFiber(err)
		}

		return c.Status(fiber.StatusCreated).JSON(ClientResponse{
			ID:             client.ID,
			Name:           client.Name,
			Phone:          client.Phone,
			CreditLimit:    client.CreditLimit,
			CurrentBalance: client.CurrentBalance,
			CreatedAt:      client.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// POST /api/clients/:id/payments
func RegisterPaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := clientIDParam(c)
		if err != nil {
			return err
		}

		var body RegisterPaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		res, err := svc.RegisterPayment(c.UserContext(), PaymentRequest{
			ClientID:   clientID,
			Amount:     body.Amount,
			Note:       body.Note,
			RecordedBy: auth.UserID(c),
		})
		if err != nil {
			return apperr.ToFiber(err)
		}

		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/clients/:id/statement
func StatementHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := clientIDParam(c)
		if err != nil {
			return err
		}

		st, err := svc.Statement(c.UserContext(), clientID)
		if err != nil {
			return apperr.ToFiber(err)
		}

		resp := StatementResponse{
			Client: ClientResponse{
				ID:             st.Client.ID,
				Name:           st.Client.Name,
				Phone:          st.Client.Phone,
				CreditLimit:    st.Client.CreditLimit,
				CurrentBalance: st.Client.CurrentBalance,
				CreatedAt:      st.Client.CreatedAt.Format("2006-01-02 15:04:05"),
			},
			OpenInvoices: make([]InvoiceSummary, 0, len(st.OpenInvoices)),
			OpenDebt:     st.OpenDebt,
		}
		for _, inv := range st.OpenInvoices {
			resp.OpenInvoices = append(resp.OpenInvoices, InvoiceSummary{
				ID:               inv.ID,
				Date:             inv.Date.Format("2006-01-02 15:04"),
				Total:            inv.Total,
				RemainingBalance: inv.RemainingBalance,
				AmountTendered:   inv.AmountTendered,
				Payments:         len(inv.History),
			})
		}

		return c.JSON(resp)
	}
}

// GET /api/clients/:id/reconcile
func ReconcileHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := clientIDParam(c)
		if err != nil {
			return err
		}

		rec, err := svc.Reconcile(c.UserContext(), clientID)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(rec)
	}
}
