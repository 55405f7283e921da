package fulfillment

import (
	"errors"
	"time"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/shopspring/decimal"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateOrderRequest struct {
	ClientID       *uint           `json:"client_id"`
	CustomerName   string          `json:"customer_name"`
	Priority       int             `json:"priority"`
	AdvancePayment decimal.Decimal `json:"advance_payment"`
	Balance        decimal.Decimal `json:"balance"`
	DeliveryDate   string          `json:"delivery_date"` // "2025-12-09"
	Items          []NewOrderItem  `json:"items"`
}

type OrderItemResponse struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type OrderResponse struct {
	ID               uint                `json:"id"`
	Folio            string              `json:"folio"`
	ClientID         *uint               `json:"client_id"`
	CustomerName     string              `json:"customer_name"`
	Status           models.OrderStatus  `json:"status"`
	PickingCompleted bool                `json:"picking_completed"`
	Priority         int                 `json:"priority"`
	AdvancePayment   decimal.Decimal     `json:"advance_payment"`
	Balance          decimal.Decimal     `json:"balance"`
	DeliveryDate     *string             `json:"delivery_date"`
	CreatedAt        string              `json:"created_at"`
	Items            []OrderItemResponse `json:"items"`
}

type BoardColumnResponse struct {
	Status models.OrderStatus `json:"status"`
	Orders []OrderResponse    `json:"orders"`
}

type TransitionRequest struct {
	ToStatus models.OrderStatus `json:"to_status"`
}

type TransitionResponse struct {
	TransitionResult
	Reason string `json:"reason,omitempty"`
}

type AuthorizationRequest struct {
	Secret string `json:"secret"`
}

func toOrderResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:               o.ID,
		Folio:            o.Folio,
		ClientID:         o.ClientID,
		CustomerName:     o.CustomerName,
		Status:           o.Status,
		PickingCompleted: o.PickingCompleted,
		Priority:         o.Priority,
		AdvancePayment:   o.AdvancePayment,
		Balance:          o.Balance,
		CreatedAt:        o.CreatedAt.Format("2006-01-02 15:04:05"),
		Items:            make([]OrderItemResponse, 0, len(o.Items)),
	}
	if o.DeliveryDate != nil {
		s := o.DeliveryDate.Format("2006-01-02")
		resp.DeliveryDate = &s
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
		})
	}
	return resp
}

func orderIDParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz sipariş id")
	}
	return uint(id), nil
}

// AuthorizationLimiter PIN denemelerini IP başına dakikada max ile sınırlar
func AuthorizationLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Çok fazla PIN denemesi, bir dakika sonra tekrar deneyin")
		},
	})
}

// POST /api/orders
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		var delivery *time.Time
		if body.DeliveryDate != "" {
			t, err := time.Parse("2006-01-02", body.DeliveryDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "delivery_date formatı YYYY-MM-DD olmalı")
			}
			delivery = &t
		}

		order, err := svc.CreateOrder(c.UserContext(), NewOrder{
			ClientID:       body.ClientID,
			CustomerName:   body.CustomerName,
			Priority:       body.Priority,
			AdvancePayment: body.AdvancePayment,
			Balance:        body.Balance,
			DeliveryDate:   delivery,
			Items:          body.Items,
			CreatedBy:      auth.UserID(c),
		})
		if err != nil {
			return apperr.ToFiber(err)
		}

		return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
	}
}

// GET /api/orders/board
func BoardHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cols, err := svc.ListBoard(c.UserContext())
		if err != nil {
			return apperr.ToFiber(err)
		}

		resp := make([]BoardColumnResponse, 0, len(cols))
		for _, col := range cols {
			out := BoardColumnResponse{Status: col.Status, Orders: make([]OrderResponse, 0, len(col.Orders))}
			for i := range col.Orders {
				out.Orders = append(out.Orders, toOrderResponse(&col.Orders[i]))
			}
			resp = append(resp, out)
		}
		return c.JSON(resp)
	}
}

// GET /api/orders/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}
		order, err := svc.GetOrder(c.UserContext(), id)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(toOrderResponse(order))
	}
}

// DELETE /api/orders/:id
func DeleteOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteOrder(c.UserContext(), id, auth.UserID(c)); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/orders/:id/transition
func TransitionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}

		var body TransitionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		res, err := svc.RequestTransition(c.UserContext(), id, body.ToStatus, auth.UserID(c))
		if errors.Is(err, apperr.ErrPickingIncomplete) {
			// durum değişmedi, arayüz toplama listesini açmalı
			return c.Status(fiber.StatusConflict).JSON(TransitionResponse{
				TransitionResult: TransitionResult{
					OrderID:       id,
					Outcome:       OutcomeRejected,
					ToStatus:      body.ToStatus,
					OpenChecklist: true,
				},
				Reason: err.Error(),
			})
		}
		if err != nil {
			return apperr.ToFiber(err)
		}

		status := fiber.StatusOK
		if res.Outcome == OutcomePendingAuthorization {
			status = fiber.StatusAccepted
		}
		return c.Status(status).JSON(TransitionResponse{TransitionResult: *res})
	}
}

// POST /api/orders/:id/authorization
func SubmitAuthorizationHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}

		var body AuthorizationRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		res, err := svc.SubmitAuthorization(c.UserContext(), id, body.Secret, auth.UserID(c))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(res)
	}
}

// DELETE /api/orders/:id/authorization
func CancelAuthorizationHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}
		if err := svc.CancelAuthorization(c.UserContext(), id, auth.UserID(c)); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/orders/:id/checklist
func ChecklistHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}
		view, err := svc.Checklist(c.UserContext(), id)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(view)
	}
}

// POST /api/orders/:id/checklist/:itemId/toggle
func ToggleChecklistItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}
		itemID, err := c.ParamsInt("itemId")
		if err != nil || itemID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz kalem id")
		}

		checked, err := svc.ToggleChecklistItem(c.UserContext(), id, uint(itemID))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"order_item_id": itemID, "checked": checked})
	}
}

// POST /api/orders/:id/checklist/finish
func FinishPickingHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderIDParam(c)
		if err != nil {
			return err
		}
		res, err := svc.FinishPicking(c.UserContext(), id, auth.UserID(c))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(res)
	}
}
