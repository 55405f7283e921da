package main

import (
	"log"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/cashflow"
	"ledger-backend/internal/config"
	"ledger-backend/internal/database"
	"ledger-backend/internal/fulfillment"
	"ledger-backend/internal/inventory"
	"ledger-backend/internal/ledger"
	"ledger-backend/internal/models"
	"ledger-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)
	db := database.DB

	ledgerSvc := ledger.NewService(db)
	salesSvc := sales.NewService(db)
	gate := fulfillment.NewGate(auth.NewPINAuthorizer(db, cfg.SupervisorPINHashes), fulfillment.GateConfig{
		PendingTTL:  cfg.AuthPendingTTL,
		MaxAttempts: cfg.AuthMaxAttempts,
	})
	orderSvc := fulfillment.NewService(db, gate)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/bootstrap", auth.BootstrapHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg.JWTSecret))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler(db))

	supervisor := auth.RequireRole(models.RoleSupervisor)

	// Operatörler
	protected.Post("/auth/users", supervisor, auth.CreateUserHandler(db))

	// Ürünler
	protected.Get("/products", inventory.ListProductsHandler(db))
	protected.Post("/products", supervisor, inventory.CreateProductHandler(db))
	protected.Put("/products/:id", supervisor, inventory.UpdateProductHandler(db))
	protected.Post("/products/:id/stock", supervisor, inventory.CreateStockEntryHandler(db))

	// Müşteri cari hesabı & tahsilat
	protected.Post("/clients", ledger.CreateClientHandler(ledgerSvc))
	protected.Get("/clients/:id/statement", ledger.StatementHandler(ledgerSvc))
	protected.Get("/clients/:id/reconcile", supervisor, ledger.ReconcileHandler(ledgerSvc))
	protected.Post("/clients/:id/payments", ledger.RegisterPaymentHandler(ledgerSvc))

	// Satış (kasa)
	protected.Post("/sales", sales.PostSaleHandler(salesSvc))

	// Siparişler (Kanban)
	orders := protected.Group("/orders")
	orders.Post("/", fulfillment.CreateOrderHandler(orderSvc))
	orders.Get("/board", fulfillment.BoardHandler(orderSvc))
	orders.Get("/:id", fulfillment.GetOrderHandler(orderSvc))
	orders.Delete("/:id", supervisor, fulfillment.DeleteOrderHandler(orderSvc))
	orders.Post("/:id/transition", fulfillment.TransitionHandler(orderSvc))
	orders.Post("/:id/authorization", fulfillment.AuthorizationLimiter(cfg.AuthRateLimit), fulfillment.SubmitAuthorizationHandler(orderSvc))
	orders.Delete("/:id/authorization", fulfillment.CancelAuthorizationHandler(orderSvc))
	orders.Get("/:id/checklist", fulfillment.ChecklistHandler(orderSvc))
	orders.Post("/:id/checklist/:itemId/toggle", fulfillment.ToggleChecklistItemHandler(orderSvc))
	orders.Post("/:id/checklist/finish", fulfillment.FinishPickingHandler(orderSvc))

	// Para giriş/çıkış
	protected.Get("/cash-movements", cashflow.ListCashMovementsHandler(db))
	protected.Post("/cash-movements", supervisor, cashflow.CreateCashMovementHandler(db))
	protected.Get("/cash-movements/summary", cashflow.DailySummaryHandler(db))

	// Audit logs
	protected.Get("/audit-logs", supervisor, audit.ListAuditLogsHandler(db))

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
