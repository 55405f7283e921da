package sales

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/database/dbtest"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedProduct(t *testing.T, db *gorm.DB, name, price, stock string, pack int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: d(price), Stock: d(stock), PackQuantity: pack}
	if err := db.Create(&p).Error; err != nil {
		t.Fatal(err)
	}
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uint) decimal.Decimal {
	t.Helper()
	var p models.Product
	if err := db.First(&p, id).Error; err != nil {
		t.Fatal(err)
	}
	return p.Stock
}

func TestPostSaleStock(t *testing.T) {
	tests := []struct {
		name          string
		stock         string
		pack          int
		qty           string
		wantStock     string
		wantShortfall bool
	}{
		{"simple deduction", "10", 1, "3", "7", false},
		{"pack multiplier", "100", 12, "2", "76", false},
		{"floor at zero", "5", 1, "8", "0", true},
		{"pack shortfall", "20", 12, "2", "0", true},
		{"exact stock", "4", 1, "4", "0", false},
		{"weighed fraction", "2.5", 1, "0.75", "1.75", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dbtest.New(t)
			svc := NewService(db)
			p := seedProduct(t, db, "Su", "10", tt.stock, tt.pack)

			res, err := svc.PostSale(context.Background(), SaleRequest{
				Items:  []CartLine{{ProductID: p.ID, Quantity: d(tt.qty)}},
				Total:  d("10").Mul(d(tt.qty)),
				Method: models.PaymentMethodCard,
			})
			if err != nil {
				t.Fatalf("PostSale: %v", err)
			}

			if got := stockOf(t, db, p.ID); !got.Equal(d(tt.wantStock)) {
				t.Errorf("stok = %s, want %s", got, tt.wantStock)
			}
			if (len(res.Shortfalls) > 0) != tt.wantShortfall {
				t.Errorf("shortfalls = %+v, want shortfall=%v", res.Shortfalls, tt.wantShortfall)
			}
		})
	}
}

func TestPostSaleCredit(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)

	client := models.Client{Name: "Veresiye", CurrentBalance: d("40"), CreditLimit: d("100")}
	if err := db.Create(&client).Error; err != nil {
		t.Fatal(err)
	}
	p := seedProduct(t, db, "Un", "25", "50", 1)

	res, err := svc.PostSale(context.Background(), SaleRequest{
		Items:    []CartLine{{ProductID: p.ID, Quantity: d("2")}},
		Total:    d("50"),
		Method:   models.PaymentMethodCredit,
		ClientID: &client.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Invoice.RemainingBalance.Equal(d("50")) {
		t.Errorf("kalan = %s, want 50", res.Invoice.RemainingBalance)
	}
	if res.CreditLimitExceeded {
		t.Error("limit aşılmadı ama uyarı verildi")
	}

	var c models.Client
	db.First(&c, client.ID)
	if !c.CurrentBalance.Equal(d("90")) {
		t.Errorf("bakiye = %s, want 90", c.CurrentBalance)
	}

	// limit aşımı satışı engellemez
	res, err = svc.PostSale(context.Background(), SaleRequest{
		Items:    []CartLine{{ProductID: p.ID, Quantity: d("1")}},
		Total:    d("25"),
		Method:   models.PaymentMethodCredit,
		ClientID: &client.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.CreditLimitExceeded {
		t.Error("limit aşımı bildirilmedi")
	}

	var movs int64
	db.Model(&models.CashMovement{}).Count(&movs)
	if movs != 0 {
		t.Errorf("veresiye satış kasa hareketi yazdı: %d", movs)
	}
}

func TestPostSaleCash(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	p := seedProduct(t, db, "Çay", "12.50", "10", 1)

	res, err := svc.PostSale(context.Background(), SaleRequest{
		Items:   []CartLine{{ProductID: p.ID, Quantity: d("2")}},
		Total:   d("25"),
		Method:  models.PaymentMethodCash,
		Details: map[string]string{"tendered": "50"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Invoice.RemainingBalance.IsZero() || !res.Invoice.AmountTendered.Equal(d("50")) {
		t.Errorf("fatura = %+v", res.Invoice)
	}
	if len(res.Invoice.Items) != 1 || !res.Invoice.Items[0].LineSubtotal.Equal(d("25")) {
		t.Errorf("satırlar = %+v", res.Invoice.Items)
	}

	var movs []models.CashMovement
	db.Find(&movs)
	if len(movs) != 1 || movs[0].Type != models.CashIn || !movs[0].Amount.Equal(d("25")) || movs[0].SourceID != res.Invoice.ID {
		t.Errorf("kasa hareketleri = %+v", movs)
	}

	var details map[string]string
	if err := json.Unmarshal([]byte(res.Invoice.Details), &details); err != nil || details["tendered"] != "50" {
		t.Errorf("details = %q", res.Invoice.Details)
	}
}

func TestPostSaleRejects(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	p := seedProduct(t, db, "Şeker", "30", "10", 1)
	missing := uint(999)

	line := []CartLine{{ProductID: p.ID, Quantity: d("1")}}
	tests := []struct {
		name    string
		req     SaleRequest
		wantErr error
	}{
		{"zero total", SaleRequest{Items: line, Total: decimal.Zero, Method: models.PaymentMethodCash}, apperr.ErrInvalidAmount},
		{"empty cart", SaleRequest{Total: d("30"), Method: models.PaymentMethodCash}, apperr.ErrInvalidInput},
		{"credit without client", SaleRequest{Items: line, Total: d("30"), Method: models.PaymentMethodCredit}, apperr.ErrInvalidInput},
		{"unknown method", SaleRequest{Items: line, Total: d("30"), Method: "barter"}, apperr.ErrInvalidInput},
		{"zero quantity", SaleRequest{Items: []CartLine{{ProductID: p.ID}}, Total: d("30"), Method: models.PaymentMethodCash}, apperr.ErrInvalidInput},
		{"tendered below total", SaleRequest{Items: line, Total: d("30"), Method: models.PaymentMethodCash, Details: map[string]string{"tendered": "20"}}, apperr.ErrInvalidAmount},
		{"unknown client", SaleRequest{Items: line, Total: d("30"), Method: models.PaymentMethodCredit, ClientID: &missing}, apperr.ErrNotFound},
		{"unknown product", SaleRequest{Items: []CartLine{{ProductID: 555, Quantity: d("1")}}, Total: d("30"), Method: models.PaymentMethodCash}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.PostSale(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var invoices int64
	db.Model(&models.Invoice{}).Count(&invoices)
	if invoices != 0 {
		t.Errorf("reddedilen satışlar fatura bıraktı: %d", invoices)
	}
	if got := stockOf(t, db, p.ID); !got.Equal(d("10")) {
		t.Errorf("stok değişti: %s", got)
	}
}

func TestPostSaleRollsBackOnMissingProduct(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	p := seedProduct(t, db, "Pirinç", "40", "10", 1)

	_, err := svc.PostSale(context.Background(), SaleRequest{
		Items: []CartLine{
			{ProductID: p.ID, Quantity: d("3")},
			{ProductID: 4242, Quantity: d("1")},
		},
		Total:  d("160"),
		Method: models.PaymentMethodCard,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := stockOf(t, db, p.ID); !got.Equal(d("10")) {
		t.Errorf("ilk satırın stok düşümü geri alınmadı: %s", got)
	}
	var items int64
	db.Model(&models.InvoiceItem{}).Count(&items)
	if items != 0 {
		t.Errorf("yarım kalan satırlar: %d", items)
	}
}

func TestPostSaleRetriedAfterSerializationFailure(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	p := seedProduct(t, db, "Zeytin", "20", "1", 1)
	dbtest.FailCreate(t, db, "audit_logs", 1, &pgconn.PgError{Code: "40001"})

	res, err := svc.PostSale(context.Background(), SaleRequest{
		Items:  []CartLine{{ProductID: p.ID, Quantity: d("3")}},
		Total:  d("60"),
		Method: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("PostSale: %v", err)
	}
	if len(res.Shortfalls) != 1 {
		t.Errorf("shortfalls = %+v, want 1", res.Shortfalls)
	}
	if len(res.Invoice.Items) != 1 {
		t.Errorf("fatura satırı = %d, want 1", len(res.Invoice.Items))
	}
	if got := stockOf(t, db, p.ID); !got.IsZero() {
		t.Errorf("stok = %s, want 0", got)
	}

	var invoices, items int64
	db.Model(&models.Invoice{}).Count(&invoices)
	db.Model(&models.InvoiceItem{}).Count(&items)
	if invoices != 1 || items != 1 {
		t.Errorf("kayıtlı invoices=%d items=%d, want 1/1", invoices, items)
	}
}

func TestPostSaleLineOrder(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	a := seedProduct(t, db, "Çay", "30", "5", 1)
	b := seedProduct(t, db, "Şeker", "25", "10", 1)

	res, err := svc.PostSale(context.Background(), SaleRequest{
		Items: []CartLine{
			{ProductID: b.ID, Quantity: d("2")},
			{ProductID: a.ID, Quantity: d("3")},
			{ProductID: a.ID, Quantity: d("4")},
		},
		Total:  d("260"),
		Method: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("PostSale: %v", err)
	}

	if got := []uint{res.Invoice.Items[0].ProductID, res.Invoice.Items[1].ProductID, res.Invoice.Items[2].ProductID}; got[0] != b.ID || got[1] != a.ID || got[2] != a.ID {
		t.Errorf("satır sırası = %v, sepet sırası korunmalı", got)
	}
	if got := stockOf(t, db, a.ID); !got.IsZero() {
		t.Errorf("Çay stoğu = %s, want 0", got)
	}
	if got := stockOf(t, db, b.ID); !got.Equal(d("8")) {
		t.Errorf("Şeker stoğu = %s, want 8", got)
	}
	if len(res.Shortfalls) != 1 || !res.Shortfalls[0].Available.Equal(d("2")) || !res.Shortfalls[0].Requested.Equal(d("4")) {
		t.Errorf("shortfalls = %+v, want ikinci Çay satırında 2 mevcut", res.Shortfalls)
	}
}

func TestPostSaleHandler(t *testing.T) {
	db := dbtest.New(t)
	p := seedProduct(t, db, "Ekmek", "7.5", "3", 1)

	app := fiber.New()
	app.Post("/api/sales", PostSaleHandler(NewService(db)))

	body := `{"items":[{"product_id":` + jsonID(p.ID) + `,"quantity":"4"}],"total":"30","method":"cash","details":{"tendered":"40"}}`
	req := httptest.NewRequest("POST", "/api/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out PostSaleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Invoice.Change.Equal(d("10")) {
		t.Errorf("para üstü = %s, want 10", out.Invoice.Change)
	}
	if len(out.Shortfalls) != 1 || !out.Shortfalls[0].Available.Equal(d("3")) {
		t.Errorf("shortfalls = %+v", out.Shortfalls)
	}

	req = httptest.NewRequest("POST", "/api/sales", strings.NewReader(`{"items":[],"total":"0","method":"cash"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
