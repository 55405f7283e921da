package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAllocateFIFO(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	invoices := []OpenInvoice{
		// sıra bilerek karışık
		{ID: 3, Date: t1.Add(48 * time.Hour), Remaining: d("20")},
		{ID: 1, Date: t1, Remaining: d("50")},
		{ID: 2, Date: t1.Add(24 * time.Hour), Remaining: d("30")},
	}

	allocs, rest := Allocate(invoices, d("60"))

	if len(allocs) != 2 {
		t.Fatalf("2 dağıtım bekleniyordu, %d geldi: %+v", len(allocs), allocs)
	}
	want := []struct {
		id     uint
		amount string
		after  string
	}{
		{1, "50", "0"},
		{2, "10", "20"},
	}
	for i, w := range want {
		if allocs[i].InvoiceID != w.id || !allocs[i].Amount.Equal(d(w.amount)) || !allocs[i].BalanceAfter.Equal(d(w.after)) {
			t.Errorf("allocs[%d] = %+v, want invoice %d amount %s after %s", i, allocs[i], w.id, w.amount, w.after)
		}
	}
	if !rest.IsZero() {
		t.Errorf("artık = %s, want 0", rest)
	}
}

func TestAllocate(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		invoices  []OpenInvoice
		amount    string
		wantCount int
		wantTotal string
		wantRest  string
	}{
		{
			name:      "no open invoices",
			amount:    "40",
			wantTotal: "0",
			wantRest:  "40",
		},
		{
			name: "overpayment leaves remainder",
			invoices: []OpenInvoice{
				{ID: 1, Date: base, Remaining: d("10")},
				{ID: 2, Date: base.Add(time.Hour), Remaining: d("15.50")},
			},
			amount:    "30",
			wantCount: 2,
			wantTotal: "25.50",
			wantRest:  "4.50",
		},
		{
			name: "exact payment",
			invoices: []OpenInvoice{
				{ID: 1, Date: base, Remaining: d("99.99")},
			},
			amount:    "99.99",
			wantCount: 1,
			wantTotal: "99.99",
			wantRest:  "0",
		},
		{
			name: "same date ties broken by id",
			invoices: []OpenInvoice{
				{ID: 9, Date: base, Remaining: d("10")},
				{ID: 4, Date: base, Remaining: d("10")},
			},
			amount:    "10",
			wantCount: 1,
			wantTotal: "10",
			wantRest:  "0",
		},
		{
			name: "settled invoices skipped",
			invoices: []OpenInvoice{
				{ID: 1, Date: base, Remaining: decimal.Zero},
				{ID: 2, Date: base.Add(time.Hour), Remaining: d("5")},
			},
			amount:    "3",
			wantCount: 1,
			wantTotal: "3",
			wantRest:  "0",
		},
		{
			name: "sub-epsilon remainder dropped",
			invoices: []OpenInvoice{
				{ID: 1, Date: base, Remaining: d("10")},
			},
			amount:    "10.004",
			wantCount: 1,
			wantTotal: "10",
			wantRest:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocs, rest := Allocate(tt.invoices, d(tt.amount))
			if len(allocs) != tt.wantCount {
				t.Fatalf("len(allocs) = %d, want %d", len(allocs), tt.wantCount)
			}
			total := decimal.Zero
			for _, a := range allocs {
				if a.BalanceAfter.IsNegative() {
					t.Errorf("fatura %d bakiyesi negatif: %s", a.InvoiceID, a.BalanceAfter)
				}
				total = total.Add(a.Amount)
			}
			if !total.Equal(d(tt.wantTotal)) {
				t.Errorf("toplam dağıtım = %s, want %s", total, tt.wantTotal)
			}
			if !rest.Equal(d(tt.wantRest)) {
				t.Errorf("artık = %s, want %s", rest, tt.wantRest)
			}
		})
	}

	t.Run("tie order", func(t *testing.T) {
		allocs, _ := Allocate([]OpenInvoice{
			{ID: 9, Date: base, Remaining: d("10")},
			{ID: 4, Date: base, Remaining: d("10")},
		}, d("10"))
		if allocs[0].InvoiceID != 4 {
			t.Errorf("aynı tarihte küçük id önce gelmeli, got %d", allocs[0].InvoiceID)
		}
	})
}
