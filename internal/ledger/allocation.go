package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// epsilon: bunun altında kalan tutar dağıtılmaz (yarım kuruş)
var epsilon = decimal.New(5, -3)

// OpenInvoice: kalan borcu olan fatura
type OpenInvoice struct {
	ID        uint
	Date      time.Time
	Remaining decimal.Decimal
}

// Allocation: tahsilatın tek bir faturaya düşen kısmı
type Allocation struct {
	InvoiceID     uint            `json:"invoice_id"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// Allocate tutarı en eski borçtan başlayarak (FIFO) faturalara dağıtır.
// Dönen ikinci değer hiçbir faturaya düşmeyen artık tutardır.
func Allocate(invoices []OpenInvoice, amount decimal.Decimal) ([]Allocation, decimal.Decimal) {
	ordered := make([]OpenInvoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Date.Before(ordered[j].Date)
	})

	remaining := amount
	allocations := make([]Allocation, 0, len(ordered))

	for _, inv := range ordered {
		if remaining.LessThanOrEqual(epsilon) {
			break
		}
		if !inv.Remaining.IsPositive() {
			continue
		}

		applied := decimal.Min(remaining, inv.Remaining)
		allocations = append(allocations, Allocation{
			InvoiceID:     inv.ID,
			InvoiceDate:   inv.Date,
			Amount:        applied,
			BalanceBefore: inv.Remaining,
			BalanceAfter:  inv.Remaining.Sub(applied),
		})
		remaining = remaining.Sub(applied)
	}

	if remaining.LessThanOrEqual(epsilon) {
		remaining = decimal.Zero
	}
	return allocations, remaining
}
