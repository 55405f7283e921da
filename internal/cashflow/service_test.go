package cashflow

import (
	"testing"
	"time"

	"ledger-backend/internal/database/dbtest"
	"ledger-backend/internal/models"

	"github.com/shopspring/decimal"
)

func TestRecordValidates(t *testing.T) {
	db := dbtest.New(t)

	tests := []struct {
		name    string
		mov     models.CashMovement
		wantErr bool
	}{
		{"zero amount", models.CashMovement{Type: models.CashIn, Amount: decimal.Zero, Reason: "x"}, true},
		{"bad type", models.CashMovement{Type: "SIDEWAYS", Amount: decimal.NewFromInt(5), Reason: "x"}, true},
		{"ok", models.CashMovement{Type: models.CashIn, Amount: decimal.NewFromInt(5), Reason: "tahsilat"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mov := tt.mov
			err := Record(db, &mov)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Record() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && mov.Date.IsZero() {
				t.Error("Date varsayılan olarak bugüne ayarlanmalı")
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	db := dbtest.New(t)
	day := time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)

	movs := []models.CashMovement{
		{Date: day, Type: models.CashIn, Amount: decimal.RequireFromString("120.50"), Reason: "a"},
		{Date: day, Type: models.CashIn, Amount: decimal.RequireFromString("30"), Reason: "b"},
		{Date: day, Type: models.CashOut, Amount: decimal.RequireFromString("20.25"), Reason: "c"},
		{Date: day.AddDate(0, 0, 1), Type: models.CashIn, Amount: decimal.NewFromInt(999), Reason: "ertesi gün"},
	}
	for i := range movs {
		if err := Record(db, &movs[i]); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	sum, err := Summarize(db, day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Count != 3 {
		t.Errorf("Count = %d, want 3", sum.Count)
	}
	if !sum.TotalIn.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("TotalIn = %s, want 150.50", sum.TotalIn)
	}
	if !sum.Net.Equal(decimal.RequireFromString("130.25")) {
		t.Errorf("Net = %s, want 130.25", sum.Net)
	}

	outs, err := List(db, ListFilter{Type: models.CashOut})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(outs) != 1 {
		t.Errorf("1 OUT hareketi bekleniyordu, %d geldi", len(outs))
	}
}
