package cashflow

import (
	"fmt"
	"time"

	"ledger-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Record kasa hareketini çağıranın transaction'ı içinde yazar.
// Tahsilat ve nakit satışın tek yazma yolu budur.
func Record(tx *gorm.DB, mov *models.CashMovement) error {
	if !mov.Amount.IsPositive() {
		return fmt.Errorf("kasa hareketi tutarı pozitif olmalı: %s", mov.Amount)
	}
	if mov.Type != models.CashIn && mov.Type != models.CashOut {
		return fmt.Errorf("geçersiz kasa hareketi tipi: %q", mov.Type)
	}
	if mov.Date.IsZero() {
		now := time.Now()
		mov.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return tx.Create(mov).Error
}

type ListFilter struct {
	From *time.Time
	To   *time.Time
	Type models.CashMovementType
}

func List(db *gorm.DB, f ListFilter) ([]models.CashMovement, error) {
	dbq := db.Model(&models.CashMovement{})
	if f.From != nil {
		dbq = dbq.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		dbq = dbq.Where("date <= ?", *f.To)
	}
	if f.Type != "" {
		dbq = dbq.Where("type = ?", f.Type)
	}

	var movs []models.CashMovement
	err := dbq.Order("date asc, id asc").Find(&movs).Error
	return movs, err
}

type DailySummary struct {
	Date     time.Time
	TotalIn  decimal.Decimal
	TotalOut decimal.Decimal
	Net      decimal.Decimal
	Count    int
}

// Summarize bir günün giriş/çıkış toplamları. Toplama Go tarafında decimal ile yapılır,
// SUM(numeric) sürücüye göre float dönebiliyor.
func Summarize(db *gorm.DB, day time.Time) (DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var movs []models.CashMovement
	if err := db.Where("date >= ? AND date < ?", start, end).Find(&movs).Error; err != nil {
		return DailySummary{}, err
	}

	sum := DailySummary{Date: start, TotalIn: decimal.Zero, TotalOut: decimal.Zero, Count: len(movs)}
	for _, m := range movs {
		switch m.Type {
		case models.CashIn:
			sum.TotalIn = sum.TotalIn.Add(m.Amount)
		case models.CashOut:
			sum.TotalOut = sum.TotalOut.Add(m.Amount)
		}
	}
	sum.Net = sum.TotalIn.Sub(sum.TotalOut)
	return sum, nil
}
