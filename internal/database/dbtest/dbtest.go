// Package dbtest testler için bellekte çalışan, migrate edilmiş bir SQLite veritabanı açar.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"ledger-backend/internal/database"

	"gorm.io/gorm"
)

var seq atomic.Int64

func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))

	db, err := database.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("test veritabanı açılamadı: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migration başarısız: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// FailCreate, verilen tabloya yapılan ilk n insert'i err ile düşürür; n <= 0 ise hepsini.
// Yazma hatası ve Postgres tekrar deneme senaryoları için kullanılır.
func FailCreate(t testing.TB, db *gorm.DB, table string, n int, err error) {
	t.Helper()

	var calls atomic.Int64
	name := fmt.Sprintf("dbtest:fail_create_%s_%d", table, seq.Add(1))
	cbErr := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		if n > 0 && calls.Add(1) > int64(n) {
			return
		}
		_ = tx.AddError(err)
	})
	if cbErr != nil {
		t.Fatalf("callback kaydedilemedi: %v", cbErr)
	}
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove(name)
	})
}
