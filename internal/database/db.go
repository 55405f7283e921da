package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ledger-backend/internal/config"
	"ledger-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// serialization failure / deadlock durumunda transaction bir kez daha denenir
const maxTxAttempts = 2

func Init(cfg *config.Config) {
	var err error

	DB, err = Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Open: postgres (production) veya sqlite (lokal / test) bağlantısı açar
func Open(driver, dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gcfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		// SQLite tek yazıcıya izin verir; bağlantıyı tek tutarak "database is locked" hatalarını önle
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("desteklenmeyen veritabanı sürücüsü: %s", driver)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Client{},
		&models.Product{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.InvoicePayment{},
		&models.Payment{},
		&models.PaymentAllocation{},
		&models.CashMovement{},
		&models.Order{},
		&models.OrderItem{},
		&models.PickingCheck{},
		&models.PendingAuthorization{},
	)
}

// WithTransaction çok kayıtlı her değişikliği tek atomik birim olarak çalıştırır.
// fn hata dönerse her şey geri alınır.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		log.Printf("[WARN] transaction tekrar deneniyor (%d/%d): %v", attempt, maxTxAttempts, err)
	}
	return err
}

// IsRetryable: Postgres serialization failure (40001) veya deadlock (40P01)
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// LockForUpdate satırı transaction sonuna kadar kilitler (SELECT ... FOR UPDATE).
// SQLite'ta satır kilidi yoktur, sürücü bu ifadeyi atlar.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
