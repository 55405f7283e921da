package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=ledger port=5432 sslmode=disable"

type Config struct {
	HTTPPort       string
	DatabaseDriver string // postgres | sqlite
	DatabaseDSN    string
	JWTSecret      string
	CORSOrigins    string

	// Yetki kapısı (geri yönlü sipariş hareketleri)
	SupervisorPINHashes []string      // bcrypt hash listesi (supervisor PIN / master override)
	AuthPendingTTL      time.Duration // bekleyen onayın yaşam süresi
	AuthMaxAttempts     int           // bu kadar hatalı denemeden sonra bekleyen istek düşer
	AuthRateLimit       int           // dakikada izin verilen PIN denemesi (IP başına)
}

func Load() *Config {
	// Production dışında .env dosyasını yükle, yoksa sistem değişkenleriyle devam et
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("[WARN] .env dosyası bulunamadı, sistem environment değişkenleri kullanılıyor")
		}
	}

	cfg := &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseDriver:      strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseDSN:         getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CORSOrigins:         getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		SupervisorPINHashes: splitList(getEnv("SUPERVISOR_PIN_HASHES", "")),
		AuthPendingTTL:      getDuration("AUTH_PENDING_TTL", 5*time.Minute),
		AuthMaxAttempts:     getInt("AUTH_MAX_ATTEMPTS", 5),
		AuthRateLimit:       getInt("AUTH_RATE_LIMIT", 10),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET environment değişkeni tanımlanmamış! Production için zorunludur.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET en az 32 karakter olmalıdır! Güvenlik riski.")
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		log.Fatalf("[FATAL] DATABASE_DRIVER geçersiz: %q (postgres|sqlite)", cfg.DatabaseDriver)
	}
	if cfg.DatabaseDriver == "postgres" && cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN varsayılan değer kullanılıyor, production için mutlaka kendi Postgres bağlantı bilgisini tanımla.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS varsayılan değer kullanılıyor, production için mutlaka kendi domain'ini tanımla.")
	}
	if len(cfg.SupervisorPINHashes) == 0 {
		log.Println("[WARN] SUPERVISOR_PIN_HASHES boş, geri yönlü hareketler sadece PIN'i olan supervisor kullanıcılarıyla onaylanabilir.")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[WARN] %s geçersiz (%q), varsayılan %d kullanılıyor", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[WARN] %s geçersiz (%q), varsayılan %s kullanılıyor", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
