package fulfillment

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	capabilityAudience = "order-transition"
	capabilityTTL      = 30 * time.Second
)

type GateConfig struct {
	PendingTTL  time.Duration // bekleyen onayın yaşam süresi
	MaxAttempts int           // bu kadar hatalı PIN'den sonra bekleyen istek düşer
}

// Gate geri yönlü hareketler için supervisor onayı ister. Başarılı bir
// Challenge tek kullanımlık, kısa ömürlü bir yetki (capability) döner.
type Gate struct {
	authz auth.Authorizer
	cfg   GateConfig
	key   []byte
	now   func() time.Time

	mu   sync.Mutex
	used map[string]time.Time // harcanan jti -> son geçerlilik
}

type capabilityClaims struct {
	OrderID  uint               `json:"order_id"`
	ToStatus models.OrderStatus `json:"to_status"`
	jwt.RegisteredClaims
}

func NewGate(authz auth.Authorizer, cfg GateConfig) *Gate {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	// yetki aynı süreçte üretilip harcanır, anahtar diske yazılmaz
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("gate anahtarı üretilemedi: %v", err))
	}

	return &Gate{
		authz: authz,
		cfg:   cfg,
		key:   key,
		now:   time.Now,
		used:  make(map[string]time.Time),
	}
}

// Challenge sırrı doğrular ve (orderID, toStatus) için imzalı yetki döner.
func (g *Gate) Challenge(ctx context.Context, secret string, orderID uint, to models.OrderStatus) (string, error) {
	ok, err := g.authz.Authorize(ctx, secret)
	if err != nil {
		return "", apperr.Persistence("yetki doğrulanamadı", err)
	}
	if !ok {
		return "", apperr.ErrAuthorizationDenied
	}

	now := g.now()
	claims := capabilityClaims{
		OrderID:  orderID,
		ToStatus: to,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{capabilityAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(capabilityTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
}

// Consume yetkiyi doğrular ve harcar; aynı yetki ikinci kez kullanılamaz.
func (g *Gate) Consume(capability string, orderID uint, to models.OrderStatus) error {
	claims := &capabilityClaims{}
	_, err := jwt.ParseWithClaims(capability, claims, func(t *jwt.Token) (interface{}, error) {
		return g.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(capabilityAudience),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrAuthorizationDenied, err)
	}
	if claims.OrderID != orderID || claims.ToStatus != to {
		return fmt.Errorf("%w: yetki başka bir hareket için verilmiş", apperr.ErrAuthorizationDenied)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for jti, exp := range g.used {
		if now.After(exp) {
			delete(g.used, jti)
		}
	}
	if _, spent := g.used[claims.ID]; spent {
		return fmt.Errorf("%w: yetki zaten kullanıldı", apperr.ErrAuthorizationDenied)
	}
	g.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}
