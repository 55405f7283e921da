package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/models"
)

type failingAuthorizer struct{}

func (failingAuthorizer) Authorize(context.Context, string) (bool, error) {
	return false, errors.New("bağlantı koptu")
}

func TestGateChallengeAndConsume(t *testing.T) {
	g := NewGate(stubAuthorizer{secret: supervisorPIN}, GateConfig{})

	if _, err := g.Challenge(context.Background(), "9999", 1, models.OrderPending); !errors.Is(err, apperr.ErrAuthorizationDenied) {
		t.Fatalf("yanlış PIN err = %v", err)
	}

	capability, err := g.Challenge(context.Background(), supervisorPIN, 1, models.OrderPending)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		orderID uint
		to      models.OrderStatus
	}{
		{"other order", 2, models.OrderPending},
		{"other status", 1, models.OrderProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Consume(capability, tt.orderID, tt.to); !errors.Is(err, apperr.ErrAuthorizationDenied) {
				t.Errorf("err = %v, want ErrAuthorizationDenied", err)
			}
		})
	}

	if err := g.Consume(capability, 1, models.OrderPending); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := g.Consume(capability, 1, models.OrderPending); !errors.Is(err, apperr.ErrAuthorizationDenied) {
		t.Errorf("ikinci kullanım err = %v", err)
	}
}

func TestGateRejectsForeignAndExpiredTokens(t *testing.T) {
	g := NewGate(stubAuthorizer{secret: supervisorPIN}, GateConfig{})
	other := NewGate(stubAuthorizer{secret: supervisorPIN}, GateConfig{})

	foreign, err := other.Challenge(context.Background(), supervisorPIN, 1, models.OrderPending)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Consume(foreign, 1, models.OrderPending); !errors.Is(err, apperr.ErrAuthorizationDenied) {
		t.Errorf("başka anahtarla imzalı yetki kabul edildi: %v", err)
	}

	capability, err := g.Challenge(context.Background(), supervisorPIN, 1, models.OrderPending)
	if err != nil {
		t.Fatal(err)
	}
	g.now = func() time.Time { return time.Now().Add(capabilityTTL + time.Minute) }
	if err := g.Consume(capability, 1, models.OrderPending); !errors.Is(err, apperr.ErrAuthorizationDenied) {
		t.Errorf("süresi dolan yetki kabul edildi: %v", err)
	}
}

func TestGateAuthorizerFailure(t *testing.T) {
	g := NewGate(failingAuthorizer{}, GateConfig{})

	_, err := g.Challenge(context.Background(), supervisorPIN, 1, models.OrderPending)
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
	if errors.Is(err, apperr.ErrAuthorizationDenied) {
		t.Error("altyapı hatası red olarak raporlandı")
	}
}
