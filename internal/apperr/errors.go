// Package apperr çekirdek (tahsilat, satış, sipariş) hatalarının ortak sınıflandırması.
package apperr

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNotFound               = errors.New("kayıt bulunamadı")
	ErrInvalidAmount          = errors.New("tutar 0'dan büyük olmalı")
	ErrInvalidInput           = errors.New("geçersiz istek")
	ErrPickingIncomplete      = errors.New("toplama (picking) tamamlanmadan sipariş hazır durumuna geçemez")
	ErrAuthorizationDenied    = errors.New("yetki doğrulanamadı")
	ErrAuthorizationPending   = errors.New("bu sipariş için onay bekleyen bir hareket var")
	ErrNoPendingAuthorization = errors.New("onay bekleyen hareket yok")
	ErrAuthorizationExpired   = errors.New("onay süresi doldu, hareketi tekrar isteyin")
	ErrInvalidTransition      = errors.New("geçersiz durum geçişi")
	ErrPersistence            = errors.New("veritabanı işlemi başarısız")
)

// NotFound: hangi kaydın bulunamadığını mesaja ekler
func NotFound(entity string, id uint) error {
	return fmt.Errorf("%s #%d: %w", entity, id, ErrNotFound)
}

// Persistence: store hatasını ErrPersistence olarak sarar ve loglar, asla yutulmaz.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	log.Printf("[ERROR] %s: %v", op, err)
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// ToFiber domain hatasını HTTP hatasına çevirir
func ToFiber(err error) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPickingIncomplete),
		errors.Is(err, ErrAuthorizationPending),
		errors.Is(err, ErrNoPendingAuthorization),
		errors.Is(err, ErrAuthorizationExpired),
		errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrAuthorizationDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrPersistence):
		return fiber.NewError(fiber.StatusInternalServerError, "Veritabanı işlemi başarısız, işlem geri alındı")
	default:
		return err
	}
}
