package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// Money represents a monetary value stored in minor units.
type Money = promotion.Money

// PaymentMethod identifies how an invoice was settled.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQR   PaymentMethod = "qr"
	PaymentCard PaymentMethod = "card"
)

// Valid reports whether the method is supported.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentQR, PaymentCard:
		return true
	}
	return false
}

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusPaid Status = "paid"
)

// Source records where the sale was captured.
type Source string

const (
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
	// ErrDuplicate indicates an invoice with the same client reference already exists.
	ErrDuplicate = errors.New("invoice already recorded")
	// ErrInvalidPayment indicates an unsupported payment method.
	ErrInvalidPayment = errors.New("invalid payment method")
	// ErrInsufficientCash indicates the cash received does not cover the total.
	ErrInsufficientCash = errors.New("cash received is less than total")
)

// Invoice is a completed sale.
type Invoice struct {
	ID            uuid.UUID     `json:"id"`
	Number        string        `json:"number"`
	ClientRef     string        `json:"clientRef,omitempty"`
	CashierID     string        `json:"cashierId"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Items         []cart.Item   `json:"items"`
	Subtotal      Money         `json:"subtotal"`
	Discount      Money         `json:"discount"`
	FinalTotal    Money         `json:"finalTotal"`
	CashReceived  *Money        `json:"cashReceived,omitempty"`
	Change        Money         `json:"change"`

	PromotionID    *uuid.UUID             `json:"promotionId,omitempty"`
	PromotionCode  string                 `json:"promotionCode,omitempty"`
	PromotionName  string                 `json:"promotionName,omitempty"`
	PromotionType  string                 `json:"promotionType,omitempty"`
	PromotionValue *int64                 `json:"promotionValue,omitempty"`
	Explanation    *promotion.Explanation `json:"explanation,omitempty"`

	Status    Status    `json:"status"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	SyncedAt  time.Time `json:"syncedAt"`
}

// Filter narrows invoice listings. Zero times leave the range open.
type Filter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Store persists invoices.
type Store interface {
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetInvoiceByClientRef(ctx context.Context, clientRef string) (Invoice, error)
	ListInvoices(ctx context.Context, f Filter) ([]Invoice, int, error)
}
