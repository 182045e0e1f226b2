// Package repository defines the storage contracts the domain services depend on.
//
// Documents are addressed by their system-generated id. Field names used in
// filters are the stored document names (the json/bson tags on the models).
// Implementations live in the memory, mongostore and pgstore subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrConditionFailed = errors.New("conditional update did not match")
)

// Filter is an equality match on top-level string fields. An empty filter matches everything.
type Filter map[string]string

// Repository is the generic document contract shared by every entity.
// Find returns documents newest first by createdAt.
type Repository[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Find(ctx context.Context, filter Filter) ([]T, error)
	Insert(ctx context.Context, doc *T) error
	Replace(ctx context.Context, id string, doc *T) error
	// Patch sets the given top-level fields, leaving the rest of the document untouched.
	Patch(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// VoucherRepository adds the atomic redemption and availability queries.
type VoucherRepository interface {
	Repository[models.Voucher]

	// IncrementUsage adds one to usageCount only while usageCount < usageLimit
	// (or no limit is set). Returns ErrConditionFailed when the limit is
	// already reached and ErrNotFound when the id does not resolve.
	IncrementUsage(ctx context.Context, id string, at time.Time) error

	// ListAvailable returns active vouchers whose window contains now and
	// that still have redemptions left, newest first.
	ListAvailable(ctx context.Context, now time.Time) ([]models.Voucher, error)
}

// OrderRepository needs nothing beyond the generic contract.
type OrderRepository interface {
	Repository[models.Order]
}

// PaymentRepository adds a compare-and-set status transition.
type PaymentRepository interface {
	Repository[models.Payment]

	// TransitionStatus moves a payment from one status to another.
	// Returns ErrConditionFailed if the payment is not currently in from,
	// ErrDuplicate if the order already has a successful payment.
	TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) error
}

// Store bundles the repositories of one backing database.
type Store interface {
	Vouchers() VoucherRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
