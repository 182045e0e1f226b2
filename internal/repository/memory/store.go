package memory

import (
	"context"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

// Store implements repository.Store in memory.
type Store struct {
	vouchers *VoucherRepository
	orders   *OrderRepository
	payments *PaymentRepository
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		vouchers: NewVoucherRepository(),
		orders:   NewOrderRepository(),
		payments: NewPaymentRepository(),
	}
}

func (s *Store) Vouchers() repository.VoucherRepository { return s.vouchers }
func (s *Store) Orders() repository.OrderRepository     { return s.orders }
func (s *Store) Payments() repository.PaymentRepository { return s.payments }

func (s *Store) Ping(ctx context.Context) error  { return nil }
func (s *Store) Close(ctx context.Context) error { return nil }

// VoucherRepository keeps vouchers with a unique code index.
type VoucherRepository struct {
	*Collection[models.Voucher]
}

// NewVoucherRepository creates an empty voucher repository
func NewVoucherRepository() *VoucherRepository {
	c := NewCollection(
		func(v *models.Voucher) string { return v.ID },
		func(v *models.Voucher) time.Time { return v.CreatedAt },
	).WithUnique("code", func(v *models.Voucher) (string, bool) {
		return v.Code, true
	})
	return &VoucherRepository{Collection: c}
}

// IncrementUsage adds one redemption unless the limit is reached
func (r *VoucherRepository) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	return r.Update(id, func(v *models.Voucher) error {
		if v.LimitReached() {
			return repository.ErrConditionFailed
		}
		v.UsageCount++
		v.UpdatedAt = at
		return nil
	})
}

// ListAvailable returns redeemable vouchers, newest first
func (r *VoucherRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.Voucher, error) {
	return r.Select(func(v *models.Voucher, _ map[string]any) bool {
		return v.IsActive && v.InWindow(now) && !v.LimitReached()
	})
}

// OrderRepository keeps orders.
type OrderRepository struct {
	*Collection[models.Order]
}

// NewOrderRepository creates an empty order repository
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{Collection: NewCollection(
		func(o *models.Order) string { return o.ID },
		func(o *models.Order) time.Time { return o.CreatedAt },
	)}
}

// PaymentRepository keeps payments with at most one SUCCESS per order.
type PaymentRepository struct {
	*Collection[models.Payment]
}

// NewPaymentRepository creates an empty payment repository
func NewPaymentRepository() *PaymentRepository {
	c := NewCollection(
		func(p *models.Payment) string { return p.ID },
		func(p *models.Payment) time.Time { return p.CreatedAt },
	).WithUnique("success_per_order", func(p *models.Payment) (string, bool) {
		return p.OrderID, p.Status == models.PaymentSuccess
	})
	return &PaymentRepository{Collection: c}
}

// TransitionStatus moves a payment between statuses if it is currently in from
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) error {
	return r.Update(id, func(p *models.Payment) error {
		if p.Status != from {
			return repository.ErrConditionFailed
		}
		p.Status = to
		p.UpdatedAt = at
		return nil
	})
}
