package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

const (
	vouchersTable = "vouchers"
	ordersTable   = "orders"
	paymentsTable = "payments"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vouchers (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS vouchers_code_key ON vouchers ((doc->>'code'))`,
	`CREATE TABLE IF NOT EXISTS orders (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders ((doc->>'customerId'))`,
	`CREATE INDEX IF NOT EXISTS orders_mechanic_idx ON orders ((doc->>'assignedMechanicId'))`,
	`CREATE INDEX IF NOT EXISTS orders_staff_idx ON orders ((doc->>'assignedStaffId'))`,
	`CREATE INDEX IF NOT EXISTS orders_voucher_idx ON orders ((doc->>'voucherId'))`,
	`CREATE TABLE IF NOT EXISTS payments (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_success_per_order_key ON payments ((doc->>'orderId')) WHERE doc->>'status' = 'SUCCESS'`,
	`CREATE INDEX IF NOT EXISTS payments_payer_idx ON payments ((doc->>'payerId'))`,
}

// Store implements repository.Store on postgres.
type Store struct {
	db       *sql.DB
	vouchers *VoucherRepository
	orders   *OrderRepository
	payments *PaymentRepository
}

// New creates the schema if needed and wires the repositories.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{
		db: db,
		vouchers: &VoucherRepository{Table: NewTable(db, vouchersTable,
			func(v *models.Voucher) string { return v.ID })},
		orders: &OrderRepository{Table: NewTable(db, ordersTable,
			func(o *models.Order) string { return o.ID })},
		payments: &PaymentRepository{Table: NewTable(db, paymentsTable,
			func(p *models.Payment) string { return p.ID })},
	}, nil
}

func (s *Store) Vouchers() repository.VoucherRepository { return s.vouchers }
func (s *Store) Orders() repository.OrderRepository     { return s.orders }
func (s *Store) Payments() repository.PaymentRepository { return s.payments }

func (s *Store) Ping(ctx context.Context) error  { return s.db.PingContext(ctx) }
func (s *Store) Close(ctx context.Context) error { return s.db.Close() }

const redemptionsLeft = `(doc->>'usageLimit' IS NULL OR (doc->>'usageCount')::int < (doc->>'usageLimit')::int)`

// VoucherRepository stores vouchers in postgres.
type VoucherRepository struct {
	*Table[models.Voucher]
}

// IncrementUsage bumps usageCount in a single conditional UPDATE
func (r *VoucherRepository) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE vouchers
		SET doc = jsonb_set(
			jsonb_set(doc, '{usageCount}', to_jsonb((doc->>'usageCount')::int + 1)),
			'{updatedAt}', to_jsonb($2::text))
		WHERE id = $1 AND ` + redemptionsLeft
	return r.conditionalExec(ctx, query, id, formatTime(at))
}

// ListAvailable returns redeemable vouchers, newest first
func (r *VoucherRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.Voucher, error) {
	query := `SELECT doc FROM vouchers
		WHERE (doc->>'isActive')::boolean
		AND (doc->>'startDate')::timestamptz <= $1
		AND (doc->>'endDate')::timestamptz >= $1
		AND ` + redemptionsLeft + ` ` + newestFirst
	return r.query(ctx, query, now)
}

// OrderRepository stores orders in postgres.
type OrderRepository struct {
	*Table[models.Order]
}

// PaymentRepository stores payments in postgres.
type PaymentRepository struct {
	*Table[models.Payment]
}

// TransitionStatus compares and sets the status. The partial unique index
// rejects a second SUCCESS for the same order.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) error {
	query := `UPDATE payments
		SET doc = jsonb_set(
			jsonb_set(doc, '{status}', to_jsonb($3::text)),
			'{updatedAt}', to_jsonb($4::text))
		WHERE id = $1 AND doc->>'status' = $2`
	return r.conditionalExec(ctx, query, id, string(from), string(to), formatTime(at))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
