// Package voucher owns voucher records: validity evaluation, discount
// computation and redemption accounting.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

// Validation messages, in the order the checks run.
const (
	MsgNotFound      = "Voucher not found"
	MsgInactive      = "Voucher is not active"
	MsgNotStarted    = "Voucher has not started yet"
	MsgExpired       = "Voucher has expired"
	MsgLimitExceeded = "Voucher usage limit exceeded"
	MsgValid         = "Voucher is valid"
	MsgApplied       = "Voucher applied successfully"
)

var (
	ErrVoucherNotFound      = models.NewNotFoundError(MsgNotFound)
	ErrVoucherLimitExceeded = models.NewConflictError(MsgLimitExceeded)
	ErrVoucherCodeTaken     = models.NewConflictError("Voucher code already exists")
	ErrVoucherInUse         = models.NewConflictError("Voucher is referenced by existing orders")
	ErrInvalidAmount        = models.NewValidationError("Order amount must be a non-negative number")
	ErrCodeRequired         = models.NewValidationError("Voucher code is required")
	ErrInvalidDiscountType  = models.NewValidationError("Discount type must be PERCENTAGE or FIXED_AMOUNT")
	ErrInvalidDiscountValue = models.NewValidationError("Discount value must be positive")
	ErrPercentageTooLarge   = models.NewValidationError("Percentage discount cannot exceed 100")
	ErrInvalidWindow        = models.NewValidationError("Start date must not be after end date")
	ErrInvalidUsageLimit    = models.NewValidationError("Usage limit cannot be negative")
)

var tracer = otel.Tracer("github.com/Lixing-Zhang/service-marketplace/internal/voucher")

// ReferenceChecker reports whether any order still references a voucher.
type ReferenceChecker interface {
	VoucherInUse(ctx context.Context, voucherID string) (bool, error)
}

// Ledger validates, redeems and administers vouchers.
type Ledger struct {
	repo  repository.VoucherRepository
	index *CodeIndex
	refs  ReferenceChecker
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCodeIndex short-circuits lookups of codes the index has never seen.
func WithCodeIndex(index *CodeIndex) Option {
	return func(l *Ledger) { l.index = index }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithReferenceChecker guards Delete against vouchers still used by orders.
func WithReferenceChecker(refs ReferenceChecker) Option {
	return func(l *Ledger) { l.refs = refs }
}

// NewLedger creates a ledger over repo.
func NewLedger(repo repository.VoucherRepository, opts ...Option) *Ledger {
	l := &Ledger{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetReferenceChecker installs the checker after construction, for callers
// whose checker itself depends on the ledger.
func (l *Ledger) SetReferenceChecker(refs ReferenceChecker) {
	l.refs = refs
}

// Validate checks code against orderAmount. An invalid voucher is reported
// through the result, not the error; the error is reserved for bad input and
// store failures.
func (l *Ledger) Validate(ctx context.Context, code string, orderAmount float64) (models.VoucherValidation, error) {
	ctx, span := tracer.Start(ctx, "voucher.Validate")
	defer span.End()

	if !validAmount(orderAmount) {
		return models.VoucherValidation{}, ErrInvalidAmount
	}

	code = models.NormalizeCode(code)
	span.SetAttributes(attribute.String("voucher.code", code))

	v, err := l.lookup(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid(MsgNotFound), nil
	}
	if err != nil {
		return models.VoucherValidation{}, fmt.Errorf("lookup voucher: %w", err)
	}

	if msg, ok := l.check(v); !ok {
		return invalid(msg), nil
	}

	return models.VoucherValidation{
		Valid:    true,
		Discount: Discount(v.DiscountType, v.DiscountValue, orderAmount),
		Message:  MsgValid,
		Voucher:  v,
	}, nil
}

// ValidateAndApply validates code and re-reads the voucher to catch a limit
// reached since validation. It does not redeem; callers follow up with IncrementUsage.
func (l *Ledger) ValidateAndApply(ctx context.Context, code string, orderAmount float64) (models.VoucherApplication, error) {
	res, err := l.Validate(ctx, code, orderAmount)
	if err != nil {
		return models.VoucherApplication{}, err
	}
	if !res.Valid {
		return models.VoucherApplication{Message: res.Message}, nil
	}

	current, err := l.repo.Get(ctx, res.Voucher.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.VoucherApplication{Message: MsgNotFound}, nil
	}
	if err != nil {
		return models.VoucherApplication{}, fmt.Errorf("reload voucher: %w", err)
	}
	if current.LimitReached() {
		return models.VoucherApplication{Message: MsgLimitExceeded}, nil
	}

	return models.VoucherApplication{
		Valid:     true,
		Discount:  res.Discount,
		VoucherID: current.ID,
		Message:   MsgApplied,
	}, nil
}

// IncrementUsage redeems the voucher once. The store applies the increment
// only while redemptions remain; losing that race yields ErrVoucherLimitExceeded.
func (l *Ledger) IncrementUsage(ctx context.Context, voucherID string) error {
	ctx, span := tracer.Start(ctx, "voucher.IncrementUsage")
	defer span.End()
	span.SetAttributes(attribute.String("voucher.id", voucherID))

	err := l.repo.IncrementUsage(ctx, voucherID, l.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConditionFailed):
		return ErrVoucherLimitExceeded
	case errors.Is(err, repository.ErrNotFound):
		return ErrVoucherNotFound
	default:
		return fmt.Errorf("increment voucher usage: %w", err)
	}
}

// ListAvailable returns vouchers redeemable right now, newest first.
func (l *Ledger) ListAvailable(ctx context.Context) ([]models.Voucher, error) {
	vouchers, err := l.repo.ListAvailable(ctx, l.now())
	if err != nil {
		return nil, fmt.Errorf("list available vouchers: %w", err)
	}
	return vouchers, nil
}

// WarmIndex loads every stored code into the code index, if one is configured.
func (l *Ledger) WarmIndex(ctx context.Context) (int, error) {
	if l.index == nil {
		return 0, nil
	}
	all, err := l.repo.Find(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("load voucher codes: %w", err)
	}
	codes := make([]string, len(all))
	for i, v := range all {
		codes[i] = v.Code
	}
	l.index.Reset(codes)
	return len(codes), nil
}

// check applies the validity rules in order and returns the first failure.
func (l *Ledger) check(v *models.Voucher) (string, bool) {
	now := l.now()
	switch {
	case !v.IsActive:
		return MsgInactive, false
	case now.Before(v.StartDate):
		return MsgNotStarted, false
	case now.After(v.EndDate):
		return MsgExpired, false
	case v.LimitReached():
		return MsgLimitExceeded, false
	}
	return "", true
}

func (l *Ledger) lookup(ctx context.Context, code string) (*models.Voucher, error) {
	if code == "" {
		return nil, repository.ErrNotFound
	}
	if l.index != nil && !l.index.MayContain(code) {
		return nil, repository.ErrNotFound
	}
	return l.repo.FindOne(ctx, repository.Filter{"code": code})
}

func invalid(msg string) models.VoucherValidation {
	return models.VoucherValidation{Valid: false, Discount: 0, Message: msg}
}

func validAmount(amount float64) bool {
	return amount >= 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

func newID() string {
	return uuid.New().String()
}
