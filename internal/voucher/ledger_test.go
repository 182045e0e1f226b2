package voucher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository/memory"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *memory.VoucherRepository) {
	t.Helper()
	repo := memory.NewVoucherRepository()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewLedger(repo, opts...), repo
}

func seed(t *testing.T, repo *memory.VoucherRepository, v models.Voucher) {
	t.Helper()
	if v.StartDate.IsZero() {
		v.StartDate = testNow.Add(-24 * time.Hour)
	}
	if v.EndDate.IsZero() {
		v.EndDate = testNow.Add(24 * time.Hour)
	}
	if err := repo.Insert(context.Background(), &v); err != nil {
		t.Fatalf("seed %s: %v", v.Code, err)
	}
}

func TestLedger_Validate(t *testing.T) {
	ledger, repo := newTestLedger(t)

	seed(t, repo, models.Voucher{ID: "1", Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10, IsActive: true, UsageLimit: intPtr(1)})
	seed(t, repo, models.Voucher{ID: "2", Code: "FLAT50", DiscountType: models.DiscountFixedAmount, DiscountValue: 50, IsActive: true})
	seed(t, repo, models.Voucher{ID: "3", Code: "OFF", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: false})
	seed(t, repo, models.Voucher{ID: "4", Code: "SOON", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true,
		StartDate: testNow.Add(time.Hour), EndDate: testNow.Add(48 * time.Hour)})
	seed(t, repo, models.Voucher{ID: "5", Code: "OLD", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true,
		StartDate: testNow.Add(-48 * time.Hour), EndDate: testNow.Add(-time.Hour)})
	seed(t, repo, models.Voucher{ID: "6", Code: "USEDUP", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true,
		UsageLimit: intPtr(3), UsageCount: 3})
	seed(t, repo, models.Voucher{ID: "7", Code: "NEVER", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true,
		UsageLimit: intPtr(0)})
	seed(t, repo, models.Voucher{ID: "8", Code: "EDGE", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true,
		StartDate: testNow, EndDate: testNow})
	seed(t, repo, models.Voucher{ID: "9", Code: "DEADUSED", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true,
		UsageLimit: intPtr(1), UsageCount: 1, StartDate: testNow.Add(-48 * time.Hour), EndDate: testNow.Add(-time.Hour)})

	tests := []struct {
		name         string
		code         string
		amount       float64
		wantValid    bool
		wantDiscount float64
		wantMessage  string
	}{
		{"percentage", "SAVE10", 200, true, 20, MsgValid},
		{"case insensitive", "  save10 ", 200, true, 20, MsgValid},
		{"fixed capped", "FLAT50", 30, true, 30, MsgValid},
		{"not found", "NOPE", 100, false, 0, MsgNotFound},
		{"empty code", "", 100, false, 0, MsgNotFound},
		{"inactive", "OFF", 100, false, 0, MsgInactive},
		{"not started", "SOON", 100, false, 0, MsgNotStarted},
		{"expired", "OLD", 100, false, 0, MsgExpired},
		{"limit reached", "USEDUP", 100, false, 0, MsgLimitExceeded},
		{"zero limit never usable", "NEVER", 100, false, 0, MsgLimitExceeded},
		{"window bounds inclusive", "EDGE", 100, true, 5, MsgValid},
		{"expiry reported before limit", "DEADUSED", 100, false, 0, MsgExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ledger.Validate(context.Background(), tt.code, tt.amount)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", res.Valid, tt.wantValid)
			}
			if res.Discount != tt.wantDiscount {
				t.Errorf("Discount = %v, want %v", res.Discount, tt.wantDiscount)
			}
			if res.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", res.Message, tt.wantMessage)
			}
			if tt.wantValid && res.Voucher == nil {
				t.Error("Voucher is nil on valid result")
			}
		})
	}
}

func TestLedger_ValidateRejectsBadAmount(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Validate(context.Background(), "ANY", -1)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Validate() error = %v, want ErrInvalidAmount", err)
	}
}

func TestLedger_ValidateAndApply(t *testing.T) {
	ledger, repo := newTestLedger(t)
	seed(t, repo, models.Voucher{ID: "v1", Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10, IsActive: true, UsageLimit: intPtr(1)})

	app, err := ledger.ValidateAndApply(context.Background(), "save10", 200)
	if err != nil {
		t.Fatalf("ValidateAndApply() error = %v", err)
	}
	if !app.Valid || app.VoucherID != "v1" || app.Discount != 20 || app.Message != MsgApplied {
		t.Errorf("ValidateAndApply() = %+v", app)
	}

	v, _ := repo.Get(context.Background(), "v1")
	if v.UsageCount != 0 {
		t.Errorf("UsageCount = %d, ValidateAndApply must not redeem", v.UsageCount)
	}

	app, _ = ledger.ValidateAndApply(context.Background(), "MISSING", 200)
	if app.Valid || app.VoucherID != "" || app.Message != MsgNotFound {
		t.Errorf("ValidateAndApply(MISSING) = %+v", app)
	}
}

func TestLedger_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	ledger, repo := newTestLedger(t)
	seed(t, repo, models.Voucher{ID: "v1", Code: "ONCE", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true, UsageLimit: intPtr(1)})

	if err := ledger.IncrementUsage(ctx, "v1"); err != nil {
		t.Fatalf("IncrementUsage() error = %v", err)
	}
	if err := ledger.IncrementUsage(ctx, "v1"); !errors.Is(err, ErrVoucherLimitExceeded) {
		t.Errorf("IncrementUsage() past limit error = %v, want ErrVoucherLimitExceeded", err)
	}
	if models.KindOf(ErrVoucherLimitExceeded) != models.KindConflict {
		t.Error("limit race must be reported as a conflict")
	}
	if err := ledger.IncrementUsage(ctx, "missing"); !errors.Is(err, ErrVoucherNotFound) {
		t.Errorf("IncrementUsage() unknown error = %v, want ErrVoucherNotFound", err)
	}

	v, _ := repo.Get(ctx, "v1")
	if v.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", v.UsageCount)
	}
	if !v.UpdatedAt.Equal(testNow) {
		t.Errorf("UpdatedAt = %v, want %v", v.UpdatedAt, testNow)
	}
}

func TestLedger_IncrementUsageNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	ledger, repo := newTestLedger(t)
	seed(t, repo, models.Voucher{ID: "v1", Code: "HOT", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true, UsageLimit: intPtr(5)})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.IncrementUsage(ctx, "v1")
		}()
	}
	wg.Wait()

	v, _ := repo.Get(ctx, "v1")
	if v.UsageCount != 5 {
		t.Errorf("UsageCount = %d, want 5", v.UsageCount)
	}
}

func TestLedger_ListAvailable(t *testing.T) {
	ledger, repo := newTestLedger(t)
	seed(t, repo, models.Voucher{ID: "a", Code: "A", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true, CreatedAt: testNow.Add(-time.Hour)})
	seed(t, repo, models.Voucher{ID: "b", Code: "B", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true, CreatedAt: testNow})
	seed(t, repo, models.Voucher{ID: "c", Code: "C", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: false})

	got, err := ledger.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("ListAvailable() returned %d vouchers, want [b a]", len(got))
	}
}

func TestLedger_CodeIndex(t *testing.T) {
	ctx := context.Background()
	index := NewCodeIndex(100, 0.01)
	ledger, repo := newTestLedger(t, WithCodeIndex(index))
	seed(t, repo, models.Voucher{ID: "v1", Code: "PRELOADED", DiscountType: models.DiscountFixedAmount, DiscountValue: 5, IsActive: true})

	res, _ := ledger.Validate(ctx, "PRELOADED", 10)
	if res.Valid {
		t.Error("code missing from the index should be rejected before warm-up")
	}

	n, err := ledger.WarmIndex(ctx)
	if err != nil || n != 1 {
		t.Fatalf("WarmIndex() = %d, %v; want 1", n, err)
	}
	res, _ = ledger.Validate(ctx, "preloaded", 10)
	if !res.Valid {
		t.Errorf("Validate() after warm-up = %+v, want valid", res)
	}

	created, err := ledger.Create(ctx, models.VoucherRequest{
		Code: "fresh", DiscountType: models.DiscountFixedAmount, DiscountValue: 1,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour),
	}, "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !index.MayContain(created.Code) {
		t.Error("created code not added to the index")
	}
}
