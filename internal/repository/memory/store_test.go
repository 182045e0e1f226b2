package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

func intPtr(n int) *int { return &n }

func TestVoucherRepository_UniqueCode(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository()

	if err := repo.Insert(ctx, &models.Voucher{ID: "v1", Code: "SAVE10"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := repo.Insert(ctx, &models.Voucher{ID: "v2", Code: "SAVE10"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("Insert() duplicate code error = %v, want ErrDuplicate", err)
	}
	err = repo.Insert(ctx, &models.Voucher{ID: "v1", Code: "OTHER"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("Insert() duplicate id error = %v, want ErrDuplicate", err)
	}
}

func TestVoucherRepository_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name      string
		limit     *int
		count     int
		wantErr   error
		wantCount int
	}{
		{name: "no limit", limit: nil, count: 5, wantCount: 6},
		{name: "under limit", limit: intPtr(2), count: 1, wantCount: 2},
		{name: "at limit", limit: intPtr(2), count: 2, wantErr: repository.ErrConditionFailed, wantCount: 2},
		{name: "zero limit", limit: intPtr(0), count: 0, wantErr: repository.ErrConditionFailed, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewVoucherRepository()
			_ = repo.Insert(ctx, &models.Voucher{ID: "v", Code: "C", UsageLimit: tt.limit, UsageCount: tt.count})

			err := repo.IncrementUsage(ctx, "v", now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("IncrementUsage() error = %v, want %v", err, tt.wantErr)
			}

			v, _ := repo.Get(ctx, "v")
			if v.UsageCount != tt.wantCount {
				t.Errorf("UsageCount = %d, want %d", v.UsageCount, tt.wantCount)
			}
		})
	}

	t.Run("unknown id", func(t *testing.T) {
		repo := NewVoucherRepository()
		if err := repo.IncrementUsage(ctx, "missing", now); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("IncrementUsage() error = %v, want ErrNotFound", err)
		}
	})
}

func TestVoucherRepository_IncrementUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository()
	_ = repo.Insert(ctx, &models.Voucher{ID: "v", Code: "C", UsageLimit: intPtr(3)})

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.IncrementUsage(ctx, "v", time.Now()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("successful increments = %d, want 3", succeeded)
	}
	v, _ := repo.Get(ctx, "v")
	if v.UsageCount != 3 {
		t.Errorf("UsageCount = %d, want 3", v.UsageCount)
	}
}

func TestVoucherRepository_ListAvailable(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewVoucherRepository()

	vouchers := []models.Voucher{
		{ID: "old", Code: "OLD", IsActive: true, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "new", Code: "NEW", IsActive: true, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), CreatedAt: now.Add(-time.Hour)},
		{ID: "inactive", Code: "INACTIVE", IsActive: false, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)},
		{ID: "future", Code: "FUTURE", IsActive: true, StartDate: now.Add(time.Hour), EndDate: now.Add(2 * time.Hour)},
		{ID: "expired", Code: "EXPIRED", IsActive: true, StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(-time.Hour)},
		{ID: "used", Code: "USED", IsActive: true, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), UsageLimit: intPtr(1), UsageCount: 1},
	}
	for i := range vouchers {
		if err := repo.Insert(ctx, &vouchers[i]); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := repo.ListAvailable(ctx, now)
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListAvailable() returned %d vouchers, want 2", len(got))
	}
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("ListAvailable() order = [%s %s], want [new old]", got[0].ID, got[1].ID)
	}
}

func TestPaymentRepository_OneSuccessPerOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewPaymentRepository()

	_ = repo.Insert(ctx, &models.Payment{ID: "p1", OrderID: "o1", Status: models.PaymentPending})
	_ = repo.Insert(ctx, &models.Payment{ID: "p2", OrderID: "o1", Status: models.PaymentPending})

	if err := repo.TransitionStatus(ctx, "p1", models.PaymentPending, models.PaymentSuccess, now); err != nil {
		t.Fatalf("TransitionStatus(p1) error = %v", err)
	}
	err := repo.TransitionStatus(ctx, "p2", models.PaymentPending, models.PaymentSuccess, now)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("TransitionStatus(p2) error = %v, want ErrDuplicate", err)
	}

	p2, _ := repo.Get(ctx, "p2")
	if p2.Status != models.PaymentPending {
		t.Errorf("p2 status = %s, want PENDING after rejected transition", p2.Status)
	}

	err = repo.TransitionStatus(ctx, "p1", models.PaymentPending, models.PaymentFailed, now)
	if !errors.Is(err, repository.ErrConditionFailed) {
		t.Errorf("TransitionStatus() from wrong status error = %v, want ErrConditionFailed", err)
	}
}

func TestCollection_FindFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewOrderRepository()

	_ = repo.Insert(ctx, &models.Order{ID: "a", CustomerID: "c1", CreatedAt: now.Add(-time.Minute)})
	_ = repo.Insert(ctx, &models.Order{ID: "b", CustomerID: "c2", CreatedAt: now})
	_ = repo.Insert(ctx, &models.Order{ID: "c", CustomerID: "c1", CreatedAt: now})

	got, err := repo.Find(ctx, repository.Filter{"customerId": "c1"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Errorf("Find() = %v, want [c a]", ids(got))
	}

	all, _ := repo.Find(ctx, nil)
	if len(all) != 3 {
		t.Errorf("Find(nil) returned %d, want 3", len(all))
	}

	if _, err := repo.FindOne(ctx, repository.Filter{"customerId": "nobody"}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("FindOne() error = %v, want ErrNotFound", err)
	}
}

func TestCollection_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository()
	_ = repo.Insert(ctx, &models.Voucher{ID: "v", Code: "C", UsageLimit: intPtr(5)})

	v, _ := repo.Get(ctx, "v")
	*v.UsageLimit = 0
	v.Code = "MUTATED"

	again, _ := repo.Get(ctx, "v")
	if again.Code != "C" || *again.UsageLimit != 5 {
		t.Errorf("stored voucher was mutated through returned copy: %+v", again)
	}
}

func ids(orders []models.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}
