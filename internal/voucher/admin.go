package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

// Create stores a new voucher with usage count zero.
func (l *Ledger) Create(ctx context.Context, req models.VoucherRequest, createdBy string) (*models.Voucher, error) {
	now := l.now()
	v := &models.Voucher{
		ID:            newID(),
		Code:          models.NormalizeCode(req.Code),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      true,
		UsageLimit:    req.UsageLimit,
		UsageCount:    0,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}

	if err := validateVoucher(v); err != nil {
		return nil, err
	}

	if err := l.repo.Insert(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrVoucherCodeTaken
		}
		return nil, fmt.Errorf("insert voucher: %w", err)
	}
	if l.index != nil {
		l.index.Add(v.Code)
	}
	return v, nil
}

// Get returns a voucher by id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Voucher, error) {
	v, err := l.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	return v, nil
}

// GetByCode returns a voucher by its code, case-insensitively.
func (l *Ledger) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	v, err := l.lookup(ctx, models.NormalizeCode(code))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get voucher by code: %w", err)
	}
	return v, nil
}

// List returns all vouchers, newest first.
func (l *Ledger) List(ctx context.Context) ([]models.Voucher, error) {
	vouchers, err := l.repo.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return vouchers, nil
}

// Update applies a partial edit. Usage count is not editable.
func (l *Ledger) Update(ctx context.Context, id string, patch models.VoucherUpdate) (*models.Voucher, error) {
	v, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Code != nil {
		v.Code = models.NormalizeCode(*patch.Code)
	}
	if patch.DiscountType != nil {
		v.DiscountType = *patch.DiscountType
	}
	if patch.DiscountValue != nil {
		v.DiscountValue = *patch.DiscountValue
	}
	if patch.StartDate != nil {
		v.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		v.EndDate = *patch.EndDate
	}
	if patch.IsActive != nil {
		v.IsActive = *patch.IsActive
	}
	if patch.UsageLimit != nil {
		limit := *patch.UsageLimit
		v.UsageLimit = &limit
	}
	v.UpdatedAt = l.now()

	if err := validateVoucher(v); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"code":          v.Code,
		"discountType":  v.DiscountType,
		"discountValue": v.DiscountValue,
		"startDate":     v.StartDate,
		"endDate":       v.EndDate,
		"isActive":      v.IsActive,
		"updatedAt":     v.UpdatedAt,
	}
	if v.UsageLimit != nil {
		fields["usageLimit"] = *v.UsageLimit
	}
	return l.patch(ctx, id, fields)
}

// SetActive activates or deactivates a voucher.
func (l *Ledger) SetActive(ctx context.Context, id string, active bool) (*models.Voucher, error) {
	v, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.patch(ctx, v.ID, map[string]any{
		"isActive":  active,
		"updatedAt": l.now(),
	})
}

// Delete removes a voucher no order refers to.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if _, err := l.Get(ctx, id); err != nil {
		return err
	}

	if l.refs != nil {
		inUse, err := l.refs.VoucherInUse(ctx, id)
		if err != nil {
			return fmt.Errorf("check voucher references: %w", err)
		}
		if inUse {
			return ErrVoucherInUse
		}
	}

	if err := l.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVoucherNotFound
		}
		return fmt.Errorf("delete voucher: %w", err)
	}
	return nil
}

// patch writes only the given fields; usageCount is never among them.
func (l *Ledger) patch(ctx context.Context, id string, fields map[string]any) (*models.Voucher, error) {
	err := l.repo.Patch(ctx, id, fields)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicate):
		return nil, ErrVoucherCodeTaken
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrVoucherNotFound
	default:
		return nil, fmt.Errorf("update voucher: %w", err)
	}

	v, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.index != nil {
		l.index.Add(v.Code)
	}
	return v, nil
}

func validateVoucher(v *models.Voucher) error {
	switch {
	case v.Code == "":
		return ErrCodeRequired
	case !v.DiscountType.Valid():
		return ErrInvalidDiscountType
	case !(v.DiscountValue > 0) || !validAmount(v.DiscountValue):
		return ErrInvalidDiscountValue
	case v.DiscountType == models.DiscountPercentage && v.DiscountValue > 100:
		return ErrPercentageTooLarge
	case v.StartDate.After(v.EndDate):
		return ErrInvalidWindow
	case v.UsageLimit != nil && *v.UsageLimit < 0:
		return ErrInvalidUsageLimit
	}
	return nil
}
