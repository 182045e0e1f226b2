package models

import (
	"strings"
	"time"
)

// DiscountType is how a voucher's discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixedAmount
}

// Voucher is a discount code redeemable against orders.
type Voucher struct {
	ID            string       `json:"id" bson:"_id"`
	Code          string       `json:"code" bson:"code"`
	DiscountType  DiscountType `json:"discountType" bson:"discountType"`
	DiscountValue float64      `json:"discountValue" bson:"discountValue"`
	StartDate     time.Time    `json:"startDate" bson:"startDate"`
	EndDate       time.Time    `json:"endDate" bson:"endDate"`
	IsActive      bool         `json:"isActive" bson:"isActive"`
	UsageLimit    *int         `json:"usageLimit,omitempty" bson:"usageLimit,omitempty"`
	UsageCount    int          `json:"usageCount" bson:"usageCount"`
	CreatedBy     string       `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// LimitReached reports whether the voucher has no redemptions left.
// A limit of zero means the voucher can never be redeemed.
func (v *Voucher) LimitReached() bool {
	return v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit
}

// InWindow reports whether now falls inside [StartDate, EndDate].
func (v *Voucher) InWindow(now time.Time) bool {
	return !now.Before(v.StartDate) && !now.After(v.EndDate)
}

// NormalizeCode is the canonical form under which voucher codes are stored and looked up.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// VoucherRequest is the payload for creating a voucher.
type VoucherRequest struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       time.Time    `json:"endDate"`
	IsActive      *bool        `json:"isActive,omitempty"`
	UsageLimit    *int         `json:"usageLimit,omitempty"`
}

// VoucherUpdate is a partial update; nil fields are left unchanged.
type VoucherUpdate struct {
	Code          *string       `json:"code,omitempty"`
	DiscountType  *DiscountType `json:"discountType,omitempty"`
	DiscountValue *float64      `json:"discountValue,omitempty"`
	StartDate     *time.Time    `json:"startDate,omitempty"`
	EndDate       *time.Time    `json:"endDate,omitempty"`
	IsActive      *bool         `json:"isActive,omitempty"`
	UsageLimit    *int          `json:"usageLimit,omitempty"`
}

// ValidateVoucherRequest is the payload of the standalone validate endpoint.
type ValidateVoucherRequest struct {
	Code        string  `json:"code"`
	OrderAmount float64 `json:"orderAmount"`
}

// VoucherValidation is the outcome of checking a code against an order amount.
type VoucherValidation struct {
	Valid    bool     `json:"valid"`
	Discount float64  `json:"discount"`
	Message  string   `json:"message"`
	Voucher  *Voucher `json:"voucher,omitempty"`
}

// VoucherApplication is the outcome of validate-and-apply.
type VoucherApplication struct {
	Valid     bool    `json:"valid"`
	Discount  float64 `json:"discount"`
	VoucherID string  `json:"voucherId,omitempty"`
	Message   string  `json:"message"`
}
