package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
	"github.com/Lixing-Zhang/service-marketplace/internal/saga"
	"github.com/Lixing-Zhang/service-marketplace/internal/voucher"
)

var (
	ErrOrderNotFound    = models.NewNotFoundError("Order not found")
	ErrCustomerRequired = models.NewValidationError("Customer is required")
	ErrServiceRequired  = models.NewValidationError("Service is required")
	ErrLocationRequired = models.NewValidationError("Location is required")
	ErrInvalidPrice     = models.NewValidationError("Estimated price must be a non-negative number")
	ErrInvalidStatus    = models.NewValidationError("Invalid order status")
)

var tracer = otel.Tracer("github.com/Lixing-Zhang/service-marketplace/internal/service")

// VoucherApplier prices and redeems vouchers for new orders
type VoucherApplier interface {
	ValidateAndApply(ctx context.Context, code string, orderAmount float64) (models.VoucherApplication, error)
	IncrementUsage(ctx context.Context, voucherID string) error
}

// OrderService handles order business logic
type OrderService struct {
	orders   repository.OrderRepository
	vouchers VoucherApplier
	strict   bool
	now      func() time.Time
	log      *slog.Logger
}

// OrderOption configures an OrderService
type OrderOption func(*OrderService)

// WithStrictTransitions enforces the forward-only lifecycle on status updates
func WithStrictTransitions(strict bool) OrderOption {
	return func(s *OrderService) { s.strict = strict }
}

// WithOrderClock overrides the time source
func WithOrderClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

// NewOrderService creates a new order service
func NewOrderService(orders repository.OrderRepository, vouchers VoucherApplier, log *slog.Logger, opts ...OrderOption) *OrderService {
	s := &OrderService{
		orders:   orders,
		vouchers: vouchers,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder prices and persists a new order, redeeming its voucher if one is given.
// An invalid voucher aborts creation before anything is written.
func (s *OrderService) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.Create")
	defer span.End()

	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	var applied models.VoucherApplication
	if code := strings.TrimSpace(req.VoucherCode); code != "" {
		var err error
		applied, err = s.vouchers.ValidateAndApply(ctx, code, req.EstimatedPrice)
		if err != nil {
			return nil, err
		}
		if !applied.Valid {
			return nil, models.NewValidationError(applied.Message)
		}
	}

	now := s.now()
	order := &models.Order{
		ID:              generateID(),
		CustomerID:      req.CustomerID,
		ServiceID:       req.ServiceID,
		Status:          models.OrderCreated,
		EstimatedPrice:  req.EstimatedPrice,
		VoucherID:       applied.VoucherID,
		VoucherDiscount: applied.Discount,
		FinalPrice:      voucher.FinalPrice(req.EstimatedPrice, applied.Discount),
		LocationID:      req.LocationID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	steps := []saga.Step{
		saga.StepFunc{
			StepName: "persist_order",
			Do: func(ctx context.Context) error {
				if err := s.orders.Insert(ctx, order); err != nil {
					return fmt.Errorf("insert order: %w", err)
				}
				return nil
			},
			Undo: func(ctx context.Context) error {
				return s.orders.Patch(ctx, order.ID, map[string]any{
					"status":    models.OrderCancelled,
					"updatedAt": s.now(),
				})
			},
		},
	}
	if order.VoucherID != "" {
		steps = append(steps, saga.StepFunc{
			StepName: "redeem_voucher",
			Do: func(ctx context.Context) error {
				return s.vouchers.IncrementUsage(ctx, order.VoucherID)
			},
		})
	}

	if err := saga.NewOrchestrator(s.log, steps...).Run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		if models.KindOf(err) != 0 {
			return nil, err
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

// UpdateStatus overwrites the order status and optionally assigns a mechanic or staff member.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, update models.OrderStatusUpdate) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.status", string(update.Status)))

	if !update.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.strict && !CanTransition(current.Status, update.Status) {
		return nil, models.NewIllegalStateError(
			fmt.Sprintf("Invalid status transition from %s to %s", current.Status, update.Status))
	}

	fields := map[string]any{
		"status":    update.Status,
		"updatedAt": s.now(),
	}
	if update.AssignedMechanicID != "" {
		fields["assignedMechanicId"] = update.AssignedMechanicID
	}
	if update.AssignedStaffID != "" {
		fields["assignedStaffId"] = update.AssignedStaffID
	}

	if err := s.orders.Patch(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return s.GetOrder(ctx, id)
}

// GetOrder returns an order by id
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListOrders returns every order, newest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.find(ctx, nil)
}

// ListByCustomer returns a customer's orders, newest first
func (s *OrderService) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.find(ctx, repository.Filter{"customerId": customerID})
}

// ListByMechanic returns orders assigned to a mechanic, newest first
func (s *OrderService) ListByMechanic(ctx context.Context, mechanicID string) ([]models.Order, error) {
	return s.find(ctx, repository.Filter{"assignedMechanicId": mechanicID})
}

// ListByStaff returns orders assigned to a staff member, newest first
func (s *OrderService) ListByStaff(ctx context.Context, staffID string) ([]models.Order, error) {
	return s.find(ctx, repository.Filter{"assignedStaffId": staffID})
}

// VoucherInUse reports whether any order references the voucher
func (s *OrderService) VoucherInUse(ctx context.Context, voucherID string) (bool, error) {
	_, err := s.orders.FindOne(ctx, repository.Filter{"voucherId": voucherID})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find orders by voucher: %w", err)
	}
	return true, nil
}

func (s *OrderService) find(ctx context.Context, filter repository.Filter) ([]models.Order, error) {
	orders, err := s.orders.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func validateOrderRequest(req models.OrderRequest) error {
	switch {
	case strings.TrimSpace(req.CustomerID) == "":
		return ErrCustomerRequired
	case strings.TrimSpace(req.ServiceID) == "":
		return ErrServiceRequired
	case strings.TrimSpace(req.LocationID) == "":
		return ErrLocationRequired
	case req.EstimatedPrice < 0 || math.IsNaN(req.EstimatedPrice) || math.IsInf(req.EstimatedPrice, 0):
		return ErrInvalidPrice
	}
	return nil
}

// generateID generates a unique entity ID using UUID
func generateID() string {
	return uuid.New().String()
}
