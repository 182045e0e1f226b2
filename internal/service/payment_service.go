package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

var (
	ErrPaymentNotFound         = models.NewNotFoundError("Payment not found")
	ErrOrderCancelled          = models.NewIllegalStateError("Cannot process payment for cancelled order")
	ErrPaymentAlreadyProcessed = models.NewConflictError("Payment already processed for this order")
	ErrOrderRequired           = models.NewValidationError("Order is required")
	ErrPayerRequired           = models.NewValidationError("Payer is required")
	ErrInvalidAmount           = models.NewValidationError("Amount must be a non-negative number")
	ErrInvalidMethod           = models.NewValidationError("Invalid payment method")
	ErrTransactionRefRequired  = models.NewValidationError("Transaction reference is required")
)

// OrderReader resolves the order a payment settles
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

// PaymentService admits payments against orders
type PaymentService struct {
	payments repository.PaymentRepository
	orders   OrderReader
	now      func() time.Time
	log      *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(payments repository.PaymentRepository, orders OrderReader, log *slog.Logger) *PaymentService {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentService{
		payments: payments,
		orders:   orders,
		now:      time.Now,
		log:      log,
	}
}

// ProcessPayment records a payment and marks it successful.
//
// The attempt is stored as PENDING first and then moved to SUCCESS. The
// store refuses a second SUCCESS for the same order, so of two concurrent
// callers exactly one wins; the loser's record ends in FAILED and the caller
// gets ErrPaymentAlreadyProcessed.
func (s *PaymentService) ProcessPayment(ctx context.Context, req models.PaymentRequest) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "payment.Process")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderCancelled {
		return nil, ErrOrderCancelled
	}

	_, err = s.payments.FindOne(ctx, repository.Filter{
		"orderId": req.OrderID,
		"status":  string(models.PaymentSuccess),
	})
	switch {
	case err == nil:
		return nil, ErrPaymentAlreadyProcessed
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find successful payment: %w", err)
	}

	now := s.now()
	payment := &models.Payment{
		ID:             generateID(),
		OrderID:        req.OrderID,
		PayerID:        req.PayerID,
		Amount:         req.Amount,
		Method:         req.Method,
		Status:         models.PaymentPending,
		TransactionRef: req.TransactionRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Insert(ctx, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	span.SetAttributes(attribute.String("payment.id", payment.ID))

	settledAt := s.now()
	err = s.payments.TransitionStatus(ctx, payment.ID, models.PaymentPending, models.PaymentSuccess, settledAt)
	if errors.Is(err, repository.ErrDuplicate) {
		span.SetStatus(codes.Error, "payment already processed")
		if ferr := s.payments.TransitionStatus(ctx, payment.ID, models.PaymentPending, models.PaymentFailed, s.now()); ferr != nil {
			s.log.ErrorContext(ctx, "failed to mark losing payment as failed",
				"payment_id", payment.ID, "order_id", payment.OrderID, "error", ferr)
		}
		return nil, ErrPaymentAlreadyProcessed
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	payment.Status = models.PaymentSuccess
	payment.UpdatedAt = settledAt
	return payment, nil
}

// GetPayment returns a payment by id
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// ListPayments returns every payment, newest first
func (s *PaymentService) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return s.find(ctx, nil)
}

// ListByPayer returns a payer's payments, newest first
func (s *PaymentService) ListByPayer(ctx context.Context, payerID string) ([]models.Payment, error) {
	return s.find(ctx, repository.Filter{"payerId": payerID})
}

// ListByOrder returns every attempt against an order, newest first
func (s *PaymentService) ListByOrder(ctx context.Context, orderID string) ([]models.Payment, error) {
	return s.find(ctx, repository.Filter{"orderId": orderID})
}

func (s *PaymentService) find(ctx context.Context, filter repository.Filter) ([]models.Payment, error) {
	payments, err := s.payments.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func validatePaymentRequest(req models.PaymentRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return ErrOrderRequired
	case strings.TrimSpace(req.PayerID) == "":
		return ErrPayerRequired
	case req.Amount < 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0):
		return ErrInvalidAmount
	case !req.Method.Valid():
		return ErrInvalidMethod
	case strings.TrimSpace(req.TransactionRef) == "":
		return ErrTransactionRefRequired
	}
	return nil
}
