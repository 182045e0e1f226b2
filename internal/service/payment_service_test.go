package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
)

func paymentRequest(orderID string) models.PaymentRequest {
	return models.PaymentRequest{
		OrderID:        orderID,
		PayerID:        "cust-1",
		Amount:         180,
		Method:         models.MethodEWallet,
		TransactionRef: "tx-1",
	}
}

func TestPaymentService_ProcessPaymentValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		mutate  func(r *models.PaymentRequest)
		wantErr error
	}{
		{"missing order", func(r *models.PaymentRequest) { r.OrderID = "" }, ErrOrderRequired},
		{"missing payer", func(r *models.PaymentRequest) { r.PayerID = " " }, ErrPayerRequired},
		{"negative amount", func(r *models.PaymentRequest) { r.Amount = -5 }, ErrInvalidAmount},
		{"unknown method", func(r *models.PaymentRequest) { r.Method = "CHEQUE" }, ErrInvalidMethod},
		{"missing transaction ref", func(r *models.PaymentRequest) { r.TransactionRef = "" }, ErrTransactionRefRequired},
		{"unknown order", func(r *models.PaymentRequest) { r.OrderID = "missing" }, ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := paymentRequest("o-1")
			tt.mutate(&req)
			if _, err := f.payments.ProcessPayment(context.Background(), req); !errors.Is(err, tt.wantErr) {
				t.Errorf("ProcessPayment() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest(180, ""))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	payment, err := f.payments.ProcessPayment(ctx, paymentRequest(order.ID))
	if err != nil {
		t.Fatalf("ProcessPayment() error = %v", err)
	}
	if payment.Status != models.PaymentSuccess {
		t.Errorf("Status = %s, want SUCCESS", payment.Status)
	}

	stored, err := f.payments.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment() error = %v", err)
	}
	if stored.Status != models.PaymentSuccess {
		t.Errorf("stored Status = %s, want SUCCESS", stored.Status)
	}

	_, err = f.payments.ProcessPayment(ctx, paymentRequest(order.ID))
	if !errors.Is(err, ErrPaymentAlreadyProcessed) {
		t.Errorf("second ProcessPayment() error = %v, want %v", err, ErrPaymentAlreadyProcessed)
	}

	byOrder, err := f.payments.ListByOrder(ctx, order.ID)
	if err != nil || len(byOrder) != 1 {
		t.Errorf("ListByOrder() = %d, %v, want 1 payment", len(byOrder), err)
	}
	byPayer, err := f.payments.ListByPayer(ctx, "cust-1")
	if err != nil || len(byPayer) != 1 {
		t.Errorf("ListByPayer() = %d, %v, want 1 payment", len(byPayer), err)
	}

	if _, err := f.payments.GetPayment(ctx, "missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("GetPayment(missing) error = %v, want %v", err, ErrPaymentNotFound)
	}
}

func TestPaymentService_ProcessPaymentCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest(100, ""))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusUpdate{Status: models.OrderCancelled}); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	_, err = f.payments.ProcessPayment(ctx, paymentRequest(order.ID))
	if !errors.Is(err, ErrOrderCancelled) {
		t.Errorf("ProcessPayment() error = %v, want %v", err, ErrOrderCancelled)
	}
	if models.KindOf(err) != models.KindIllegalState {
		t.Errorf("KindOf() = %v, want IllegalState", models.KindOf(err))
	}

	all, err := f.payments.ListPayments(ctx)
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("ListPayments() = %d, want 0", len(all))
	}
}

func TestPaymentService_ProcessPaymentConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest(100, ""))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.ProcessPayment(ctx, paymentRequest(order.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrPaymentAlreadyProcessed):
				conflicts++
			default:
				t.Errorf("ProcessPayment() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("successful payments = %d, want 1", succeeded)
	}
	if conflicts != callers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, callers-1)
	}

	attempts, err := f.payments.ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListByOrder() error = %v", err)
	}
	success := 0
	for _, p := range attempts {
		switch p.Status {
		case models.PaymentSuccess:
			success++
		case models.PaymentPending:
			t.Errorf("payment %s left PENDING", p.ID)
		}
	}
	if success != 1 {
		t.Errorf("SUCCESS records = %d, want 1", success)
	}
}
