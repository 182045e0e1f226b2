package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lixing-Zhang/service-marketplace/internal/middleware"
	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/service"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService *service.PaymentService
	log            *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *service.PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		log:            log,
	}
}

// CreatePayment handles POST /api/v1/payments.
// The payer defaults to the calling actor.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	if req.PayerID == "" {
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			req.PayerID = actor.ID
		}
	}

	payment, err := h.paymentService.ProcessPayment(r.Context(), req)
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	WriteJSON(w, http.StatusCreated, payment, h.log)
	h.log.InfoContext(r.Context(), "payment processed", "payment_id", payment.ID, "order_id", payment.OrderID)
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.paymentService.ListPayments(r.Context())
	h.writeList(w, r, payments, err)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.paymentService.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	WriteJSON(w, http.StatusOK, payment, h.log)
}

// ListByPayer handles GET /api/v1/payments/payer/{payerId}
func (h *PaymentHandler) ListByPayer(w http.ResponseWriter, r *http.Request) {
	payments, err := h.paymentService.ListByPayer(r.Context(), chi.URLParam(r, "payerId"))
	h.writeList(w, r, payments, err)
}

// ListByOrder handles GET /api/v1/payments/order/{orderId}
func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	payments, err := h.paymentService.ListByOrder(r.Context(), chi.URLParam(r, "orderId"))
	h.writeList(w, r, payments, err)
}

func (h *PaymentHandler) writeList(w http.ResponseWriter, r *http.Request, payments []models.Payment, err error) {
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	WriteJSON(w, http.StatusOK, payments, h.log)
}
