package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lixing-Zhang/service-marketplace/internal/middleware"
	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/service"
)

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *service.OrderService
	log          *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		log:          log,
	}
}

// CreateOrder handles POST /api/v1/orders.
// The customer defaults to the calling actor.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	if req.CustomerID == "" {
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			req.CustomerID = actor.ID
		}
	}

	order, err := h.orderService.CreateOrder(r.Context(), req)
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	WriteJSON(w, http.StatusCreated, order, h.log)
	h.log.InfoContext(r.Context(), "order created",
		"order_id", order.ID,
		"voucher_id", order.VoucherID,
		"final_price", order.FinalPrice,
	)
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListOrders(r.Context())
	h.writeList(w, r, orders, err)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	WriteJSON(w, http.StatusOK, order, h.log)
}

// ListByCustomer handles GET /api/v1/orders/customer/{customerId}
func (h *OrderHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByCustomer(r.Context(), chi.URLParam(r, "customerId"))
	h.writeList(w, r, orders, err)
}

// ListByMechanic handles GET /api/v1/orders/mechanic/{mechanicId}
func (h *OrderHandler) ListByMechanic(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByMechanic(r.Context(), chi.URLParam(r, "mechanicId"))
	h.writeList(w, r, orders, err)
}

// ListByStaff handles GET /api/v1/orders/staff/{staffId}
func (h *OrderHandler) ListByStaff(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByStaff(r.Context(), chi.URLParam(r, "staffId"))
	h.writeList(w, r, orders, err)
}

// UpdateStatus handles PATCH /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var update models.OrderStatusUpdate
	if err := decodeJSON(r, &update); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	id := chi.URLParam(r, "id")
	order, err := h.orderService.UpdateStatus(r.Context(), id, update)
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	WriteJSON(w, http.StatusOK, order, h.log)
	h.log.InfoContext(r.Context(), "order status updated", "order_id", id, "status", order.Status)
}

func (h *OrderHandler) writeList(w http.ResponseWriter, r *http.Request, orders []models.Order, err error) {
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	WriteJSON(w, http.StatusOK, orders, h.log)
}
