package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lixing-Zhang/service-marketplace/internal/config"
	"github.com/Lixing-Zhang/service-marketplace/internal/middleware"
)

// API groups the handlers mounted under /api/v1.
type API struct {
	Orders   *OrderHandler
	Payments *PaymentHandler
	Vouchers *VoucherHandler
}

// Routes builds the /api/v1 sub-router. Every route requires an API key and
// actor headers; idempotency, when non-nil, wraps all of them.
func (a *API) Routes(auth config.AuthConfig, idempotency func(http.Handler) http.Handler) chi.Router {
	backOffice := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff)

	r := chi.NewRouter()
	r.Use(middleware.APIKeyAuth(auth))
	r.Use(middleware.ActorIdentity)
	if idempotency != nil {
		r.Use(idempotency)
	}

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", a.Orders.CreateOrder)
		r.With(backOffice).Get("/", a.Orders.ListOrders)
		r.Get("/customer/{customerId}", a.Orders.ListByCustomer)
		r.Get("/mechanic/{mechanicId}", a.Orders.ListByMechanic)
		r.Get("/staff/{staffId}", a.Orders.ListByStaff)
		r.Get("/{id}", a.Orders.GetOrder)
		r.With(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff, middleware.RoleMechanic)).
			Patch("/{id}/status", a.Orders.UpdateStatus)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", a.Payments.CreatePayment)
		r.With(backOffice).Get("/", a.Payments.ListPayments)
		r.Get("/payer/{payerId}", a.Payments.ListByPayer)
		r.Get("/order/{orderId}", a.Payments.ListByOrder)
		r.Get("/{id}", a.Payments.GetPayment)
	})

	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/", a.Vouchers.ListVouchers)
		r.Get("/available", a.Vouchers.ListAvailable)
		r.Post("/validate", a.Vouchers.ValidateVoucher)
		r.Get("/{id}", a.Vouchers.GetVoucher)
		r.With(backOffice).Post("/", a.Vouchers.CreateVoucher)
		r.With(backOffice).Put("/{id}", a.Vouchers.UpdateVoucher)
		r.With(backOffice).Patch("/{id}/activate", a.Vouchers.ActivateVoucher)
		r.With(backOffice).Patch("/{id}/deactivate", a.Vouchers.DeactivateVoucher)
		r.With(middleware.RequireRole(middleware.RoleAdmin)).Delete("/{id}", a.Vouchers.DeleteVoucher)
	})

	return r
}
