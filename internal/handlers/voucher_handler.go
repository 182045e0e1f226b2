package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lixing-Zhang/service-marketplace/internal/middleware"
	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/voucher"
)

// VoucherHandler handles voucher administration and validation requests
type VoucherHandler struct {
	ledger *voucher.Ledger
	log    *slog.Logger
}

// NewVoucherHandler creates a new VoucherHandler
func NewVoucherHandler(ledger *voucher.Ledger, log *slog.Logger) *VoucherHandler {
	return &VoucherHandler{
		ledger: ledger,
		log:    log,
	}
}

// CreateVoucher handles POST /api/v1/vouchers
func (h *VoucherHandler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.VoucherRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	v, err := h.ledger.Create(r.Context(), req, actor.ID)
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	WriteJSON(w, http.StatusCreated, v, h.log)
	h.log.InfoContext(r.Context(), "voucher created", "voucher_id", v.ID, "code", v.Code)
}

// ListVouchers handles GET /api/v1/vouchers
func (h *VoucherHandler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.ledger.List(r.Context())
	h.writeList(w, r, vouchers, err)
}

// ListAvailable handles GET /api/v1/vouchers/available
func (h *VoucherHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.ledger.ListAvailable(r.Context())
	h.writeList(w, r, vouchers, err)
}

// ValidateVoucher handles POST /api/v1/vouchers/validate.
// An unusable voucher is a 200 with valid=false; only malformed input is an error.
func (h *VoucherHandler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateVoucherRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	result, err := h.ledger.Validate(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	WriteJSON(w, http.StatusOK, result, h.log)
}

// GetVoucher handles GET /api/v1/vouchers/{id}
func (h *VoucherHandler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	h.writeOne(w, r, v, err)
}

// UpdateVoucher handles PUT /api/v1/vouchers/{id}
func (h *VoucherHandler) UpdateVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.VoucherUpdate
	if err := decodeJSON(r, &req); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}

	v, err := h.ledger.Update(r.Context(), chi.URLParam(r, "id"), req)
	h.writeOne(w, r, v, err)
}

// ActivateVoucher handles PATCH /api/v1/vouchers/{id}/activate
func (h *VoucherHandler) ActivateVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.ledger.SetActive(r.Context(), chi.URLParam(r, "id"), true)
	h.writeOne(w, r, v, err)
}

// DeactivateVoucher handles PATCH /api/v1/vouchers/{id}/deactivate
func (h *VoucherHandler) DeactivateVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.ledger.SetActive(r.Context(), chi.URLParam(r, "id"), false)
	h.writeOne(w, r, v, err)
}

// DeleteVoucher handles DELETE /api/v1/vouchers/{id}
func (h *VoucherHandler) DeleteVoucher(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ledger.Delete(r.Context(), id); err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.log.InfoContext(r.Context(), "voucher deleted", "voucher_id", id)
}

func (h *VoucherHandler) writeOne(w http.ResponseWriter, r *http.Request, v *models.Voucher, err error) {
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	WriteJSON(w, http.StatusOK, v, h.log)
}

func (h *VoucherHandler) writeList(w http.ResponseWriter, r *http.Request, vouchers []models.Voucher, err error) {
	if err != nil {
		WriteDomainError(w, r, err, h.log)
		return
	}
	if vouchers == nil {
		vouchers = []models.Voucher{}
	}
	WriteJSON(w, http.StatusOK, vouchers, h.log)
}
