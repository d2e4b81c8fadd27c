package allocation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Handler exposes allocation for one book.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	errors    *httpx.ErrorMapper
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, errs *httpx.ErrorMapper) *Handler {
	return &Handler{logger: logger, service: service, errors: errs, validator: validator.New()}
}

// MountRoutes registers allocation routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.allocate)
	r.Delete("/{id}", h.deallocate)
	r.Get("/invoices/{id}", h.invoice)
}

type allocateRequest struct {
	VoucherID uuid.UUID       `json:"voucher_id" validate:"required"`
	InvoiceID uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedBy uuid.UUID       `json:"created_by"`
}

type invoiceResponse struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Allocations []Allocation    `json:"allocations"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.Allocate(r.Context(), req.VoucherID, req.InvoiceID, req.Amount, req.CreatedBy)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (h *Handler) deallocate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "allocation id must be a uuid")
		return
	}
	if err := h.service.Deallocate(r.Context(), id); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id must be a uuid")
		return
	}
	outstanding, err := h.service.Outstanding(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	allocations, err := h.service.ListByInvoice(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{InvoiceID: id, Outstanding: outstanding, Allocations: allocations})
}
