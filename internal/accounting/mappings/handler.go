package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Handler exposes the active account mapping.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	errors    *httpx.ErrorMapper
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, errs *httpx.ErrorMapper) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, errors: errs, validator: validator.New()}
}

// MountRoutes registers mapping routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.active)
	r.Get("/{category}", h.resolve)
	r.Put("/{category}", h.set)
}

type resolveResponse struct {
	Category  Category  `json:"category"`
	AccountID uuid.UUID `json:"account_id"`
}

type setRequest struct {
	AccountID uuid.UUID `json:"account_id" validate:"required"`
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	mapping, err := h.service.Active(r.Context())
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	category := Category(chi.URLParam(r, "category"))
	id, err := h.service.Resolve(r.Context(), category)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolveResponse{Category: category, AccountID: id})
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category := Category(chi.URLParam(r, "category"))
	if err := h.service.SetMapping(r.Context(), category, req.AccountID); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("mapping updated", slog.String("category", string(category)), slog.String("account_id", req.AccountID.String()))
	httpx.JSON(w, http.StatusOK, resolveResponse{Category: category, AccountID: req.AccountID})
}
