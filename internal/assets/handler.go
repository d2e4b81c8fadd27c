package assets

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Handler exposes depreciation runs and asset disposal.
type Handler struct {
	service   *Service
	scheduler *Scheduler
	logger    *slog.Logger
	errors    *httpx.ErrorMapper
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, scheduler *Scheduler, errs *httpx.ErrorMapper) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, scheduler: scheduler, errors: errs, validator: validator.New()}
}

// MountRoutes registers asset routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/depreciation/runs", h.run)
	r.Get("/assets/{id}", h.get)
	r.Post("/assets/{id}/dispose", h.dispose)
}

type runRequest struct {
	AsOf      string    `json:"as_of" validate:"required,datetime=2006-01-02"`
	CreatedBy uuid.UUID `json:"created_by"`
}

type disposeRequest struct {
	At string `json:"at" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asOf, _ := time.Parse(time.DateOnly, req.AsOf)
	res, err := h.scheduler.CalculateMonthlyDepreciation(r.Context(), asOf, req.CreatedBy)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Contended {
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "asset id must be a uuid")
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "asset id must be a uuid")
		return
	}
	var req disposeRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.errors.Respond(w, r, err)
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	var at time.Time
	if req.At != "" {
		at, _ = time.Parse(time.DateOnly, req.At)
	}
	if err := h.service.DisposeAsset(r.Context(), id, at); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("asset disposed", slog.String("asset_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}
