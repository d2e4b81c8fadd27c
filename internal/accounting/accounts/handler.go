package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Handler exposes the chart of accounts over JSON.
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

// MountRoutes registers chart routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{ref}", h.get)
	r.Get("/{ref}/children", h.children)
	r.Post("/{ref}/deactivate", h.deactivate)
}

type createRequest struct {
	ParentCode string `json:"parent_code"`
	Code       string `json:"code" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Type       Type   `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	Nature     Nature `json:"nature" validate:"omitempty,oneof=debit credit"`
	Level      int    `json:"level" validate:"gte=0"`
	IsGroup    bool   `json:"is_group"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateAccount(r.Context(), req.ParentCode, CreateInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     req.Type,
		Nature:   req.Nature,
		Level:    req.Level,
		IsGroup:  req.IsGroup,
		Currency: req.Currency,
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("account created", slog.String("code", account.Code), slog.String("id", account.ID.String()))
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) children(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	children, err := h.service.ListChildren(r.Context(), account.ID)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, children)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be a uuid")
		return
	}
	if err := h.service.DeactivateAccount(r.Context(), id); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
