package journals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Handler exposes journal posting over JSON.
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

// MountRoutes registers journal routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.post)
	r.Get("/{id}", h.get)
	r.Post("/{id}/reverse", h.reverse)
}

type lineRequest struct {
	AccountID    uuid.UUID       `json:"account_id" validate:"required"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Description  string          `json:"description"`
	VoucherType  string          `json:"voucher_type"`
	VoucherNo    string          `json:"voucher_no"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

type postRequest struct {
	DocumentType DocumentType  `json:"document_type" validate:"required"`
	DocumentID   uuid.UUID     `json:"document_id" validate:"required"`
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description  string        `json:"description"`
	Reference    string        `json:"reference"`
	CreatedBy    uuid.UUID     `json:"created_by"`
	Lines        []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Reason    string    `json:"reason"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{DocumentType: DocumentType(q.Get("document_type")), Status: Status(q.Get("status"))}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.DateOnly, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.DateOnly, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = &to
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a number")
			return
		}
		filter.Limit = limit
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	in := PostingInput{
		DocumentType: req.DocumentType,
		DocumentID:   req.DocumentID,
		Date:         date,
		Description:  req.Description,
		Reference:    req.Reference,
		CreatedBy:    req.CreatedBy,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, PostingLine(l))
	}
	res, err := h.service.PostDocument(r.Context(), in)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyExisted {
		status = http.StatusOK
	}
	httpx.JSON(w, status, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be a uuid")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be a uuid")
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.errors.Respond(w, r, err)
			return
		}
	}
	res, err := h.service.ReverseEntry(r.Context(), id, req.Reason, req.CreatedBy)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if !res.AlreadyExisted {
		h.logger.Info("journal reversed", slog.String("entry_id", id.String()), slog.String("reversal", res.EntryNumber))
	}
	httpx.JSON(w, http.StatusOK, res)
}
