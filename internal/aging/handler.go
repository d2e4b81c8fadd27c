package aging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Handler serves aging reports.
type Handler struct {
	service *Service
	logger  *slog.Logger
	errors  *httpx.ErrorMapper
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, errs *httpx.ErrorMapper) *Handler {
	return &Handler{logger: logger, service: service, errors: errs}
}

// MountRoutes registers GET /{book}/aging.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{book}/aging", h.report)
}

type reportResponse struct {
	Book  allocation.Book `json:"book"`
	AsOf  string          `json:"as_of"`
	Rows  []Row           `json:"rows"`
	Total string          `json:"total"`
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	spec, ok := allocation.SpecFor(allocation.Book(chi.URLParam(r, "book")))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown book")
		return
	}
	q := r.URL.Query()
	asOf := time.Now().UTC()
	if v := q.Get("as_of"); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	var party *uuid.UUID
	if v := q.Get("party_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "party_id must be a uuid")
			return
		}
		party = &id
	}
	rows, err := h.service.Report(r.Context(), spec, asOf, party)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if rows == nil {
		rows = []Row{}
	}
	httpx.JSON(w, http.StatusOK, reportResponse{
		Book:  spec.Book,
		AsOf:  asOf.Format(time.DateOnly),
		Rows:  rows,
		Total: Total(rows).StringFixed(2),
	})
}
