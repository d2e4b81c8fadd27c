package integration

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

// Event names accepted by the webhook endpoint.
const (
	EventSalesInvoicePosted    = "sales-invoice-posted"
	EventReceiptPosted         = "receipt-posted"
	EventSupplierInvoicePosted = "supplier-invoice-posted"
	EventPaymentPosted         = "payment-posted"
)

// Handler accepts document events from operational systems.
type Handler struct {
	hooks     *Hooks
	logger    *slog.Logger
	errors    *httpx.ErrorMapper
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, hooks *Hooks, errs *httpx.ErrorMapper) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hooks: hooks, logger: logger, errors: errs, validator: validator.New()}
}

// MountRoutes registers POST /{event}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{event}", h.receive)
}

func decodeAndPost[E any](h *Handler, r *http.Request, post func(context.Context, E) (journals.PostResult, error)) (journals.PostResult, error) {
	var evt E
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		return journals.PostResult{}, err
	}
	if err := h.validator.Struct(evt); err != nil {
		return journals.PostResult{}, errors.Join(httpx.ErrValidation, err)
	}
	return post(r.Context(), evt)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")
	var (
		res journals.PostResult
		err error
	)
	switch event {
	case EventSalesInvoicePosted:
		res, err = decodeAndPost(h, r, h.hooks.HandleSalesInvoicePosted)
	case EventReceiptPosted:
		res, err = decodeAndPost(h, r, h.hooks.HandleReceiptPosted)
	case EventSupplierInvoicePosted:
		res, err = decodeAndPost(h, r, h.hooks.HandleSupplierInvoicePosted)
	case EventPaymentPosted:
		res, err = decodeAndPost(h, r, h.hooks.HandlePaymentPosted)
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown event "+event)
		return
	}
	if err != nil {
		var lpe *LedgerPostError
		if errors.As(err, &lpe) {
			h.logger.Warn("ledger posting pending", slog.String("event", event),
				slog.Bool("retryable", lpe.Retryable), slog.Any("error", lpe.Err))
		}
		h.errors.Respond(w, r, err)
		return
	}
	switch {
	case res.JournalEntryID == uuid.Nil:
		w.WriteHeader(http.StatusNoContent)
	case res.AlreadyExisted:
		httpx.JSON(w, http.StatusOK, res)
	default:
		httpx.JSON(w, http.StatusCreated, res)
	}
}
