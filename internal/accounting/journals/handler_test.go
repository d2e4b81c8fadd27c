package journals

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

func newTestRouter(f fixture) http.Handler {
	errs := httpx.NewErrorMapper(nil,
		httpx.ErrorRule{Target: shared.ErrJournalNotFound, Status: http.StatusNotFound, Title: "Not Found"},
		httpx.ErrorRule{Target: shared.ErrUnbalancedEntry, Status: http.StatusUnprocessableEntity, Title: "Unbalanced Entry"},
		httpx.ErrorRule{Target: shared.ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid Status"},
	)
	h := NewHandler(nil, f.svc, errs)
	r := chi.NewRouter()
	r.Route("/v1/journals", h.MountRoutes)
	return r
}

func postBody(t *testing.T, f fixture, docID uuid.UUID, debit, credit string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"document_type": DocumentSalesInvoice,
		"document_id":   docID,
		"date":          "2024-03-15",
		"reference":     "INV-001",
		"lines": []map[string]any{
			{"account_id": f.ar, "debit": debit, "voucher_no": "INV-001"},
			{"account_id": f.revenue, "credit": credit, "voucher_no": "INV-001"},
		},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestHandlerPostIsIdempotent(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	docID := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/", postBody(t, f, docID, "640.00", "640.00")))
	require.Equal(t, http.StatusCreated, rec.Code)
	var first PostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	require.False(t, first.AlreadyExisted)
	require.Equal(t, "JE-000001", first.EntryNumber)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/", postBody(t, f, docID, "640.00", "640.00")))
	require.Equal(t, http.StatusOK, rec.Code)
	var second PostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	require.True(t, second.AlreadyExisted)
	require.Equal(t, first.JournalEntryID, second.JournalEntryID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/journals/"+first.JournalEntryID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entry JournalEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))
	require.Len(t, entry.Lines, 2)
	require.Equal(t, "640.00", entry.TotalDebit.StringFixed(2))
}

func TestHandlerPostRejectsUnbalancedAndMalformed(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/", postBody(t, f, uuid.New(), "100.00", "99.99")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, "Unbalanced Entry", problem["title"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/", bytes.NewBufferString(`{"document_type":"sales_invoice"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/journals/?from=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/journals/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, f.repo.state.entries)
}

func TestHandlerReverse(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/", postBody(t, f, uuid.New(), "210.00", "210.00")))
	require.Equal(t, http.StatusCreated, rec.Code)
	var posted PostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&posted))

	reverseURL := "/v1/journals/" + posted.JournalEntryID.String() + "/reverse"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reverseURL, bytes.NewBufferString(`{"reason":"wrong customer"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var rev ReverseResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rev))
	require.False(t, rev.AlreadyExisted)
	require.True(t, f.repo.balance(f.ar).IsZero())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reverseURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var again ReverseResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&again))
	require.True(t, again.AlreadyExisted)
	require.Equal(t, rev.ReversalEntryID, again.ReversalEntryID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/"+rev.ReversalEntryID.String()+"/reverse", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journals/nope/reverse", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
