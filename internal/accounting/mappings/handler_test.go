package mappings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

func TestHandlerResolveAndSet(t *testing.T) {
	lookup := stubAccounts{}
	cash := lookup.add("1.1.1", accounts.TypeAsset, false)
	bank := lookup.add("1.1.2", accounts.TypeAsset, false)
	svc := NewService(&memoryRepo{}, lookup)
	_, err := svc.Activate(context.Background(), map[Category]uuid.UUID{CategoryCash: cash.ID}, uuid.Nil)
	require.NoError(t, err)

	errs := httpx.NewErrorMapper(nil, httpx.ErrorRule{Target: shared.ErrUnmappedCategory, Status: http.StatusUnprocessableEntity, Title: "Unmapped Category"})
	r := chi.NewRouter()
	r.Route("/mappings", NewHandler(nil, svc, errs).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mappings/cash", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), cash.ID.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mappings/storage", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := strings.NewReader(`{"account_id":"` + bank.ID.String() + `"}`)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/mappings/cash", body))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := svc.Resolve(context.Background(), CategoryCash)
	require.NoError(t, err)
	require.Equal(t, bank.ID, got)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/mappings/cash", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
