package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var errOverdrawn = errors.New("overdrawn")

func TestErrorMapperUsesCustomRulesFirst(t *testing.T) {
	m := NewErrorMapper(nil, ErrorRule{Target: errOverdrawn, Status: http.StatusUnprocessableEntity, Title: "Overdrawn"})
	rec := httptest.NewRecorder()
	m.Respond(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("allocate: %w", errOverdrawn))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Overdrawn", body.Title)
	require.Contains(t, body.Detail, "overdrawn")
}

func TestErrorMapperFallsBackToInternal(t *testing.T) {
	m := NewErrorMapper(nil)
	rec := httptest.NewRecorder()
	m.Respond(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("db down"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Amount string `json:"amount"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","extra":true}`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}
