// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// ErrorRule maps errors matching Target (via errors.Is) onto a problem response.
type ErrorRule struct {
	Target error
	Status int
	Title  string
}

// ErrorMapper turns errors into RFC7807 responses.
type ErrorMapper struct {
	logger *slog.Logger
	rules  []ErrorRule
}

// NewErrorMapper returns a mapper that checks rules in order before the
// built-in sentinels.
func NewErrorMapper(logger *slog.Logger, rules ...ErrorRule) *ErrorMapper {
	if logger == nil {
		logger = slog.Default()
	}
	base := []ErrorRule{
		{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
		{Target: ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
		{Target: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	}
	return &ErrorMapper{logger: logger, rules: append(append([]ErrorRule{}, rules...), base...)}
}

// Respond writes the problem response for err.
func (m *ErrorMapper) Respond(w http.ResponseWriter, r *http.Request, err error) {
	for _, rule := range m.rules {
		if errors.Is(err, rule.Target) {
			Problem(w, rule.Status, rule.Title, err.Error())
			return
		}
	}
	m.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
