package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// maxBodyBytes caps request bodies. Transaction ingests are the largest.
const maxBodyBytes = 8 << 20

// Base provides shared functionality for all handlers.
type Base struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{repo: repo, logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps a domain error to its HTTP status.
// Unknown errors are logged and reported as 500 without detail.
func (b *Base) WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, transfer.ErrValidation):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case errors.Is(err, transfer.ErrNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	case errors.Is(err, transfer.ErrConflict):
		b.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	default:
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// DecodeJSON reads a JSON body into v. Unknown fields are rejected.
// An empty body leaves v untouched when allowEmpty is set.
func (b *Base) DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseLimitParam parses "limit", falling back to defaultVal when it is
// missing or not positive, and capping it at dto.MaxListLimit.
func ParseLimitParam(r *http.Request, defaultVal int) int {
	limit := ParseIntParam(r, "limit", defaultVal)
	if limit <= 0 {
		return defaultVal
	}
	return min(limit, dto.MaxListLimit)
}

// ParseBoolParam parses a boolean query parameter with a default value.
func ParseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// ParseListParam splits a comma-separated query parameter.
func ParseListParam(r *http.Request, name string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(name), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseDate parses a YYYY-MM-DD value. Empty values are zero.
func ParseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := transfer.ParseDay(value)
	if err != nil {
		return time.Time{}, transfer.NewValidationError(field, fmt.Sprintf("must be a YYYY-MM-DD date, got %q", value))
	}
	return day, nil
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(transfer.DateLayout)
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
