package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finwise/internal/core"
	"finwise/internal/importer"
	applog "finwise/internal/log"
	"finwise/internal/services"
	"finwise/internal/store"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: msg, Type: errorType(status)}})
}

// writeServiceError maps a service error to its status code. Unexpected
// errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		ctx := r.Context()
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Request failed", err, applog.ComponentHTTP, r.Method+" "+r.URL.Path, nil)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNotANumber),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrKindMismatch),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrDescriptionLong),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrInvalidPolicy),
		errors.Is(err, core.ErrInvalidChoice),
		errors.Is(err, core.ErrInvalidTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateCategory),
		errors.Is(err, services.ErrCategoryInUse),
		errors.Is(err, services.ErrCorrectionCategoryKind),
		errors.Is(err, core.ErrChoiceRequired):
		return http.StatusConflict
	case errors.Is(err, importer.ErrHeaderMismatch):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrImportTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnprocessableEntity:
		return "validation_error"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}
