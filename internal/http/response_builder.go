// Package http provides HTTP server and handler implementations.
//
// This file implements the builder used for every JSON response and the
// mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgetboard/internal/crossfilter"
	"budgetboard/internal/dashboard"
	"budgetboard/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, `{"error":{"code":"internal","message":"encoding failed"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Dimension string `json:"dimension,omitempty"`
}

// Error codes returned in ErrorDetail.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeInvalidFilter    = "invalid_filter"
	CodeNotFound         = "not_found"
	CodeUnknownDimension = "unknown_dimension"
	CodeNotReady         = "not_ready"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// ErrorFor maps a service error to its response: invalid filters are 422,
// unknown sessions and dimensions 404, a missing dataset 503.
func ErrorFor(err error) *JSONResponseBuilder {
	var ife *crossfilter.InvalidFilterError
	switch {
	case errors.As(err, &ife):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Body(ErrorBody{Error: ErrorDetail{Code: CodeInvalidFilter, Message: ife.Reason, Dimension: ife.Dimension}})
	case errors.Is(err, crossfilter.ErrInvalidFilter):
		return ErrorResponse(http.StatusUnprocessableEntity, CodeInvalidFilter, err.Error())
	case errors.Is(err, dashboard.ErrUnknownDimension):
		return ErrorResponse(http.StatusNotFound, CodeUnknownDimension, err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		return NotFoundError("session not found")
	case errors.Is(err, services.ErrDatasetNotLoaded):
		return ErrorResponse(http.StatusServiceUnavailable, CodeNotReady, err.Error()).Header("Retry-After", "5")
	default:
		return InternalServerError("internal error")
	}
}
