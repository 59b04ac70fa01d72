// Package handlers provides HTTP request handlers for the ragescanner API.
// This file contains the response helpers shared by every handler.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/ragescanner/internal/api/middleware"
	"github.com/anstrom/ragescanner/internal/errors"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 64 * 1024

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but don't try to write another response
		slog.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	var ie *errors.InternalError
	if stderrors.As(err, &ie) {
		response.Message = ie.Message
		response.Code = string(ie.Code)
		if len(ie.Context) > 0 {
			response.Details = ie.Context
		}
	}

	writeJSON(w, r, statusCode, response)
}

// statusFor maps an error to the HTTP status that reports it.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch errors.GetCode(err) {
	case errors.CodeInvalidRange, errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeScanInProgress:
		return http.StatusConflict
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	case errors.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.NewInternalError(errors.CodeValidation, "request body is required")
		}
		return errors.WrapInternalError(errors.CodeValidation, "invalid JSON body", err)
	}

	if err := validate.Struct(v); err != nil {
		return errors.NewInternalError(errors.CodeValidation, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "required_without", "required_with":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "ipv4":
			parts = append(parts, fmt.Sprintf("%s must be an IPv4 address", field))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
