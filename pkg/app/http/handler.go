// Package http provides chi-compatible error handling, JSON responses and the
// shared server lifecycle of the relayer's HTTP surface.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/glitch-bridge/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failures by returning them
type HandlerFunc func(http.ResponseWriter, *http.Request) error

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// HandleError adapts an error-returning handler to http.HandlerFunc:
//
//	r.Get("/deposits/{sourceTxHash}", http.HandleError(h.getDeposit))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler writes err as a JSON error body. Only the message of a
// ServiceError reaches the client.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		_ = WriteJSON(w, svcErr.StatusCode(), &errorResponse{Error: svcErr.Message, Code: svcErr.StatusCode()})
		return
	}

	_ = WriteJSON(w, http.StatusInternalServerError, &errorResponse{
		Error: "Unexpected Service Error",
		Code:  http.StatusInternalServerError,
	})
}

// WriteJSON writes data with the given status
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
