// Package common holds process-wide helpers shared by the API and the runtime.
package common

import (
	"fmt"
	"net/http"
)

// Machine readable codes carried in error responses.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeNoRoute       = "NO_ROUTE"
	CodeUpstream      = "UPSTREAM_ERROR"
	CodeInternalError = "INTERNAL_SERVER_ERROR"
)

// HttpError is an error that already knows its HTTP status.
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func newHttpError(status int, code, msg, fallback string) *HttpError {
	if msg == "" {
		msg = fallback
	}
	return &HttpError{StatusCode: status, Code: code, Message: msg}
}

func HTTPErrorBadRequest(msg string) *HttpError {
	return newHttpError(http.StatusBadRequest, CodeBadRequest, msg, "Bad request")
}

// HTTPErrorNoRoute reports that no combination of fills covers the requested amount.
func HTTPErrorNoRoute(msg string) *HttpError {
	return newHttpError(http.StatusNotFound, CodeNoRoute, msg, "No route")
}

// HTTPErrorUpstream reports a failed call to the chain node or sampler contract.
func HTTPErrorUpstream(msg string) *HttpError {
	return newHttpError(http.StatusBadGateway, CodeUpstream, msg, "Upstream error")
}

func HTTPErrorInternalError(msg string) *HttpError {
	return newHttpError(http.StatusInternalServerError, CodeInternalError, msg, "Internal server error")
}
