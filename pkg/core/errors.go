// Package core provides the error type, retry machinery and parameter
// validation shared by the trip engine's tools, provider and server.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode is the stable, machine-readable part of an error. Tool results
// and REST responses carry the same codes.
type ErrorCode string

const (
	// Parameters
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrOutOfRange       ErrorCode = "OUT_OF_RANGE"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidRadius    ErrorCode = "INVALID_RADIUS"
	ErrRadiusTooLarge   ErrorCode = "RADIUS_TOO_LARGE"

	// Trips
	ErrInvalidTrip     ErrorCode = "INVALID_TRIP"
	ErrUnknownLocation ErrorCode = "UNKNOWN_LOCATION"
	ErrUnsupportedMode ErrorCode = "UNSUPPORTED_MODE"
	ErrNoAlternatives  ErrorCode = "NO_ALTERNATIVES"

	// Upstream services and access
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrNotFound           ErrorCode = "NOT_FOUND"

	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// httpStatusByCode is what REST clients see for each code. Codes missing
// here map to 500.
var httpStatusByCode = map[ErrorCode]int{
	ErrInvalidInput:       http.StatusBadRequest,
	ErrInvalidParameter:   http.StatusBadRequest,
	ErrEmptyParameter:     http.StatusBadRequest,
	ErrOutOfRange:         http.StatusBadRequest,
	ErrInvalidLatitude:    http.StatusBadRequest,
	ErrInvalidLongitude:   http.StatusBadRequest,
	ErrInvalidRadius:      http.StatusBadRequest,
	ErrRadiusTooLarge:     http.StatusBadRequest,
	ErrInvalidTrip:        http.StatusBadRequest,
	ErrUnsupportedMode:    http.StatusBadRequest,
	ErrUnknownLocation:    http.StatusNotFound,
	ErrNoAlternatives:     http.StatusNotFound,
	ErrNotFound:           http.StatusNotFound,
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrRateLimit:          http.StatusTooManyRequests,
	ErrServiceUnavailable: http.StatusServiceUnavailable,
	ErrServiceTimeout:     http.StatusServiceUnavailable,
	ErrNetworkError:       http.StatusServiceUnavailable,
}

// MCPError is the error document returned by tools and the REST API.
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
	// StatusCode is the upstream HTTP status for service errors.
	StatusCode int `json:"status,omitempty"`
}

func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{Code: string(code), Message: message}
}

// NewValidationError is NewError with the generic "fix your input" guidance.
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).WithGuidance("Please correct the parameters and try again.")
}

func (e *MCPError) WithQuery(query string) *MCPError {
	e.Query = query
	return e
}

func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// Is matches errors by code so callers can use errors.Is with NewError(code, "").
func (e *MCPError) Is(target error) bool {
	var t *MCPError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ToMCPResult wraps the JSON form of e in an error tool result.
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	body, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(string(body))
}

// HTTPStatus maps the error code to the status a REST client should see.
func (e *MCPError) HTTPStatus() int {
	if s, ok := httpStatusByCode[ErrorCode(e.Code)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type upstreamFailure struct {
	code     ErrorCode
	guidance string
}

var upstreamFailures = map[int]upstreamFailure{
	http.StatusTooManyRequests:     {ErrRateLimit, "The provider is rate limiting requests. Local estimates are used in the meantime."},
	http.StatusRequestTimeout:      {ErrServiceTimeout, "The provider timed out. Local estimates are used in the meantime."},
	http.StatusGatewayTimeout:      {ErrServiceTimeout, "The provider timed out. Local estimates are used in the meantime."},
	http.StatusUnauthorized:        {ErrUnauthorized, "Check the provider API key."},
	http.StatusForbidden:           {ErrUnauthorized, "Check the provider API key."},
	http.StatusNotFound:            {ErrNotFound, "The provider has no data for this request."},
	http.StatusBadRequest:          {ErrInvalidInput, "The provider rejected the request parameters."},
	http.StatusInternalServerError: {ErrInternalError, "The provider failed; this is usually temporary."},
}

// ServiceError describes a failed call to an upstream service by its HTTP
// status. Unlisted statuses count as the service being unavailable.
func ServiceError(service string, statusCode int, message string) *MCPError {
	f, ok := upstreamFailures[statusCode]
	if !ok {
		f = upstreamFailure{ErrServiceUnavailable, "The provider is unavailable. Local estimates are used in the meantime."}
	}
	err := NewError(f.code, fmt.Sprintf("%s service error: %s", service, message)).WithGuidance(f.guidance)
	err.StatusCode = statusCode
	return err
}
