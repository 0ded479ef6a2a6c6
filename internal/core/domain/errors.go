package domain

import "fmt"

// Error types surfaced in the OpenAI-style error envelope.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAuth           = "auth_error"
	ErrTypeAccessDenied   = "access_denied"
	ErrTypePermission     = "permission_error"
	ErrTypeNotFound       = "not_found"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeUpstream       = "upstream_error"
	ErrTypeStream         = "stream_error"
	ErrTypeServer         = "server_error"
)

// GatewayError carries the HTTP status, the taxonomy type and a short
// human message through the pipeline to the error envelope writer.
type GatewayError struct {
	Status  int
	Type    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func NewGatewayError(status int, errType, message string) *GatewayError {
	return &GatewayError{Status: status, Type: errType, Message: message}
}

func NewInvalidRequestError(message string) *GatewayError {
	return NewGatewayError(400, ErrTypeInvalidRequest, message)
}

func NewAuthError(message string) *GatewayError {
	return NewGatewayError(401, ErrTypeAuth, message)
}

func NewAccessDeniedError(message string) *GatewayError {
	return NewGatewayError(403, ErrTypeAccessDenied, message)
}

func NewPermissionError(message string) *GatewayError {
	return NewGatewayError(403, ErrTypePermission, message)
}

func NewNotFoundError(message string) *GatewayError {
	return NewGatewayError(404, ErrTypeNotFound, message)
}

func NewRateLimitError(message string) *GatewayError {
	return NewGatewayError(429, ErrTypeRateLimit, message)
}

func NewUpstreamError(status int, message string) *GatewayError {
	return NewGatewayError(status, ErrTypeUpstream, message)
}

func NewServerError(message string) *GatewayError {
	return NewGatewayError(500, ErrTypeServer, message)
}

// NewNoBackendsError reports an empty pool at resolve time.
func NewNoBackendsError() *GatewayError {
	return NewGatewayError(503, ErrTypeUpstream, "no backends available")
}
