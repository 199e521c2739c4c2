package anthropicadapter

import "net/http"

// ErrorType is the closed set of error kinds surfaced on the wire.
type ErrorType string

const (
	// ErrorTypeAuthentication covers a missing, malformed, or unknown
	// inbound API key. Always a 401.
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeProxy covers everything else: backend-reported failures
	// (carrying the backend's status) and faults inside the proxy itself.
	ErrorTypeProxy ErrorType = "proxy_error"
)

// Error is the inner error object of the wire shape {"error": {...}}.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface, returning the error message.
func (e *Error) Error() string {
	return e.Message
}

// ErrorResponse wraps Error in the envelope clients expect. It implements
// the error interface so adapters can return it directly while handlers
// recover the full wire structure with errors.As.
type ErrorResponse struct {
	// Err is the underlying error detail. JSON tag ensures it serializes as "error".
	Err *Error `json:"error"`

	// Status is the HTTP status to respond with. Zero means "derive from
	// the error type"; backend errors set it to pass the backend's own
	// status through.
	Status int `json:"-"`
}

// Error implements the error interface, returning the underlying error message.
func (e *ErrorResponse) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Message
}

// HTTPStatus resolves the status code to respond with.
func (e *ErrorResponse) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Err.Type {
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// NewAuthenticationError builds a 401 authentication_error response.
func NewAuthenticationError(message string) *ErrorResponse {
	return &ErrorResponse{
		Err: &Error{Type: ErrorTypeAuthentication, Message: message},
	}
}

// NewProxyError builds a proxy_error response. status may be zero for
// internal faults (rendered as 500); backend errors pass their status here.
func NewProxyError(status int, message string) *ErrorResponse {
	return &ErrorResponse{
		Err:    &Error{Type: ErrorTypeProxy, Message: message},
		Status: status,
	}
}
