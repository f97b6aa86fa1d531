package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/fieldtrack/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound            = "NOT_FOUND"
	ErrBadRequest          = "BAD_REQUEST"
	ErrInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrValidation          = "VALIDATION_ERROR"
	ErrConflict            = "CONFLICT"
	ErrConfiguration       = "CONFIGURATION_ERROR"
	ErrUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Details   map[string]interface{} `json:"details,omitempty"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
}

type severity int

const (
	clientError severity = iota
	serverError
)

// write logs the failure on the request logger and sends the JSON body.
// Server errors keep err in the log only.
func write(c *gin.Context, status int, code, message string, details map[string]interface{}, level severity, err error) {
	requestID := middleware.GetRequestID(c)

	if log := middleware.GetLogger(c); log != nil {
		fields := map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
			"path":       c.Request.URL.Path,
		}
		if details != nil {
			fields["details"] = details
		}
		if level == serverError {
			fields["method"] = c.Request.Method
			log.Error("Request failed", err, fields)
		} else {
			log.Warn("Request rejected", fields)
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	write(c, http.StatusNotFound, ErrNotFound, message, nil, clientError, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	write(c, http.StatusBadRequest, ErrBadRequest, message, details, clientError, nil)
}

// Conflict returns a 409 Conflict response for operations the session's
// current state does not allow.
func Conflict(c *gin.Context, message string, details map[string]interface{}) {
	write(c, http.StatusConflict, ErrConflict, message, details, clientError, nil)
}

// UnprocessableEntity returns a 422 response for a category configuration
// that is well-formed JSON but contradicts itself.
func UnprocessableEntity(c *gin.Context, message string, details map[string]interface{}) {
	write(c, http.StatusUnprocessableEntity, ErrConfiguration, message, details, clientError, nil)
}

// ServiceUnavailable returns a 503 response when the record source failed
// part way through. processed and expected tell the client how far the
// retrieval got; expected is negative when the source could not be counted.
func ServiceUnavailable(c *gin.Context, message string, processed, expected int, err error) {
	details := map[string]interface{}{"processed": processed}
	if expected >= 0 {
		details["expected"] = expected
	}
	write(c, http.StatusServiceUnavailable, ErrUpstreamUnavailable, message, details, serverError, err)
}

// InternalServerError returns a 500 Internal Server Error response.
// The underlying error is logged but never sent to the client.
func InternalServerError(c *gin.Context, message string, err error) {
	write(c, http.StatusInternalServerError, ErrInternalServer, message, nil, serverError, err)
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{}, len(validationErrors))
	for _, fe := range validationErrors {
		details[fe.Field()] = formatValidationError(fe)
	}
	write(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details, clientError, nil)
}

// BindingError answers a failed ShouldBind call: field errors become a
// VALIDATION_ERROR and anything else (malformed JSON, wrong types) a plain
// BAD_REQUEST with message.
func BindingError(c *gin.Context, message string, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		ValidationError(c, validationErrors)
		return
	}
	BadRequest(c, message, map[string]interface{}{"reason": err.Error()})
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short or small (minimum: " + fe.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + fe.Param() + ")"
	case "gt":
		return "Must be greater than " + fe.Param()
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "uuid":
		return "Must be a valid UUID"
	case "datetime":
		return "Must be a date in the format " + fe.Param()
	case "required_without":
		return "Required when " + fe.Param() + " is not set"
	case "dive":
		return "Contains an invalid entry"
	default:
		return "Validation failed for tag: " + fe.Tag()
	}
}
