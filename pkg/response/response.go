package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the error payload shared by every handler and middleware.
type ErrorBody struct {
	Error string `json:"error"`
}

// AppError represents a structured application error with the HTTP status to answer with.
type AppError struct {
	HTTPStatus int    // HTTP status code (e.g. 400, 404, 500)
	Message    string // Message returned to the caller
	Cause      error  // Underlying error, never sent to the caller
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewServerError wraps cause behind a message that is safe to expose.
func NewServerError(msg string, cause error) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Message: msg, Cause: cause}
}

// --- Gin response helpers ---

// Error sends an error response. If err is an *AppError, its status and
// message are used; otherwise a generic 500 is returned without the cause.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{Error: appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: http.StatusText(http.StatusInternalServerError)})
}

// Abort writes the error body and stops the handler chain.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: msg})
}
