// Package response writes the unified error envelope used by the HTTP API.
// Successful payloads are written as-is so the wire contract of each
// endpoint stays exactly what its handler returns.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/infra/middleware/requestid"
)

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	// Code is the business error code (AABBCCC)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// OK writes a 200 response with the given payload.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Fail writes an error response using Errno. Server-side errors are also
// attached to the context so the access log records their cause.
func Fail(c *gin.Context, e *errors.Errno) {
	if e == nil {
		e = errors.ErrInternal
	}
	if !errors.IsClientError(e.Code) {
		_ = c.Error(e)
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), ErrorResponse{
		Code:      e.Code,
		Message:   e.Message(lang(c)),
		RequestID: requestid.Get(c.Request.Context()),
	})
}

// FailWithError converts err to an Errno and writes it.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

func lang(c *gin.Context) string {
	if c.Request == nil {
		return ""
	}
	return c.GetHeader("Accept-Language")
}
