// Package requestid propagates a per-request identifier through the gin
// context, the request context and the X-Request-ID response header.
package requestid

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sensei/pkg/utils/id"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = "X-Request-ID"

// maxInboundLen caps client supplied IDs so they cannot bloat logs.
const maxInboundLen = 128

type ctxKey struct{}

// Get returns the request ID from the context.
// Returns empty string if not found.
func Get(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// With stores the request ID in the context.
func With(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// Config defines the config for RequestID middleware.
type Config struct {
	// Header is the header name to use for request ID.
	// Default: "X-Request-ID"
	Header string

	// Generator is the function to generate request IDs.
	// Default: ULID
	Generator func() string
}

// New returns a middleware that adds a unique request ID to each request.
// An inbound header value is reused when present.
func New() gin.HandlerFunc {
	return NewWithConfig(Config{})
}

// NewWithConfig returns a RequestID middleware with custom config.
func NewWithConfig(cfg Config) gin.HandlerFunc {
	if cfg.Header == "" {
		cfg.Header = HeaderXRequestID
	}
	if cfg.Generator == nil {
		cfg.Generator = id.NewULID
	}

	return func(c *gin.Context) {
		rid := c.GetHeader(cfg.Header)
		if rid == "" || len(rid) > maxInboundLen {
			rid = cfg.Generator()
		}

		c.Header(cfg.Header, rid)
		c.Request = c.Request.WithContext(With(c.Request.Context(), rid))

		c.Next()
	}
}
