package middleware

import (
	"errors"
	"net/http"

	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit caps lifecycle API request bodies at maxBytes. Requests that
// declare a larger Content-Length are rejected up front; chunked bodies are
// cut off by http.MaxBytesReader and surface through IsBodyTooLarge when
// the handler binds them.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abortTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// IsBodyTooLarge reports whether err came from a body that hit the limit
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func abortTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
		dto.ErrCodePayloadTooLarge,
		"Request body exceeds maximum allowed size",
		c.GetString(RequestIDKey)))
}
