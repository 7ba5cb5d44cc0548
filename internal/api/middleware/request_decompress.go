package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxInflatedBodyBytes caps how much a gzipped request body may expand to.
const maxInflatedBodyBytes = 128 << 20

// RequestDecompressionMiddleware inflates gzipped request bodies before
// they reach the handlers. Some OpenAI SDK builds send Content-Encoding:
// gzip on large payloads, and net/http does not decode request bodies on
// its own.
func RequestDecompressionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		enc := strings.ToLower(c.GetHeader("Content-Encoding"))
		if !strings.Contains(enc, "gzip") {
			c.Next()
			return
		}

		gz, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			abortDecompress(c, http.StatusBadRequest, "invalid gzip request body")
			return
		}
		defer gz.Close()

		body, err := io.ReadAll(io.LimitReader(gz, maxInflatedBodyBytes+1))
		if err != nil {
			abortDecompress(c, http.StatusBadRequest, "failed to decompress gzip request body")
			return
		}
		if len(body) > maxInflatedBodyBytes {
			abortDecompress(c, http.StatusRequestEntityTooLarge, "decompressed request body too large")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))
		c.Request.Header.Del("Content-Encoding")
		c.Next()
	}
}

func abortDecompress(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": msg}})
}
