package middleware

import "github.com/gin-gonic/gin"

// CORSMiddleware applies the gateway's permissive cross-origin policy: any
// client run from a browser (the desktop front-end, a local dev server)
// can reach every endpoint without a separate proxy.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
