package middleware

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// activeConnCount tracks in-flight requests for the health endpoint and
// the Prometheus gauge.
var activeConnCount atomic.Int64

// ConnectionTrackerMiddleware counts a request as active from the moment
// it enters the handler chain until its response completes.
func ConnectionTrackerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeConnCount.Add(1)
		activeConnectionsGauge.Inc()
		defer func() {
			activeConnCount.Add(-1)
			activeConnectionsGauge.Dec()
		}()
		c.Next()
	}
}

// GetActiveConnections returns the number of requests currently in flight.
func GetActiveConnections() int64 {
	return activeConnCount.Load()
}
