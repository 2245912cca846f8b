package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dignitas/gateway/pkg/metrics"
)

// Metrics はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// classOfはリクエストのルート分類（free/paid）をラベルとして返す。
func Metrics(classOf func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		class := "unknown"
		if classOf != nil {
			if cl := classOf(c); cl != "" {
				class = cl
			}
		}
		metrics.ObserveRequest(class, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
