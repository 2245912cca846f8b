package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックから回復するGinミドルウェアを返す。
// スタックトレースはginが標準エラーに出力する。クライアントには内部情報を含まない
// 固定メッセージで500を返し、リクエストIDで突き合わせられるようにする。
// 切断済みの接続への書き込みによるパニックではレスポンスを書かない。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		log.Printf("[Recovery] パニックから回復: method=%s, route=%s, request_id=%s, panic=%v",
			c.Request.Method, route, GetRequestID(c), recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": GetRequestID(c),
		})
	})
}
