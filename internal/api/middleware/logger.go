package middleware

import (
	"net/http"
	"time"

	"meal-planner/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger 日誌中間件；處理程序以 c.Error 回報的錯誤會附上代碼與分類
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestid.Get(c)),
		}
		if userID := c.Param("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if last := c.Errors.Last(); last != nil {
			ce := common.AsCustomError(last.Err)
			fields = append(fields,
				zap.String("error_code", ce.Code),
				zap.String("error_kind", string(ce.Kind)),
			)
		}

		logByStatus(status)("請求完成", fields...)
	}
}

func logByStatus(status int) func(string, ...zap.Field) {
	switch {
	case status >= http.StatusInternalServerError:
		return common.LogError
	case status >= http.StatusBadRequest:
		return common.LogWarn
	default:
		return common.LogInfo
	}
}

// Recovery 攔截 panic 並回傳 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				common.LogError("Panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", requestid.Get(c)),
				)
				c.AbortWithStatusJSON(common.ErrInternalError.Status, gin.H{
					"error": common.ErrInternalError.Message,
					"code":  common.ErrCodeInternalError,
					"kind":  common.KindTransient,
				})
			}
		}()

		c.Next()
	}
}
