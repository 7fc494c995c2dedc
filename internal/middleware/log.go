package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/metrics"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

// AuditMiddleware 记录登录用户的写操作（非 GET/HEAD/OPTIONS），只存元数据不存请求体
func AuditMiddleware(st *store.Store, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		id, ok := reqctx.From(c.Request.Context())
		// 只记录登录用户的操作
		if !ok || id.UserID == 0 {
			return
		}

		entry := models.AuditLog{
			UserID:    &id.UserID,
			Method:    c.Request.Method,
			Path:      truncate(c.Request.URL.Path, 255),
			Status:    c.Writer.Status(),
			IP:        c.ClientIP(),
			UserAgent: truncate(c.Request.UserAgent(), 255),
		}
		if id.LedgerID != 0 {
			entry.LedgerID = &id.LedgerID
		}
		// 请求本身的 context 可能已取消，审计写入不受影响
		if err := st.AuditLogs.Insert(context.WithoutCancel(c.Request.Context()), &entry); err != nil {
			log.Warn("write audit log", zap.Error(err), zap.String("path", entry.Path))
		}
	}
}

// RequestLogger 用 zap 输出访问日志，替代 gin.Logger
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if uid := reqctx.UserID(c.Request.Context()); uid != 0 {
			fields = append(fields, zap.Uint("user_id", uid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// Metrics 按路由模板统计请求耗时
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
