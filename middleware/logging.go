package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"checklist/apierr"
	"checklist/logger"

	"github.com/gin-gonic/gin"
)

const contextLoggerKey = "logger"

// RequestLogger stores a request-scoped logger in the context and logs one
// line per request once the handler chain has finished.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.With("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Set(contextLoggerKey, reqLog)

		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"status", status,
			"duration", time.Since(start),
			"bytes", c.Writer.Size(),
		}
		if id := ActorID(c); id != 0 {
			kv = append(kv, "user_id", id)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLog.Error("Request completed", kv...)
		case status >= http.StatusBadRequest:
			reqLog.Warn("Request completed", kv...)
		default:
			reqLog.Info("Request completed", kv...)
		}
	}
}

// LoggerFrom returns the request logger, or a no-op logger outside RequestLogger.
func LoggerFrom(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(contextLoggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return logger.Nop()
}

// Recovery turns a panic into a logged 500 with the standard error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				LoggerFrom(c).Error("Panic recovered",
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					apierr.Internal(fmt.Errorf("panic: %v", r)).Envelope())
			}
		}()
		c.Next()
	}
}
