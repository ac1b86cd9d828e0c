package server

import (
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"
)

const contextRequestID = "request_id"

// requestID returns the correlation id bound to the request
func requestID(c *gin.Context) string {
	return c.GetString(contextRequestID)
}

// timedWriter stamps X-Response-Time on the first byte out, before the
// header section is committed
type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	elapsed := float64(time.Since(w.start).Nanoseconds()) / 1e6
	w.Header().Set("X-Response-Time", fmt.Sprintf("%.2fms", elapsed))
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(data []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(data)
}

func (w *timedWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

// requestLogger binds a correlation id (honoring an X-Request-ID the
// caller sent), echoes it on the response, and logs the request with
// its status and duration
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)

		start := time.Now()
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: start}
		c.Next()

		log.Info("[API] %s %s %d %s (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), id, time.Since(start))
	}
}

// recovery turns panics into a 500 payload, logging the stack
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				wrapped := goerrors.Wrap(recovered, 2)
				log.Error("[API] panic %s %s: %s\n%s",
					c.Request.Method, c.Request.URL.Path, wrapped.Error(), wrapped.ErrorStack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "InternalServerError",
					"message":    "An unexpected error occurred",
					"request_id": requestID(c),
				})
			}
		}()
		c.Next()
	}
}

// corsMiddleware allows the configured origins; "*" allows any
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := map[string]bool{}
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
