package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/annel0/voxel-engine/internal/logging"
)

var httpLog = logging.For("http")

// RequestIDHeader - заголовок, через который клиент может передать свой ID запроса
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// DefaultSlowThreshold - после этой длительности запрос логируется как медленный.
const DefaultSlowThreshold = 500 * time.Millisecond

// RequestLogger снабжает каждый HTTP-запрос request-ID и пишет краткие логи.
type RequestLogger struct {
	slow time.Duration
}

func NewRequestLogger() *RequestLogger { return &RequestLogger{slow: DefaultSlowThreshold} }

// WithSlowThreshold меняет порог медленных запросов; d <= 0 отключает предупреждения.
func (rl *RequestLogger) WithSlowThreshold(d time.Duration) *RequestLogger {
	rl.slow = d
	return rl
}

// RequestID возвращает ID, назначенный текущему запросу.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		began := time.Now()
		c.Next()
		took := time.Since(began)

		route := routeOf(c)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			httpLog.Error("%s %s -> %d за %s [%s] %s", c.Request.Method, route, status, took, id, c.Errors.String())
		case status >= 400:
			httpLog.Warn("%s %s -> %d за %s [%s]", c.Request.Method, route, status, took, id)
		case rl.slow > 0 && took > rl.slow:
			httpLog.Warn("медленный запрос %s %s -> %d за %s [%s]", c.Request.Method, route, status, took, id)
		default:
			httpLog.Debug("%s %s -> %d за %s [%s] ip=%s", c.Request.Method, route, status, took, id, c.ClientIP())
		}
	}
}
