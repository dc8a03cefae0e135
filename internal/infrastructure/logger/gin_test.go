package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// serveLogged runs one request through a router wrapped in GinMiddleware
// and returns the response together with everything that was logged
func serveLogged(t *testing.T, level zapcore.Level, register func(*gin.Engine), req *http.Request) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	register(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, recorded
}

func requestLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	for _, entry := range recorded.All() {
		if entry.Message == "HTTP Request" {
			return entry
		}
	}
	t.Fatal("no HTTP Request entry logged")
	return observer.LoggedEntry{}
}

func logFields(entry observer.LoggedEntry) map[string]zapcore.Field {
	fields := make(map[string]zapcore.Field, len(entry.Context))
	for _, field := range entry.Context {
		fields[field.Key] = field
	}
	return fields
}

func TestGinMiddleware_LogsCaptureRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil)
	req.Header.Set("User-Agent", "microsite/1.0")

	w, recorded := serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
		r.POST("/api/v1/leads", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"id": "lead-1"})
		})
	}, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	entry := requestLog(t, recorded)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := logFields(entry)
	assert.Equal(t, int64(http.StatusCreated), fields["status"].Integer)
	assert.Equal(t, "POST", fields["method"].String)
	assert.Equal(t, "/api/v1/leads", fields["path"].String)
	assert.Equal(t, "microsite/1.0", fields["user_agent"].String)
	assert.Contains(t, fields, "latency")
	assert.Contains(t, fields, "client_ip")
}

func TestGinMiddleware_LevelTracksStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   zapcore.Level
	}{
		{"lead listed", http.StatusOK, zapcore.InfoLevel},
		{"lead not found", http.StatusNotFound, zapcore.WarnLevel},
		{"crm upstream down", http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/abc", nil)
			_, recorded := serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
				r.GET("/api/v1/leads/abc", func(c *gin.Context) {
					c.Status(tt.status)
				})
			}, req)

			assert.Equal(t, tt.want, requestLog(t, recorded).Level)
		})
	}
}

func TestGinMiddleware_CarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	// RequestID middleware runs first in the real stack
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-9f2")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/api/v1/leads", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil))

	fields := logFields(requestLog(t, recorded))
	require.Contains(t, fields, "request_id")
	assert.Equal(t, "req-9f2", fields["request_id"].String)
}

func TestGinMiddleware_LogsQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads?status=contacted&page=2", nil)

	_, recorded := serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
		r.GET("/api/v1/leads", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	}, req)

	fields := logFields(requestLog(t, recorded))
	require.Contains(t, fields, "query")
	assert.Contains(t, fields["query"].String, "status=contacted")
}

func TestRecovery_PanickingHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.POST("/webhooks/whatsapp", func(c *gin.Context) {
		panic("malformed delivery receipt")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)

	assert.NotPanics(t, func() {
		router.ServeHTTP(w, req)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	logs := recorded.All()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Message, "Panic recovered")
	fields := logFields(logs[0])
	assert.Equal(t, "/webhooks/whatsapp", fields["path"].String)
}

func TestGetGinLogger(t *testing.T) {
	var handlerLogger *zap.Logger

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	_, _ = serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
		r.GET("/api/v1/leads", func(c *gin.Context) {
			handlerLogger = GetGinLogger(c)
			c.Status(http.StatusOK)
		})
	}, req)

	assert.NotNil(t, handlerLogger)
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var handlerLogger *zap.Logger
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		handlerLogger = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// Falls back to a usable no-op logger
	require.NotNil(t, handlerLogger)
	assert.NotPanics(t, func() {
		handlerLogger.Info("health probe")
	})
}
