package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inputfeed/internal/redis"
	"inputfeed/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubLimiter struct {
	result *redis.RateLimitResult
	err    error
}

func (s stubLimiter) Allow(context.Context, string) (*redis.RateLimitResult, error) {
	return s.result, s.err
}

func newEngine(l *logger.Logger, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(l), ErrorHandler(l))
	r.GET("/x", handlers...)
	return r
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(logger.Wrap(zap.New(core)), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("incoming request id not echoed")
	}
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 || entries[0].ContextMap()["request_id"] != "abc" {
		t.Fatalf("unexpected access log %+v", entries)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if id := w.Header().Get("X-Request-Id"); len(id) != 32 {
		t.Fatalf("expected a generated compact id, got %q", id)
	}
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	r := newEngine(logger.Nop(), func(c *gin.Context) { _ = c.Error(errors.New("boom")) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStreamRateLimit(t *testing.T) {
	limited := stubLimiter{result: &redis.RateLimitResult{Allowed: false, Limit: 5, ResetIn: 30 * time.Second}}
	r := newEngine(logger.Nop(), StreamRateLimitMiddleware(limited, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTooManyRequests || w.Header().Get("X-RateLimit-Reset") != "30" {
		t.Fatalf("unexpected response %d %v", w.Code, w.Header())
	}

	// A broken limiter must not lock viewers out.
	failing := stubLimiter{err: errors.New("redis down")}
	r = newEngine(logger.Nop(), StreamRateLimitMiddleware(failing, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through on limiter error, got %d", w.Code)
	}
}
