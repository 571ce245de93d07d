package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitPerClient(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// within burst
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1234"))
	// burst exhausted
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:9999"))

	// a different client has its own bucket
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1234"))
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.3:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
