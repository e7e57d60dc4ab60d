package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"contactlink/internal/ratelimit/models"
	"contactlink/pkg/testutil"
)

type stubLimiter struct {
	result *models.RateLimitResult
	err    error
	gotIP  string
}

func (s *stubLimiter) CheckIP(_ context.Context, ip, _ string) (*models.RateLimitResult, error) {
	s.gotIP = ip
	return s.result, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(m *Middleware) *httptest.ResponseRecorder {
	req := testutil.WithClientIP(httptest.NewRequest(http.MethodPost, "/identify", nil), "192.0.2.7")
	return testutil.DoRequest(m.RateLimit("identify")(okHandler()), req)
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resetAt := time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC)

	testutil.Given(t, "a client under its budget", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 4, ResetAt: resetAt}}
		rr := serve(New(limiter, logger))

		testutil.Then(t, "the request passes with limit headers", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
			assert.Equal(t, "1717243260", rr.Header().Get("X-RateLimit-Reset"))
			assert.Equal(t, "192.0.2.7", limiter.gotIP)
		})
	})

	testutil.Given(t, "a client over its budget", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: false, Limit: 5, ResetAt: resetAt, RetryAfter: 42}}
		rr := serve(New(limiter, logger))

		testutil.Then(t, "the request is rejected with Retry-After", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limit_exceeded")
			assert.Equal(t, "42", rr.Header().Get("Retry-After"))
			assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
		})
	})

	testutil.Given(t, "a limiter that cannot decide", func(t *testing.T) {
		rr := serve(New(&stubLimiter{err: errors.New("redis down")}, logger))

		testutil.Then(t, "the request is let through", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
		})
	})

	testutil.Given(t, "a limiter serving from its fallback", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 3, ResetAt: resetAt, Degraded: true}}
		rr := serve(New(limiter, logger))

		testutil.Then(t, "responses are marked degraded", func(t *testing.T) {
			assert.Equal(t, "degraded", rr.Header().Get("X-RateLimit-Status"))
		})
	})

	testutil.Given(t, "rate limiting is disabled", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("must not be called")}
		rr := serve(New(limiter, logger, WithDisabled(true)))

		testutil.When(t, "a request arrives", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Empty(t, limiter.gotIP)
		})
	})
}
