package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deemkeen/nodelink/domain"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestGetLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)

	limiter1 := rl.getLimiter("192.168.1.1")
	if limiter1 == nil {
		t.Fatal("getLimiter returned nil")
	}
	if limiter2 := rl.getLimiter("192.168.1.1"); limiter1 != limiter2 {
		t.Error("getLimiter should return the same limiter for the same IP")
	}
	if limiter3 := rl.getLimiter("192.168.1.2"); limiter1 == limiter3 {
		t.Error("getLimiter should return different limiters for different IPs")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		requestCount   int
		rateLimit      rate.Limit
		burst          int
		expectedStatus int
	}{
		{"under limit", 5, rate.Limit(10), 10, http.StatusOK},
		{"at burst limit", 10, rate.Limit(1), 10, http.StatusOK},
		{"over limit", 15, rate.Limit(1), 10, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rateLimit, tt.burst)
			router := gin.New()
			router.Use(RateLimitMiddleware(rl))
			router.GET("/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			var last *httptest.ResponseRecorder
			for i := 0; i < tt.requestCount; i++ {
				last = httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				req.RemoteAddr = "192.168.1.100:12345"
				router.ServeHTTP(last, req)
			}

			if last.Code != tt.expectedStatus {
				t.Errorf("Expected final status %d, got %d", tt.expectedStatus, last.Code)
			}
			if tt.expectedStatus == http.StatusTooManyRequests && !strings.Contains(last.Body.String(), "Rate limit exceeded") {
				t.Errorf("Expected rate limit error message, got: %s", last.Body.String())
			}
		})
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		maxBytes       int64
		bodySize       int
		expectedStatus int
	}{
		{"under limit", 1024, 512, http.StatusOK},
		{"at limit", 1024, 1024, http.StatusOK},
		{"over limit by content-length", 1024, 2048, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(MaxBytesMiddleware(tt.maxBytes))
			router.POST("/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", tt.bodySize)))
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrSelfFollow, http.StatusBadRequest},
		{domain.ErrAlreadyFollower, http.StatusBadRequest},
		{domain.ErrUnsupportedType, http.StatusBadRequest},
		{domain.ErrIntegrity, http.StatusBadRequest},
		{fmt.Errorf("lookup: %w", domain.ErrAuthorNotFound), http.StatusNotFound},
		{domain.ErrAuthentication, http.StatusUnauthorized},
		{errForbidden, http.StatusForbidden},
		{domain.ErrTransport, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestNodeAuth(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name     string
		username string
		password string
		origin   string
		want     int
	}{
		{"no credentials", "", "", "", http.StatusUnauthorized},
		{"wrong password", "n2", "nope", "", http.StatusUnauthorized},
		{"unknown node", "n9", "n2-secret", "", http.StatusUnauthorized},
		{"valid", "n2", "n2-secret", "", http.StatusOK},
		{"valid with origin", "n2", "n2-secret", "http://n2/api", http.StatusOK},
		{"origin mismatch", "n2", "n2-secret", "http://n3/api/", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/authors/", nil)
			if tt.username != "" {
				req.SetBasicAuth(tt.username, tt.password)
			}
			if tt.origin != "" {
				req.Header.Set("X-Origin-Node", tt.origin)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if w.Code == http.StatusUnauthorized && tt.username == "" && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected a Basic Auth challenge")
			}
		})
	}
}

func TestNodeAuthRejectsDeactivatedNode(t *testing.T) {
	s := setupServer(t)
	if err := s.registry.SetActive(t.Context(), s.n2.Id, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	w := s.do(t, http.MethodGet, "/api/authors/", asN2, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a deactivated node, got %d", w.Code)
	}
}
