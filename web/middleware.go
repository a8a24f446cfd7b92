package web

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/util"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const nodeKey = "node"

// RateLimiter holds rate limiters for different IP addresses
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cleanup  sync.Once
}

// NewRateLimiter creates a new rate limiter
// r is requests per second, b is burst size
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
	}
}

// getLimiter returns the rate limiter for a given IP address
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = limiter
	}

	return limiter
}

// cleanupOldLimiters drops the whole map once it grows past maxTracked
func (rl *RateLimiter) cleanupOldLimiters(interval time.Duration, maxTracked int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		if len(rl.limiters) > maxTracked {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware creates a Gin middleware for rate limiting
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	rl.cleanup.Do(func() {
		go rl.cleanupOldLimiters(5*time.Minute, 10000)
	})

	return func(c *gin.Context) {
		limiter := rl.getLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// MaxBytesMiddleware limits the size of request bodies
func MaxBytesMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// NodeAuth authenticates the calling node with HTTP Basic Auth on every
// request. When the caller names its origin, it must match the node the
// credentials belong to.
func NodeAuth(reg *registry.Registry) gin.HandlerFunc {
	log := util.Logger().WithPrefix("Auth")

	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="`+util.Name+`"`)
			abortWithError(c, domain.ErrAuthentication)
			return
		}

		node, err := reg.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			log.Warn("rejected node credentials", "username", username, "ip", c.ClientIP())
			c.Header("WWW-Authenticate", `Basic realm="`+util.Name+`"`)
			abortWithError(c, err)
			return
		}

		if origin := c.GetHeader(activitypub.HeaderOriginNode); origin != "" && fqid.NormalizeBaseURL(origin) != node.BaseURL {
			log.Warn("origin does not match credentials", "origin", origin, "node", node.BaseURL)
			abortWithError(c, domain.ErrAuthentication)
			return
		}

		c.Set(nodeKey, node)
		c.Next()
	}
}

// LocalOnly restricts a route to callers holding the local node's credentials.
func LocalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerNode(c).IsLocal {
			abortWithError(c, errForbidden)
			return
		}
		c.Next()
	}
}

var errForbidden = errors.New("forbidden")

func callerNode(c *gin.Context) *domain.Node {
	if v, ok := c.Get(nodeKey); ok {
		if node, ok := v.(*domain.Node); ok {
			return node
		}
	}
	return &domain.Node{}
}
