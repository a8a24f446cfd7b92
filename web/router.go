package web

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/content"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/graph"
	"github.com/deemkeen/nodelink/metrics"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const maxActivityBytes = 1 << 20

// Server holds the services behind the HTTP API.
type Server struct {
	db       *db.DB
	registry *registry.Registry
	graph    *graph.Engine
	content  *content.Service
	ingestor *activitypub.Ingestor
	log      *log.Logger
}

func NewServer(store *db.DB, reg *registry.Registry, engine *graph.Engine, svc *content.Service, ingestor *activitypub.Ingestor) *Server {
	return &Server{
		db:       store,
		registry: reg,
		graph:    engine,
		content:  svc,
		ingestor: ingestor,
		log:      util.Logger().WithPrefix("Web"),
	}
}

// Router mounts the API under the path of the local base URL, so
// http://host/api/ serves /api/authors/...
func Router(conf *util.AppConfig, s *Server) (*gin.Engine, error) {
	base, err := url.Parse(conf.Conf.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base url %q: %w", conf.Conf.BaseURL, err)
	}
	prefix := "/" + strings.Trim(base.Path, "/")

	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(s.log))
	g.Use(gzip.Gzip(gzip.DefaultCompression))
	// FQIDs travel percent-encoded inside path segments
	g.UseRawPath = true
	g.UnescapePathValues = true

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	public := g.Group(prefix)
	public.GET("/authors/:serial/feed", s.handleFeed)

	api := g.Group(prefix, NodeAuth(s.registry))
	local := api.Group("", LocalOnly())

	// Stricter rate limit for federation writes: 5 req/sec per IP
	inboxLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBody := MaxBytesMiddleware(maxActivityBytes)

	api.GET("/authors/", s.handleListAuthors)
	api.GET("/authors/:serial", s.handleGetAuthor)
	api.POST("/authors/:serial/inbox", RateLimitMiddleware(inboxLimiter), maxBody, s.handleInbox)
	local.GET("/authors/:serial/inbox", s.handleListInbox)

	api.GET("/authors/:serial/followers", s.handleListFollowers)
	api.GET("/authors/:serial/followers/*fqid", s.handleGetFollower)
	api.PUT("/authors/:serial/followers/*fqid", maxBody, s.handlePutFollower)
	api.DELETE("/authors/:serial/followers/*fqid", s.handleDeleteFollower)

	local.GET("/authors/:serial/follow-requests", s.handleListFollowRequests)
	local.POST("/authors/:serial/follow-requests/:id/accept", s.handleAcceptFollowRequest)
	local.POST("/authors/:serial/follow-requests/:id/deny", s.handleDenyFollowRequest)

	api.GET("/authors/:serial/following", s.handleListFollowing)
	local.POST("/authors/:serial/following", maxBody, s.handleFollow)
	local.DELETE("/authors/:serial/following/*fqid", s.handleUnfollow)

	api.GET("/authors/:serial/friends", s.handleListFriends)
	api.GET("/authors/:serial/friends/*fqid", s.handleGetFriend)
	local.DELETE("/authors/:serial/friends/*fqid", s.handleUnfriend)

	api.GET("/authors/:serial/posts", s.handleListPosts)
	api.GET("/authors/:serial/posts/:post", s.handleGetPost)
	local.POST("/authors/:serial/posts", maxBody, s.handleCreatePost)
	local.DELETE("/authors/:serial/posts/:post", s.handleDeletePost)
	local.POST("/authors/:serial/liked", maxBody, s.handleLike)
	local.POST("/authors/:serial/commented", maxBody, s.handleComment)

	return g, nil
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "ip", c.ClientIP())
	}
}

// fqidParam reads a catch-all FQID parameter.
func fqidParam(c *gin.Context) string {
	return strings.TrimRight(strings.TrimPrefix(c.Param("fqid"), "/"), "/")
}
