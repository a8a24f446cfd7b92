package web

import (
	"errors"
	"net/http"

	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/content"
	"github.com/deemkeen/nodelink/domain"
	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`
}

type likeRequest struct {
	Object string `json:"object" binding:"required"`
}

type commentRequest struct {
	Post        string `json:"post" binding:"required"`
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"contentType"`
}

// viewer resolves the ?viewer= query parameter. A node may only speak for
// its own authors; an unknown viewer is anonymous.
func (s *Server) viewer(c *gin.Context) (*domain.Author, bool) {
	id := c.Query("viewer")
	if id == "" {
		return nil, true
	}
	v, err := s.registry.AuthorByFQID(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, true
	}
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	if caller := callerNode(c); !caller.IsLocal && caller.Id != v.NodeId {
		abortWithError(c, errForbidden)
		return nil, false
	}
	return v, true
}

func (s *Server) handleListPosts(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	viewer, ok := s.viewer(c)
	if !ok {
		return
	}
	posts, err := s.content.VisiblePosts(c.Request.Context(), viewer, owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]*activitypub.PostActivity, 0, len(posts))
	for i := range posts {
		items = append(items, activitypub.NewPostActivity(owner, &posts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"type": "posts", "items": items})
}

func (s *Server) handleGetPost(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	viewer, ok := s.viewer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	post, err := s.content.Post(ctx, viewer, owner, c.Param("post"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	comments, err := s.content.VisibleComments(ctx, viewer, post)
	if err != nil {
		abortWithError(c, err)
		return
	}
	likes, err := s.content.Likes(ctx, post.FQID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post":     activitypub.NewPostActivity(owner, post),
		"comments": len(comments),
		"likes":    len(likes),
	})
}

func (s *Server) handleCreatePost(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.ErrValidation)
		return
	}
	in := content.NewPost{Title: req.Title, Content: req.Content, ContentType: req.ContentType}
	if req.Visibility != "" {
		v, err := domain.ParseVisibility(req.Visibility)
		if err != nil {
			abortWithError(c, err)
			return
		}
		in.Visibility = v
	}

	post, err := s.content.CreatePost(c.Request.Context(), owner, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, activitypub.NewPostActivity(owner, post))
}

func (s *Server) handleDeletePost(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	if _, err := s.content.DeletePost(c.Request.Context(), owner, c.Param("post")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLike(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.ErrValidation)
		return
	}
	like, err := s.content.Like(c.Request.Context(), owner, req.Object)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, activitypub.NewLikeActivity(owner, like))
}

func (s *Server) handleComment(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.ErrValidation)
		return
	}
	comment, err := s.content.Comment(c.Request.Context(), owner, req.Post, req.Content, req.ContentType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, activitypub.NewCommentActivity(owner, comment))
}
