package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/domain"
	"github.com/gin-gonic/gin"
)

const defaultInboxLimit = 50

func authorList(authors []domain.Author) activitypub.AuthorList {
	items := make([]activitypub.AuthorObject, 0, len(authors))
	for i := range authors {
		items = append(items, activitypub.NewAuthorObject(&authors[i]))
	}
	return activitypub.AuthorList{Type: activitypub.TypeAuthors, Items: items}
}

// owner resolves the local author addressed by the :serial path parameter.
func (s *Server) owner(c *gin.Context) (*domain.Author, bool) {
	a, err := s.registry.LocalAuthor(c.Request.Context(), c.Param("serial"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return a, true
}

func (s *Server) handleListAuthors(c *gin.Context) {
	authors, err := s.registry.LocalAuthors(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorList(authors))
}

func (s *Server) handleGetAuthor(c *gin.Context) {
	a, ok := s.owner(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, activitypub.NewAuthorObject(a))
}

func (s *Server) handleInbox(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		abortWithError(c, domain.ErrValidation)
		return
	}

	if err := s.ingestor.Ingest(c.Request.Context(), callerNode(c), c.Param("serial"), body); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleListInbox(c *gin.Context) {
	a, ok := s.owner(c)
	if !ok {
		return
	}
	limit := defaultInboxLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			abortWithError(c, domain.ErrValidation)
			return
		}
		limit = n
	}

	items, err := s.db.ReadInboxItems(c.Request.Context(), a.Id, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, item := range items {
		out = append(out, gin.H{
			"type":      item.Kind,
			"actor":     item.ActorFQID,
			"object":    item.ObjectFQID,
			"published": item.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"type": "inbox", "author": a.FQID, "items": out})
}
