package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/util"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
)

// GetRSS renders the public posts of author as an RSS 2.0 document.
func GetRSS(author *domain.Author, posts []domain.Post) (string, error) {
	name := author.DisplayName
	if name == "" {
		name = author.Username
	}
	email := fmt.Sprintf("%s@%s", author.Username, util.Name)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - %s", util.Name, name),
		Link:        &feeds.Link{Href: author.FQID},
		Description: fmt.Sprintf("public posts by %s", name),
		Author:      &feeds.Author{Name: name, Email: email},
		Created:     time.Now(),
	}

	for _, post := range posts {
		if post.Visibility != domain.VisibilityPublic {
			continue
		}
		title := post.Title
		if title == "" {
			title = post.CreatedAt.Format(time.RFC1123)
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      post.FQID,
			Title:   title,
			Link:    &feeds.Link{Href: post.FQID},
			Content: post.Content,
			Author:  &feeds.Author{Name: name, Email: email},
			Created: post.CreatedAt,
		})
	}

	return feed.ToRss()
}

func (s *Server) handleFeed(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	posts, err := s.content.VisiblePosts(c.Request.Context(), nil, owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rss, err := GetRSS(owner, posts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
}
