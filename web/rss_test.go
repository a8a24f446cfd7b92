package web

import (
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/nodelink/domain"
)

func TestGetRSS(t *testing.T) {
	author := &domain.Author{Username: "alice", DisplayName: "Alice", FQID: "http://n1/api/authors/alice"}
	created := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	posts := []domain.Post{
		{FQID: author.FQID + "/posts/1", Title: "first", Content: "public body", Visibility: domain.VisibilityPublic, CreatedAt: created},
		{FQID: author.FQID + "/posts/2", Content: "untitled", Visibility: domain.VisibilityPublic, CreatedAt: created},
		{FQID: author.FQID + "/posts/3", Title: "hidden", Visibility: domain.VisibilityFriends, CreatedAt: created},
		{FQID: author.FQID + "/posts/4", Title: "gone", Visibility: domain.VisibilityDeleted, CreatedAt: created},
	}

	rss, err := GetRSS(author, posts)
	if err != nil {
		t.Fatalf("GetRSS failed: %v", err)
	}

	for _, want := range []string{"<rss", "nodelink - Alice", "first", "public body", author.FQID + "/posts/2", "alice@nodelink"} {
		if !strings.Contains(rss, want) {
			t.Errorf("Expected feed to contain %q", want)
		}
	}
	for _, unwanted := range []string{"hidden", "gone"} {
		if strings.Contains(rss, unwanted) {
			t.Errorf("Feed must not contain %q", unwanted)
		}
	}
	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected two items, got %d", strings.Count(rss, "<item>"))
	}
}

func TestGetRSSFallsBackToUsername(t *testing.T) {
	rss, err := GetRSS(&domain.Author{Username: "bob", FQID: "http://n1/api/authors/bob"}, nil)
	if err != nil {
		t.Fatalf("GetRSS failed: %v", err)
	}
	if !strings.Contains(rss, "nodelink - bob") {
		t.Errorf("Expected the username as feed title: %s", rss)
	}
}
