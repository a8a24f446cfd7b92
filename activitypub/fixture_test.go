package activitypub

import (
	"context"
	"testing"

	"github.com/deemkeen/nodelink/content"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/graph"
	"github.com/deemkeen/nodelink/registry"
)

const localBaseURL = "http://n1/api/"

type fixture struct {
	store    *db.DB
	registry *registry.Registry
	engine   *graph.Engine
	content  *content.Service
	relay    *Relay
	ingestor *Ingestor
	local    *domain.Node
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, registry: registry.New(store)}
	f.local, err = f.registry.EnsureLocal(context.Background(), localBaseURL, "n1", "n1-secret")
	if err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	f.relay = NewRelay(f.registry, 0)
	f.engine = graph.New(store, f.relay)
	f.content = content.New(store, f.engine, f.relay)
	f.ingestor = NewIngestor(store, f.registry, f.engine, f.content)
	return f
}

func (f *fixture) remoteNode(t *testing.T, baseURL string) *domain.Node {
	t.Helper()
	n, err := f.registry.Register(context.Background(), registry.NewNode{
		BaseURL:          baseURL,
		Username:         "in-" + baseURL,
		Password:         "inbound",
		OutboundUsername: "n1-at-remote",
		OutboundPassword: "outbound",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", baseURL, err)
	}
	return n
}

func (f *fixture) localAuthor(t *testing.T, username string) *domain.Author {
	t.Helper()
	a, err := f.registry.CreateLocalAuthor(context.Background(), username, username, "")
	if err != nil {
		t.Fatalf("CreateLocalAuthor failed: %v", err)
	}
	return a
}

func (f *fixture) remoteAuthor(t *testing.T, node *domain.Node, serial string) *domain.Author {
	t.Helper()
	a, err := f.registry.UpsertShadow(context.Background(), node, &domain.Author{FQID: node.BaseURL + "authors/" + serial})
	if err != nil {
		t.Fatalf("UpsertShadow failed: %v", err)
	}
	return a
}

func contentPost(text string) content.NewPost {
	return content.NewPost{Title: text, Content: text, Visibility: domain.VisibilityPublic}
}
