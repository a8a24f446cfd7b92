package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

func setupTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestEnsureLocalCreatesAndRefreshes(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	first, err := r.EnsureLocal(ctx, "http://n1/api", "local", "secret")
	if err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	if first.BaseURL != "http://n1/api/" {
		t.Errorf("Expected normalized base url, got %q", first.BaseURL)
	}

	second, err := r.EnsureLocal(ctx, "http://n1.example/api/", "local", "rotated")
	if err != nil {
		t.Fatalf("second EnsureLocal failed: %v", err)
	}
	if second.Id != first.Id {
		t.Errorf("Expected the same local node, got %s and %s", first.Id, second.Id)
	}

	if _, err := r.Authenticate(ctx, "local", "secret"); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("Old password must stop working, got %v", err)
	}
	if _, err := r.Authenticate(ctx, "local", "rotated"); err != nil {
		t.Errorf("New password rejected: %v", err)
	}

	nodes, _ := r.List(ctx)
	if len(nodes) != 1 {
		t.Errorf("Expected exactly one node, got %d", len(nodes))
	}
}

func TestAuthenticate(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	node, err := r.Register(ctx, NewNode{BaseURL: "http://n2/api/", Username: "n2", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid credentials", "n2", "pw", false},
		{"wrong password", "n2", "nope", true},
		{"unknown username", "ghost", "pw", true},
		{"empty credentials", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Authenticate(ctx, tt.username, tt.password)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrAuthentication) {
					t.Errorf("Expected ErrAuthentication, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if got.Id != node.Id {
				t.Errorf("Expected node %s, got %s", node.Id, got.Id)
			}
		})
	}
}

func TestAuthenticateRejectsInactiveNode(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	node, err := r.Register(ctx, NewNode{BaseURL: "http://n2/api/", Username: "n2", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.SetActive(ctx, node.Id, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	if _, err := r.Authenticate(ctx, "n2", "pw"); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("Inactive node must not authenticate, got %v", err)
	}

	remotes, _ := r.ActiveRemotes(ctx)
	if len(remotes) != 0 {
		t.Errorf("Inactive node listed as active remote")
	}
}

func TestLocalNodeCannotBeDeactivated(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	local, err := r.EnsureLocal(ctx, "http://n1/api/", "local", "secret")
	if err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	if err := r.SetActive(ctx, local.Id, false); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewNode
	}{
		{"missing base url", NewNode{Username: "x", Password: "y"}},
		{"missing password", NewNode{BaseURL: "http://n2/api/", Username: "x"}},
		{"not a url", NewNode{BaseURL: "n2", Username: "x", Password: "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Register(ctx, tt.in); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateLocalAuthor(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()
	if _, err := r.EnsureLocal(ctx, "http://n1/api/", "local", "secret"); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}

	alice, err := r.CreateLocalAuthor(ctx, "alice", "Alice", "alicegh")
	if err != nil {
		t.Fatalf("CreateLocalAuthor failed: %v", err)
	}
	if alice.FQID != "http://n1/api/authors/alice" {
		t.Errorf("Unexpected fqid %q", alice.FQID)
	}

	if _, err := r.CreateLocalAuthor(ctx, "n2__42", "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Usernames with __ are reserved for remote authors, got %v", err)
	}
	if _, err := r.CreateLocalAuthor(ctx, "alice", "", ""); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected conflict on duplicate username, got %v", err)
	}

	got, err := r.LocalAuthor(ctx, "alice")
	if err != nil || got.Id != alice.Id {
		t.Errorf("LocalAuthor = %v, %v", got, err)
	}
}

func TestUpsertShadow(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	n2, err := r.Register(ctx, NewNode{BaseURL: "http://n2:8080/api/", Username: "n2", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	shadow, err := r.UpsertShadow(ctx, n2, &domain.Author{FQID: "http://n2:8080/api/authors/42", DisplayName: "Remote"})
	if err != nil {
		t.Fatalf("UpsertShadow failed: %v", err)
	}
	if shadow.Serial != "42" || shadow.Username != "n2_8080__42" || shadow.NodeId != n2.Id {
		t.Errorf("Unexpected shadow: %s", shadow.ToString())
	}

	// an author hosted elsewhere must not be attributed to n2
	_, err = r.UpsertShadow(ctx, n2, &domain.Author{FQID: "http://n3/api/authors/7"})
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication for foreign author, got %v", err)
	}

	_, err = r.UpsertShadow(ctx, n2, &domain.Author{FQID: "not-a-url"})
	if !errors.Is(err, domain.ErrMalformedFQID) {
		t.Errorf("Expected ErrMalformedFQID, got %v", err)
	}
}

func TestResolveAuthor(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	if _, err := r.EnsureLocal(ctx, "http://n1/api/", "local", "secret"); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	alice, err := r.CreateLocalAuthor(ctx, "alice", "Alice", "")
	if err != nil {
		t.Fatalf("CreateLocalAuthor failed: %v", err)
	}
	n2, err := r.Register(ctx, NewNode{BaseURL: "http://n2/api/", Username: "n2", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.ResolveAuthor(ctx, alice.FQID+"/")
	if err != nil || got.Id != alice.Id {
		t.Errorf("ResolveAuthor(local) = %v, %v", got, err)
	}

	// an object fqid resolves to its author
	shadow, err := r.ResolveAuthor(ctx, "http://n2/api/authors/42/posts/p1")
	if err != nil {
		t.Fatalf("ResolveAuthor(remote) failed: %v", err)
	}
	if shadow.FQID != "http://n2/api/authors/42" || shadow.NodeId != n2.Id {
		t.Errorf("Unexpected shadow: %s", shadow.ToString())
	}

	again, err := r.ResolveAuthor(ctx, "http://n2/api/authors/42")
	if err != nil || again.Id != shadow.Id {
		t.Errorf("Second resolve must reuse the shadow, got %v, %v", again, err)
	}

	if _, err := r.ResolveAuthor(ctx, "http://n9/api/authors/1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for an unregistered node, got %v", err)
	}
	if _, err := r.ResolveAuthor(ctx, "authors/1"); !errors.Is(err, domain.ErrMalformedFQID) {
		t.Errorf("Expected ErrMalformedFQID, got %v", err)
	}
}

func TestUpsertShadowDisambiguatesUsernames(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		first, second string
	}{
		{"same host", "http://n2/api/", "http://n2/other/"},
		{"dot and underscore", "http://a.b/api/", "http://a_b/api/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n1, err := r.Register(ctx, NewNode{BaseURL: tt.first, Username: tt.name + "-1", Password: "pw"})
			if err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			n2, err := r.Register(ctx, NewNode{BaseURL: tt.second, Username: tt.name + "-2", Password: "pw"})
			if err != nil {
				t.Fatalf("Register failed: %v", err)
			}

			a, err := r.UpsertShadow(ctx, n1, &domain.Author{FQID: tt.first + "authors/42"})
			if err != nil {
				t.Fatalf("UpsertShadow(first) failed: %v", err)
			}
			b, err := r.UpsertShadow(ctx, n2, &domain.Author{FQID: tt.second + "authors/42"})
			if err != nil {
				t.Fatalf("UpsertShadow(second) failed: %v", err)
			}
			if a.Username == b.Username || a.Id == b.Id {
				t.Errorf("Expected two distinct shadows, got %q and %q", a.Username, b.Username)
			}

			// a refresh keeps the disambiguated name
			again, err := r.UpsertShadow(ctx, n2, &domain.Author{FQID: tt.second + "authors/42", DisplayName: "Bee"})
			if err != nil {
				t.Fatalf("refresh failed: %v", err)
			}
			if again.Id != b.Id || again.Username != b.Username || again.DisplayName != "Bee" {
				t.Errorf("Unexpected refreshed shadow: %s", again.ToString())
			}
		})
	}
}

func TestSetOutbound(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()

	local, err := r.EnsureLocal(ctx, "http://n1/api/", "local", "secret")
	if err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	n2, err := r.Register(ctx, NewNode{BaseURL: "http://n2/api/", Username: "n2", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := r.SetOutbound(ctx, n2.Id, "n1-at-n2", "rotated"); err != nil {
		t.Fatalf("SetOutbound failed: %v", err)
	}
	got, err := r.ByBaseURL(ctx, "http://n2/api/")
	if err != nil {
		t.Fatalf("ByBaseURL failed: %v", err)
	}
	if got.OutboundUsername != "n1-at-n2" || got.OutboundPassword != "rotated" {
		t.Errorf("Outbound credentials not stored: %q / %q", got.OutboundUsername, got.OutboundPassword)
	}

	tests := []struct {
		name string
		id   uuid.UUID
		user string
		pass string
		want error
	}{
		{"local node", local.Id, "x", "y", domain.ErrValidation},
		{"missing password", n2.Id, "x", "", domain.ErrValidation},
		{"unknown node", uuid.New(), "x", "y", domain.ErrNodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.SetOutbound(ctx, tt.id, tt.user, tt.pass); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdateLocalAuthor(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()
	if _, err := r.EnsureLocal(ctx, "http://n1/api/", "local", "secret"); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	if _, err := r.CreateLocalAuthor(ctx, "alice", "Alice", "alicegh"); err != nil {
		t.Fatalf("CreateLocalAuthor failed: %v", err)
	}

	name, page := "Alice L.", "https://alice.example"
	got, err := r.UpdateLocalAuthor(ctx, "alice", ProfileUpdate{DisplayName: &name, Page: &page})
	if err != nil {
		t.Fatalf("UpdateLocalAuthor failed: %v", err)
	}
	if got.DisplayName != name || got.Page != page || got.Github != "alicegh" {
		t.Errorf("Unexpected profile: %s", got.ToString())
	}

	stored, _ := r.LocalAuthor(ctx, "alice")
	if stored.DisplayName != name || stored.Github != "alicegh" {
		t.Errorf("Update not persisted: %s", stored.ToString())
	}

	if _, err := r.UpdateLocalAuthor(ctx, "nobody", ProfileUpdate{DisplayName: &name}); !errors.Is(err, domain.ErrAuthorNotFound) {
		t.Errorf("Expected ErrAuthorNotFound, got %v", err)
	}
}

func TestAuthorsOf(t *testing.T) {
	r := setupTestRegistry(t)
	ctx := context.Background()
	n2, err := r.Register(ctx, NewNode{BaseURL: "http://n2/api/", Username: "n2", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	for _, serial := range []string{"1", "2"} {
		if _, err := r.ResolveAuthor(ctx, "http://n2/api/authors/"+serial); err != nil {
			t.Fatalf("ResolveAuthor failed: %v", err)
		}
	}
	authors, err := r.AuthorsOf(ctx, n2)
	if err != nil {
		t.Fatalf("AuthorsOf failed: %v", err)
	}
	if len(authors) != 2 {
		t.Errorf("Expected 2 authors, got %d", len(authors))
	}
}
