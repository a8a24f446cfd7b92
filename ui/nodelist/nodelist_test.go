package nodelist

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/registry"
)

func setupModel(t *testing.T) (Model, *registry.Registry) {
	t.Helper()
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.New(store)
	ctx := context.Background()
	if _, err := reg.EnsureLocal(ctx, "http://n1/api/", "n1", "secret"); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}
	if _, err := reg.Register(ctx, registry.NewNode{BaseURL: "http://n2/api/", Username: "n2", Password: "pw"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m := InitialModel(reg)
	m, _ = m.Update(m.Init()())
	return m, reg
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a command")
	}
	m, _ = m.Update(cmd())
	return m
}

func TestLoadNodes(t *testing.T) {
	m, _ := setupModel(t)

	if len(m.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(m.Nodes))
	}
	if !m.Nodes[0].IsLocal {
		t.Errorf("Expected the local node first")
	}
	if m.Error != "" {
		t.Errorf("Unexpected error %q", m.Error)
	}
}

func TestNavigation(t *testing.T) {
	m, _ := setupModel(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.Selected != 1 {
		t.Errorf("Expected selection 1, got %d", m.Selected)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.Selected != 1 {
		t.Errorf("Selection must stop at the last node, got %d", m.Selected)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.Selected != 0 {
		t.Errorf("Selection must stop at the first node, got %d", m.Selected)
	}
}

func TestToggleRemoteNode(t *testing.T) {
	m, reg := setupModel(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, m, cmd)
	if m.Error != "" {
		t.Fatalf("Unexpected error %q", m.Error)
	}
	if m.Status != "http://n2/api/ deactivated" {
		t.Errorf("Unexpected status %q", m.Status)
	}

	remotes, err := reg.ActiveRemotes(context.Background())
	if err != nil {
		t.Fatalf("ActiveRemotes failed: %v", err)
	}
	if len(remotes) != 0 {
		t.Errorf("Expected n2 to be inactive")
	}
}

func TestLocalNodeCannotBeToggled(t *testing.T) {
	m, _ := setupModel(t)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if cmd != nil {
		t.Error("Toggling the local node must not issue a command")
	}
	if m.Error == "" {
		t.Error("Expected an error for the local node")
	}
}
