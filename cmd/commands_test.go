package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/deemkeen/nodelink/util"
)

// runCommand executes the command tree against a throwaway data directory.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNodeAndAuthorCommands(t *testing.T) {
	t.Setenv(util.HomeEnv, t.TempDir())
	t.Setenv("NODELINK_BASEURL", "http://n1/api/")

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"node", "add", "--base-url", "http://n2/api/", "--username", "n2", "--password", "pw"}, "registered http://n2/api/"},
		{[]string{"node", "set-outbound", "http://n2/api/", "--username", "n1-at-n2", "--password", "rotated"}, "outbound credentials updated"},
		{[]string{"author", "add", "alice", "--display-name", "Alice"}, "http://n1/api/authors/alice"},
		{[]string{"author", "update", "alice", "--page", "https://alice.example"}, "http://n1/api/authors/alice"},
		{[]string{"author", "list"}, "Alice"},
		{[]string{"author", "list", "--node", "http://n2/api/"}, "USERNAME"},
	}
	t.Cleanup(func() { authorNode = "" })
	for _, s := range steps {
		out, err := runCommand(t, s.args...)
		if err != nil {
			t.Fatalf("%s failed: %v\n%s", strings.Join(s.args, " "), err, out)
		}
		if !strings.Contains(out, s.want) {
			t.Errorf("%s: expected %q in output:\n%s", strings.Join(s.args, " "), s.want, out)
		}
	}

	a, err := openApp(context.Background(), conf)
	if err != nil {
		t.Fatalf("openApp failed: %v", err)
	}
	defer a.Close()
	n2, err := a.registry.ByBaseURL(context.Background(), "http://n2/api/")
	if err != nil {
		t.Fatalf("ByBaseURL failed: %v", err)
	}
	if n2.OutboundUsername != "n1-at-n2" || n2.OutboundPassword != "rotated" {
		t.Errorf("Outbound credentials not stored: %q / %q", n2.OutboundUsername, n2.OutboundPassword)
	}
	alice, err := a.registry.LocalAuthor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("LocalAuthor failed: %v", err)
	}
	if alice.DisplayName != "Alice" || alice.Page != "https://alice.example" {
		t.Errorf("Unexpected profile: %s", alice.ToString())
	}
}
