package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/the-homeless-god/links/internal/linkstest"
	"github.com/the-homeless-god/links/pkg/config"
	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/core/services"
	"github.com/the-homeless-god/links/pkg/logging"
)

func TestIntegration(t *testing.T) {
	ctx := context.Background()

	// 1. Backend and a file-backed state in a fresh directory
	backend := linkstest.New(t)
	cfg := &config.Config{
		StateURL:         "file:" + filepath.Join(t.TempDir(), "nested", "state.db"),
		APIURL:           backend.URL,
		KeycloakURL:      backend.URL,
		KeycloakRealm:    linkstest.Realm,
		KeycloakClientID: linkstest.ClientID,
	}

	a, err := newApp(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	// 2. Commands that need a session refuse to run without one
	if err := a.run(ctx, "list", nil); err == nil {
		t.Fatal("Expected list to fail without a session")
	}

	// 3. Login, then create from a staged page
	if err := a.run(ctx, "login", []string{"-username", "alice", "-password", "secret"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := a.run(ctx, "stage", []string{"-url", "https://go.dev/doc", "-title", "Go Documentation"}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if err := a.run(ctx, "create", []string{"-group", "dev"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	links := backend.Links()
	if len(links) != 1 || links[0].Name != "go-documentation" || links[0].URL != "https://go.dev/doc" {
		t.Fatalf("Unexpected links after create: %+v", links)
	}

	// 4. Update only the flags given
	if err := a.run(ctx, "update", []string{"-current", "go-documentation", "-public"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	links = backend.Links()
	if !links[0].IsPublic || links[0].GroupID != "dev" {
		t.Errorf("Expected public dev link, got %+v", links[0])
	}

	// 5. Export then import into a second backend
	out := filepath.Join(t.TempDir(), "backup.txt")
	if err := a.run(ctx, "export", []string{"-out", out}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	other := linkstest.New(t)
	if err := a.run(ctx, "config", []string{"-api-url", other.URL}); err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if err := a.run(ctx, "import", []string{"-file", out}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if got := other.Links(); len(got) != 1 || got[0].Name != "go-documentation" || !got[0].IsPublic {
		t.Errorf("Unexpected links after import: %+v", got)
	}

	// 6. Delete and logout
	if err := a.run(ctx, "delete", []string{"-name", "go-documentation"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(other.Links()) != 0 {
		t.Error("Expected link to be deleted")
	}
	if err := a.run(ctx, "logout", nil); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	a.repo.Close()

	// 7. A new process sees the persisted settings but no session
	b, err := newApp(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to restart: %v", err)
	}
	defer b.repo.Close()
	if b.session.State() != services.Unauthenticated {
		t.Errorf("Expected unauthenticated after logout, got %s", b.session.State())
	}
	apiURL, err := b.state.APIURL(ctx)
	if err != nil || apiURL != other.URL {
		t.Errorf("Expected saved api url %s, got %s (%v)", other.URL, apiURL, err)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := linkstest.New(t)
	cfg := &config.Config{
		StateURL:         "file:" + filepath.Join(t.TempDir(), "state.db"),
		APIURL:           backend.URL,
		KeycloakURL:      backend.URL,
		KeycloakRealm:    linkstest.Realm,
		KeycloakClientID: linkstest.ClientID,
	}

	a, err := newApp(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if err := a.run(ctx, "guest", nil); err != nil {
		t.Fatalf("Guest failed: %v", err)
	}
	a.repo.Close()

	b, err := newApp(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to restart: %v", err)
	}
	defer b.repo.Close()
	if b.session.State() != services.Authenticated || b.session.User().Subject() != domain.GuestToken {
		t.Errorf("Expected restored guest session, got %s", b.session.State())
	}
}

func TestEnsureStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	for _, url := range []string{"file:memdb?mode=memory&cache=shared", "libsql://example.turso.io", "file::memory:"} {
		if err := ensureStateDir(url); err != nil {
			t.Errorf("ensureStateDir(%q) = %v", url, err)
		}
	}

	if err := ensureStateDir("file:" + filepath.Join(dir, "state.db") + "?_pragma=busy_timeout(5000)"); err != nil {
		t.Fatalf("ensureStateDir: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected %s to exist: %v", dir, err)
	}
}

func TestCreateKeepsPendingLinkUntilUsed(t *testing.T) {
	ctx := context.Background()
	backend := linkstest.New(t)
	cfg := &config.Config{
		StateURL:         "file:" + filepath.Join(t.TempDir(), "state.db"),
		APIURL:           backend.URL,
		KeycloakURL:      backend.URL,
		KeycloakRealm:    linkstest.Realm,
		KeycloakClientID: linkstest.ClientID,
	}

	a, err := newApp(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	defer a.repo.Close()
	if err := a.run(ctx, "guest", nil); err != nil {
		t.Fatalf("Guest failed: %v", err)
	}

	// 1. A title that yields no name fails validation and keeps the staged page
	if err := a.run(ctx, "stage", []string{"-url", "https://example.com/мир", "-title", "Привет"}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if err := a.run(ctx, "create", nil); err == nil {
		t.Fatal("Expected create without a name to fail")
	}
	assertPending(t, a, "https://example.com/мир")

	// 2. An explicit -url ignores the staged page and keeps it
	if err := a.run(ctx, "create", []string{"-name", "other", "-url", "https://other.example.com"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assertPending(t, a, "https://example.com/мир")

	// 3. A create that uses the staged page clears it
	if err := a.run(ctx, "create", []string{"-name", "world"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	pending, err := a.state.PendingLink(ctx)
	if err != nil || pending != nil {
		t.Errorf("Expected no pending link, got %+v (%v)", pending, err)
	}
	if got := len(backend.Links()); got != 2 {
		t.Errorf("Expected 2 links, got %d", got)
	}
}

func assertPending(t *testing.T, a *app, url string) {
	t.Helper()
	pending, err := a.state.PendingLink(context.Background())
	if err != nil {
		t.Fatalf("PendingLink: %v", err)
	}
	if pending == nil || pending.URL != url {
		t.Fatalf("Expected pending link %s, got %+v", url, pending)
	}
}
