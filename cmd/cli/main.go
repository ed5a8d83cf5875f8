package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/phuslu/log"
	"github.com/the-homeless-god/links/pkg/adapters/api"
	"github.com/the-homeless-god/links/pkg/adapters/keycloak"
	"github.com/the-homeless-god/links/pkg/adapters/repository/sqlite"
	"github.com/the-homeless-god/links/pkg/config"
	"github.com/the-homeless-god/links/pkg/core/services"
	"github.com/the-homeless-god/links/pkg/logging"
)

const usage = `usage: links <command> [flags]

commands:
  login     sign in with username and password
  guest     continue as guest
  logout    forget the stored session
  whoami    show the current identity
  config    show or change the API and Keycloak settings
  list      list links (-group, -search)
  create    create a link
  update    update a link
  delete    delete a link
  open-url  print the short URL of a link
  export    write a backup string (-out)
  import    restore a backup string (-file or stdin)
  stage     stage a page for the next create`

type app struct {
	cfg      *config.Config
	logger   *log.Logger
	repo     *sqlite.SQLiteRepository
	state    *services.StateService
	auth     *services.AuthService
	session  *services.Session
	transfer *services.TransferService
	store    *services.LinkStore
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, os.Stderr)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.repo.Close()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		a.repo.Close()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	if err := ensureStateDir(cfg.StateURL); err != nil {
		return nil, err
	}
	repo, err := sqlite.NewSQLiteRepository(cfg.StateURL)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	state := services.NewStateService(repo, cfg)
	auth := services.NewAuthService(state, keycloak.NewTokenSource(httpClient), logger)
	session := services.NewSession(auth, logger)
	session.OnChange(func(from, to services.SessionState) {
		logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("session")
	})
	if _, err := session.Restore(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	client := api.NewClient(httpClient, state, auth, logger)
	transfer := services.NewTransferService(client, cfg.ImportRate, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		state:    state,
		auth:     auth,
		session:  session,
		transfer: transfer,
		store:    services.NewLinkStore(client, transfer, session, logger),
	}, nil
}

// ensureStateDir creates the parent directory of a file-backed state database.
func ensureStateDir(stateURL string) error {
	if !strings.HasPrefix(stateURL, "file:") || strings.Contains(stateURL, "mode=memory") {
		return nil
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(stateURL, "file:"), "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "guest":
		return a.guest(ctx)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "config":
		return a.config(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "open-url":
		return a.openURL(ctx, args)
	case "export":
		return a.export(ctx, args)
	case "import":
		return a.importLinks(ctx, args)
	case "stage":
		return a.stage(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}
