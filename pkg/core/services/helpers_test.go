package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/the-homeless-god/links/internal/linkstest"
	"github.com/the-homeless-god/links/pkg/adapters/api"
	"github.com/the-homeless-god/links/pkg/adapters/keycloak"
	"github.com/the-homeless-god/links/pkg/adapters/repository/sqlite"
	"github.com/the-homeless-god/links/pkg/config"
	"github.com/the-homeless-god/links/pkg/logging"
)

var envSeq atomic.Int64

type testEnv struct {
	server   *linkstest.Server
	repo     *sqlite.SQLiteRepository
	cfg      *config.Config
	state    *StateService
	auth     *AuthService
	session  *Session
	api      *api.Client
	transfer *TransferService
	store    *LinkStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := linkstest.New(t)
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, envSeq.Add(1))
	repo, err := sqlite.NewSQLiteRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		APIURL:           server.URL,
		KeycloakURL:      server.URL,
		KeycloakRealm:    linkstest.Realm,
		KeycloakClientID: linkstest.ClientID,
	}
	logger := logging.Discard()

	state := NewStateService(repo, cfg)
	auth := NewAuthService(state, keycloak.NewTokenSource(server.Client()), logger)
	session := NewSession(auth, logger)
	client := api.NewClient(server.Client(), state, auth, logger)
	transfer := NewTransferService(client, 0, logger)

	return &testEnv{
		server:   server,
		repo:     repo,
		cfg:      cfg,
		state:    state,
		auth:     auth,
		session:  session,
		api:      client,
		transfer: transfer,
		store:    NewLinkStore(client, transfer, session, logger),
	}
}

// guest starts a guest session, which the test server accepts.
func (e *testEnv) guest(t *testing.T) {
	t.Helper()
	_, err := e.session.LoginGuest(context.Background())
	require.NoError(t, err)
}
