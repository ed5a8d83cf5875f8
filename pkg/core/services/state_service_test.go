package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-homeless-god/links/pkg/core/domain"
)

func TestStateServiceDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	url, err := env.state.APIURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.cfg.APIURL, url)

	kc, err := env.state.KeycloakConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.KeycloakConfig{URL: env.cfg.KeycloakURL, Realm: env.cfg.KeycloakRealm, ClientID: env.cfg.KeycloakClientID}, kc)

	pending, err := env.state.PendingLink(ctx)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestStateServiceOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.state.SetAPIURL(ctx, "https://links.example.com"))
	url, err := env.state.APIURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://links.example.com", url)

	require.NoError(t, env.state.SetKeycloakConfig(ctx, domain.KeycloakConfig{URL: "https://sso.example.com", Realm: "corp"}))
	kc, err := env.state.KeycloakConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://sso.example.com", kc.URL)
	assert.Equal(t, "corp", kc.Realm)
	assert.Equal(t, env.cfg.KeycloakClientID, kc.ClientID)
}

func TestStateServiceUndecodableValues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.repo.Set(ctx, map[string]any{
		KeyAuthToken:      42,
		KeyKeycloakConfig: "not an object",
	}))

	state, err := env.state.AuthState(ctx)
	require.NoError(t, err)
	assert.False(t, state.HasToken())

	kc, err := env.state.KeycloakConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.cfg.KeycloakURL, kc.URL)
}

func TestPendingLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.state.StagePendingLink(ctx, domain.PendingLink{URL: "https://go.dev/doc", Title: "Documentation"}))

	pending, err := env.state.TakePendingLink(ctx)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "https://go.dev/doc", pending.URL)
	assert.Equal(t, "Documentation", pending.Title)

	pending, err = env.state.TakePendingLink(ctx)
	require.NoError(t, err)
	assert.Nil(t, pending)
}
