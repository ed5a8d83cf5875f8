package keycloak

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-homeless-god/links/internal/linkstest"
	"github.com/the-homeless-god/links/pkg/core/domain"
)

func TestPasswordToken(t *testing.T) {
	server := linkstest.New(t)
	source := NewTokenSource(server.Client())
	cfg := domain.KeycloakConfig{URL: server.URL, Realm: linkstest.Realm, ClientID: linkstest.ClientID}

	tests := []struct {
		name       string
		cfg        domain.KeycloakConfig
		username   string
		password   string
		wantStatus int
		wantBody   string
	}{
		{name: "valid credentials", cfg: cfg, username: "alice", password: "secret"},
		{name: "wrong password", cfg: cfg, username: "alice", password: "nope", wantStatus: http.StatusUnauthorized, wantBody: "invalid_grant"},
		{name: "unknown user", cfg: cfg, username: "bob", password: "secret", wantStatus: http.StatusUnauthorized, wantBody: "Invalid user credentials"},
		{
			name:       "unknown client",
			cfg:        domain.KeycloakConfig{URL: server.URL, Realm: linkstest.Realm, ClientID: "other"},
			username:   "alice",
			password:   "secret",
			wantStatus: http.StatusBadRequest,
			wantBody:   "unauthorized_client",
		},
		{
			name:       "unknown realm",
			cfg:        domain.KeycloakConfig{URL: server.URL, Realm: "nope", ClientID: linkstest.ClientID},
			username:   "alice",
			password:   "secret",
			wantStatus: http.StatusNotFound,
			wantBody:   "Realm does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := source.PasswordToken(context.Background(), tt.cfg, tt.username, tt.password)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Len(t, strings.Split(token, "."), 3)
				return
			}

			var authErr *domain.AuthError
			require.True(t, errors.As(err, &authErr), "got %v", err)
			assert.Equal(t, tt.wantStatus, authErr.Status)
			assert.Contains(t, authErr.Body, tt.wantBody)
		})
	}
}

func TestPasswordTokenSendsForm(t *testing.T) {
	var got http.Header
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		assert.Equal(t, "/auth/realms/corp/protocol/openid-connect/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a.b.c","token_type":"Bearer"}`))
	}))
	defer server.Close()

	cfg := domain.KeycloakConfig{URL: server.URL, Realm: "corp", ClientID: "cli"}
	token, err := NewTokenSource(nil).PasswordToken(context.Background(), cfg, "alice", "p@ss word")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", token)

	assert.Equal(t, "application/x-www-form-urlencoded", got.Get("Content-Type"))
	assert.Equal(t, map[string]string{
		"grant_type": "password",
		"client_id":  "cli",
		"username":   "alice",
		"password":   "p@ss word",
	}, form)
}

func TestPasswordTokenNetworkFailure(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	cfg := domain.KeycloakConfig{URL: closed.URL, Realm: "r", ClientID: "c"}
	_, err := NewTokenSource(nil).PasswordToken(context.Background(), cfg, "alice", "secret")
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))
}
