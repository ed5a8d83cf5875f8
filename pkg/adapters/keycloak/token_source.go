package keycloak

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/ports"
	"golang.org/x/oauth2"
)

// TokenSource performs the resource-owner password grant against a Keycloak realm.
type TokenSource struct {
	httpClient *http.Client
}

var _ ports.TokenSource = (*TokenSource)(nil)

func NewTokenSource(httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenSource{httpClient: httpClient}
}

// PasswordToken posts grant_type=password with client_id, username and password as a form
// and returns the access token. A non-2xx answer becomes *domain.AuthError.
func (s *TokenSource) PasswordToken(ctx context.Context, cfg domain.KeycloakConfig, username, password string) (string, error) {
	conf := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return "", mapError(err)
	}
	return token.AccessToken, nil
}

func mapError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &domain.AuthError{Status: status, Body: string(re.Body)}
	}

	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.NetworkError{Op: "token exchange", Err: err}
	}
	return &domain.DecodeError{Stage: "token response", Err: err}
}
