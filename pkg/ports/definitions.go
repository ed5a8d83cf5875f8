package ports

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/the-homeless-god/links/pkg/core/domain"
)

// StateStore is the persisted key-value state of the client
type StateStore interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error // All keys or none
	Remove(ctx context.Context, keys ...string) error     // All keys or none
	Close() error
}

// TokenSource exchanges user credentials for an access token
type TokenSource interface {
	PasswordToken(ctx context.Context, cfg domain.KeycloakConfig, username, password string) (string, error)
}

// HeaderProvider resolves request headers from the current session
type HeaderProvider interface {
	Headers(ctx context.Context) (http.Header, error)
}

// OriginProvider resolves the configured API origin
type OriginProvider interface {
	APIURL(ctx context.Context) (string, error)
}

// LinkAPI defines the remote link collection operations
type LinkAPI interface {
	FetchLinks(ctx context.Context) ([]domain.Link, error)
	CreateLink(ctx context.Context, payload domain.LinkPayload) (*domain.Link, error)
	UpdateLink(ctx context.Context, id string, payload domain.LinkPayload) (*domain.Link, error)
	DeleteLink(ctx context.Context, id string) error
}
