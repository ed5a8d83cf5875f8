package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/the-homeless-god/links/pkg/config"
	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/ports"
)

// Storage keys shared with the browser extension.
const (
	KeyAuthToken        = "auth_token"
	KeyUserInfo         = "user_info"
	KeyKeycloakConfig   = "keycloak_config"
	KeyAPIURL           = "apiUrl"
	KeyPendingLinkURL   = "pendingLinkUrl"
	KeyPendingLinkTitle = "pendingLinkTitle"
)

// StateService gives typed access to the persisted client state.
type StateService struct {
	store    ports.StateStore
	defaults *config.Config
}

func NewStateService(store ports.StateStore, defaults *config.Config) *StateService {
	return &StateService{store: store, defaults: defaults}
}

// AuthState returns the stored session. Undecodable values read as absent.
func (s *StateService) AuthState(ctx context.Context) (domain.AuthState, error) {
	values, err := s.store.Get(ctx, KeyAuthToken, KeyUserInfo)
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("get auth state: %w", err)
	}

	var state domain.AuthState
	if raw, ok := values[KeyAuthToken]; ok {
		_ = json.Unmarshal(raw, &state.AuthToken)
	}
	if raw, ok := values[KeyUserInfo]; ok {
		_ = json.Unmarshal(raw, &state.UserInfo)
	}
	return state, nil
}

// SetAuthState stores token and identity together.
func (s *StateService) SetAuthState(ctx context.Context, token string, info domain.UserInfo) error {
	err := s.store.Set(ctx, map[string]any{
		KeyAuthToken: token,
		KeyUserInfo:  info,
	})
	if err != nil {
		return fmt.Errorf("set auth state: %w", err)
	}
	return nil
}

// ClearAuthState removes token and identity together.
func (s *StateService) ClearAuthState(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyAuthToken, KeyUserInfo); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}

// KeycloakConfig returns the saved realm configuration, or the configured defaults.
func (s *StateService) KeycloakConfig(ctx context.Context) (domain.KeycloakConfig, error) {
	fallback := domain.KeycloakConfig{
		URL:      s.defaults.KeycloakURL,
		Realm:    s.defaults.KeycloakRealm,
		ClientID: s.defaults.KeycloakClientID,
	}

	values, err := s.store.Get(ctx, KeyKeycloakConfig)
	if err != nil {
		return fallback, fmt.Errorf("get keycloak config: %w", err)
	}
	raw, ok := values[KeyKeycloakConfig]
	if !ok {
		return fallback, nil
	}

	var saved domain.KeycloakConfig
	if err := json.Unmarshal(raw, &saved); err != nil {
		return fallback, nil
	}
	if saved.URL == "" {
		saved.URL = fallback.URL
	}
	if saved.Realm == "" {
		saved.Realm = fallback.Realm
	}
	if saved.ClientID == "" {
		saved.ClientID = fallback.ClientID
	}
	return saved, nil
}

func (s *StateService) SetKeycloakConfig(ctx context.Context, cfg domain.KeycloakConfig) error {
	if err := s.store.Set(ctx, map[string]any{KeyKeycloakConfig: cfg}); err != nil {
		return fmt.Errorf("set keycloak config: %w", err)
	}
	return nil
}

// APIURL returns the saved API origin, or the configured default.
func (s *StateService) APIURL(ctx context.Context) (string, error) {
	values, err := s.store.Get(ctx, KeyAPIURL)
	if err != nil {
		return "", fmt.Errorf("get api url: %w", err)
	}

	var url string
	if raw, ok := values[KeyAPIURL]; ok {
		_ = json.Unmarshal(raw, &url)
	}
	if url == "" {
		url = s.defaults.APIURL
	}
	return url, nil
}

func (s *StateService) SetAPIURL(ctx context.Context, url string) error {
	if err := s.store.Set(ctx, map[string]any{KeyAPIURL: url}); err != nil {
		return fmt.Errorf("set api url: %w", err)
	}
	return nil
}

// StagePendingLink hands a page over to the next create.
func (s *StateService) StagePendingLink(ctx context.Context, link domain.PendingLink) error {
	err := s.store.Set(ctx, map[string]any{
		KeyPendingLinkURL:   link.URL,
		KeyPendingLinkTitle: link.Title,
	})
	if err != nil {
		return fmt.Errorf("stage pending link: %w", err)
	}
	return nil
}

// PendingLink returns the staged page, or nil when nothing is staged.
func (s *StateService) PendingLink(ctx context.Context) (*domain.PendingLink, error) {
	values, err := s.store.Get(ctx, KeyPendingLinkURL, KeyPendingLinkTitle)
	if err != nil {
		return nil, fmt.Errorf("get pending link: %w", err)
	}

	var pending domain.PendingLink
	if raw, ok := values[KeyPendingLinkURL]; ok {
		_ = json.Unmarshal(raw, &pending.URL)
	}
	if pending.URL == "" {
		return nil, nil
	}
	if raw, ok := values[KeyPendingLinkTitle]; ok {
		_ = json.Unmarshal(raw, &pending.Title)
	}
	return &pending, nil
}

func (s *StateService) ClearPendingLink(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyPendingLinkURL, KeyPendingLinkTitle); err != nil {
		return fmt.Errorf("clear pending link: %w", err)
	}
	return nil
}

// TakePendingLink returns the staged page and clears it.
func (s *StateService) TakePendingLink(ctx context.Context) (*domain.PendingLink, error) {
	pending, err := s.PendingLink(ctx)
	if err != nil || pending == nil {
		return pending, err
	}
	if err := s.ClearPendingLink(ctx); err != nil {
		return nil, err
	}
	return pending, nil
}
