package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/logging"
	"github.com/the-homeless-god/links/pkg/ports"
)

// Request header names.
const (
	HeaderAuthorization = "Authorization"
	HeaderGuestToken    = "X-Guest-Token"
)

// AuthService acquires, persists and clears the session identity.
type AuthService struct {
	state    *StateService
	tokens   ports.TokenSource
	validate *validator.Validate
	logger   *log.Logger
}

var _ ports.HeaderProvider = (*AuthService)(nil)

func NewAuthService(state *StateService, tokens ports.TokenSource, logger *log.Logger) *AuthService {
	return &AuthService{
		state:    state,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Login exchanges credentials for a token and stores the token with its decoded claims.
// The realm configuration is saved before the exchange so the next login can reuse it.
func (s *AuthService) Login(ctx context.Context, username, password string, cfg domain.KeycloakConfig) (domain.UserInfo, error) {
	if username == "" {
		return nil, &domain.ValidationError{Field: "username"}
	}
	if password == "" {
		return nil, &domain.ValidationError{Field: "password"}
	}
	if err := s.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid keycloak config: %w", err)
	}

	if err := s.state.SetKeycloakConfig(ctx, cfg); err != nil {
		return nil, err
	}

	token, err := s.tokens.PasswordToken(ctx, cfg, username, password)
	if err != nil {
		s.logger.Warn().Err(err).Str("realm", cfg.Realm).Msg("login failed")
		return nil, err
	}

	info := DecodeToken(token)
	if err := s.state.SetAuthState(ctx, token, info); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user", logging.Mask(info.Subject())).Str("realm", cfg.Realm).Msg("logged in")
	return info, nil
}

// LoginGuest starts a guest session without any network call.
func (s *AuthService) LoginGuest(ctx context.Context) (domain.UserInfo, error) {
	info := domain.GuestUser()
	if err := s.state.SetAuthState(ctx, domain.GuestToken, info); err != nil {
		return nil, err
	}
	s.logger.Info().Msg("guest session started")
	return info, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.state.ClearAuthState(ctx); err != nil {
		return err
	}
	s.logger.Info().Msg("logged out")
	return nil
}

func (s *AuthService) AuthState(ctx context.Context) (domain.AuthState, error) {
	return s.state.AuthState(ctx)
}

// Headers returns the request headers for the current session.
func (s *AuthService) Headers(ctx context.Context) (http.Header, error) {
	state, err := s.state.AuthState(ctx)
	if err != nil {
		return nil, err
	}
	return HeadersFor(state), nil
}

// HeadersFor returns the JSON content headers plus at most one credential header:
// the guest marker for the guest sentinel, a bearer header for any other token, nothing otherwise.
func HeadersFor(state domain.AuthState) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")

	switch {
	case state.IsGuest():
		h.Set(HeaderGuestToken, domain.GuestToken)
	case state.HasToken():
		h.Set(HeaderAuthorization, "Bearer "+state.AuthToken)
	}
	return h
}

// DecodeToken reads the claims of a JWT without verifying it. It never fails:
// anything that is not header.payload.signature with a base64url JSON object payload
// yields domain.UnknownUser.
func DecodeToken(token string) domain.UserInfo {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return domain.UnknownUser()
	}

	payload := parts[1]
	if pad := (4 - len(payload)%4) % 4; pad > 0 {
		payload += strings.Repeat("=", pad)
	}
	payload = strings.NewReplacer("-", "+", "_", "/").Replace(payload)

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.UnknownUser()
	}

	var claims domain.UserInfo
	if err := json.Unmarshal(decoded, &claims); err != nil || claims == nil {
		return domain.UnknownUser()
	}
	return claims
}
