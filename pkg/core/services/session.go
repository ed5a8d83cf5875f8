package services

import (
	"context"
	"sync"

	"github.com/phuslu/log"
	"github.com/the-homeless-god/links/pkg/core/domain"
)

// SessionState is derived from the persisted AuthState.
type SessionState int

const (
	Unauthenticated SessionState = iota
	Authenticating
	Authenticated
)

func (s SessionState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session tracks Unauthenticated -> Authenticating -> Authenticated, and drops back to
// Unauthenticated on logout or on any Unauthorized result. There is no refreshing state.
type Session struct {
	auth   *AuthService
	logger *log.Logger

	mu       sync.Mutex
	state    SessionState
	user     domain.UserInfo
	onChange func(from, to SessionState)
}

func NewSession(auth *AuthService, logger *log.Logger) *Session {
	return &Session{auth: auth, logger: logger}
}

// OnChange registers a callback run after every transition.
func (s *Session) OnChange(fn func(from, to SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) User() domain.UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Restore resumes a persisted session, if any.
func (s *Session) Restore(ctx context.Context) (SessionState, error) {
	state, err := s.auth.AuthState(ctx)
	if err != nil {
		return s.State(), err
	}
	if state.HasToken() {
		s.transition(Authenticated, state.UserInfo)
	} else {
		s.transition(Unauthenticated, nil)
	}
	return s.State(), nil
}

func (s *Session) Login(ctx context.Context, username, password string, cfg domain.KeycloakConfig) (domain.UserInfo, error) {
	s.transition(Authenticating, nil)
	info, err := s.auth.Login(ctx, username, password, cfg)
	if err != nil {
		s.transition(Unauthenticated, nil)
		return nil, err
	}
	s.transition(Authenticated, info)
	return info, nil
}

func (s *Session) LoginGuest(ctx context.Context) (domain.UserInfo, error) {
	s.transition(Authenticating, nil)
	info, err := s.auth.LoginGuest(ctx)
	if err != nil {
		s.transition(Unauthenticated, nil)
		return nil, err
	}
	s.transition(Authenticated, info)
	return info, nil
}

func (s *Session) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	s.transition(Unauthenticated, nil)
	return err
}

// Observe inspects the result of an API call. An Unauthorized result ends the session
// and clears the stored credentials; it returns true in that case.
func (s *Session) Observe(ctx context.Context, err error) bool {
	if !domain.IsUnauthorized(err) {
		return false
	}
	if clearErr := s.auth.Logout(ctx); clearErr != nil {
		s.logger.Warn().Err(clearErr).Msg("clear auth state after unauthorized")
	}
	s.transition(Unauthenticated, nil)
	return true
}

func (s *Session) transition(to SessionState, user domain.UserInfo) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.user = user
	fn := s.onChange
	s.mu.Unlock()

	if from != to {
		s.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("session state changed")
	}
	if fn != nil && from != to {
		fn(from, to)
	}
}
