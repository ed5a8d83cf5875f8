package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GuestToken is the sentinel token of a guest session.
const GuestToken = "guest"

// UnknownSubject is reported for tokens whose claims cannot be read.
const UnknownSubject = "unknown"

// UserInfo holds the identity claims decoded from an access token.
type UserInfo jwt.MapClaims

// GuestUser is the synthetic identity of a guest session.
func GuestUser() UserInfo {
	return UserInfo{
		"sub":                GuestToken,
		"user_id":            GuestToken,
		"preferred_username": GuestToken,
	}
}

// UnknownUser is the identity shown when a token cannot be decoded.
func UnknownUser() UserInfo {
	return UserInfo{
		"sub":     UnknownSubject,
		"user_id": UnknownSubject,
	}
}

func (u UserInfo) str(key string) string {
	s, _ := u[key].(string)
	return s
}

func (u UserInfo) Subject() string { return u.str("sub") }

func (u UserInfo) UserID() string { return u.str("user_id") }

// Username prefers preferred_username and falls back to the subject.
func (u UserInfo) Username() string {
	if name := u.str("preferred_username"); name != "" {
		return name
	}
	return u.Subject()
}

// ExpiresAt returns the exp claim, or nil when absent or malformed.
func (u UserInfo) ExpiresAt() *time.Time {
	exp, err := jwt.MapClaims(u).GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}

// AuthState is the persisted session identity.
type AuthState struct {
	AuthToken string   `json:"authToken,omitempty"`
	UserInfo  UserInfo `json:"userInfo,omitempty"`
}

func (s AuthState) IsGuest() bool { return s.AuthToken == GuestToken }

func (s AuthState) HasToken() bool { return s.AuthToken != "" }

// KeycloakConfig locates the token endpoint of a realm.
type KeycloakConfig struct {
	URL      string `json:"url" validate:"required,url"`
	Realm    string `json:"realm" validate:"required"`
	ClientID string `json:"clientId" validate:"required"`
}

// TokenURL is the OpenID Connect token endpoint of the realm.
func (c KeycloakConfig) TokenURL() string {
	return c.URL + "/auth/realms/" + c.Realm + "/protocol/openid-connect/token"
}

// PendingLink is a page staged from outside the client for a later create.
type PendingLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}
