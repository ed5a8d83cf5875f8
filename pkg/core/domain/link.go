package domain

import (
	"encoding/json"
	"strings"
)

// Link is a short link owned by the remote service.
type Link struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	IsPublic    bool   `json:"is_public"`
	CreatedAt   string `json:"created_at,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// LinkPayload is what the client proposes on create and update. The server assigns ids.
type LinkPayload struct {
	Name        string `json:"name" validate:"required"`
	URL         string `json:"url" validate:"required"`
	Description string `json:"description"`
	GroupID     string `json:"group_id"`
	IsPublic    bool   `json:"is_public"`
}

// Normalize trims the user-entered fields.
func (p LinkPayload) Normalize() LinkPayload {
	p.Name = strings.TrimSpace(p.Name)
	p.URL = strings.TrimSpace(p.URL)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

// Payload returns the create payload that reproduces l on another account.
func (l Link) Payload() LinkPayload {
	return LinkPayload{
		Name:        l.Name,
		URL:         l.URL,
		Description: l.Description,
		GroupID:     l.GroupID,
		IsPublic:    l.IsPublic,
	}
}

// Known groups offered by the client. Any other group id is still accepted.
const (
	GroupAll      = "all"
	GroupDev      = "dev"
	GroupProd     = "prod"
	GroupPersonal = "personal"
)

// UnmarshalJSON accepts any JSON object. Scalar fields of an unexpected type are kept as
// their JSON text, and is_public is true for true or 1. Only a non-object fails.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Link{
		ID:          looseString(raw["id"]),
		Name:        looseString(raw["name"]),
		URL:         looseString(raw["url"]),
		Description: looseString(raw["description"]),
		GroupID:     looseString(raw["group_id"]),
		CreatedAt:   looseString(raw["created_at"]),
		UserID:      looseString(raw["user_id"]),
	}
	switch strings.TrimSpace(string(raw["is_public"])) {
	case "true", "1":
		l.IsPublic = true
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
