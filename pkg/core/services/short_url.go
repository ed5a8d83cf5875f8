package services

import (
	"net/url"
	"regexp"
	"strings"
)

const maxSuggestedName = 50

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ShortURL builds the redirect URL of a link: /u/{name} for public links, /r/{name} otherwise.
func ShortURL(origin, name string, isPublic bool) string {
	prefix := "/r/"
	if isPublic {
		prefix = "/u/"
	}
	return strings.TrimRight(origin, "/") + prefix + url.PathEscape(name)
}

// SuggestName turns a page title into a lowercase dash-separated name of at most 50 bytes.
func SuggestName(title string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > maxSuggestedName {
		slug = slug[:maxSuggestedName]
	}
	return slug
}
