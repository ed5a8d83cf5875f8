package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/ports"
)

// LinkStore caches the last fetched collection and applies the group and search filters.
// Every mutation is followed by a full refetch.
type LinkStore struct {
	api      ports.LinkAPI
	transfer *TransferService
	session  *Session
	validate *validator.Validate
	logger   *log.Logger

	mu     sync.RWMutex
	links  []domain.Link
	group  string
	search string
}

func NewLinkStore(api ports.LinkAPI, transfer *TransferService, session *Session, logger *log.Logger) *LinkStore {
	return &LinkStore{
		api:      api,
		transfer: transfer,
		session:  session,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		group:    domain.GroupAll,
	}
}

// Refresh replaces the cache with the server's collection. On error the cache is kept.
func (s *LinkStore) Refresh(ctx context.Context) error {
	links, err := s.api.FetchLinks(ctx)
	if err != nil {
		s.observe(ctx, err)
		return err
	}

	s.mu.Lock()
	s.links = links
	s.mu.Unlock()
	return nil
}

// Links returns a copy of the cached collection.
func (s *LinkStore) Links() []domain.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Link(nil), s.links...)
}

func (s *LinkStore) Find(id string) (domain.Link, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.links {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Link{}, false
}

func (s *LinkStore) FindByName(name string) (domain.Link, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.links {
		if l.Name == name {
			return l, true
		}
	}
	return domain.Link{}, false
}

func (s *LinkStore) SetGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = group
}

func (s *LinkStore) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = term
}

// View applies the group filter then the search to the cache.
func (s *LinkStore) View() []domain.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SearchLinks(FilterByGroup(s.links, s.group), s.search)
}

// Create validates the payload, creates the link and refetches.
// A refetch failure is returned alongside the created link.
func (s *LinkStore) Create(ctx context.Context, payload domain.LinkPayload) (*domain.Link, error) {
	payload, err := s.check(payload)
	if err != nil {
		return nil, err
	}

	link, err := s.api.CreateLink(ctx, payload)
	if err != nil {
		s.observe(ctx, err)
		return nil, err
	}
	s.logger.Info().Str("name", link.Name).Msg("link created")

	if err := s.Refresh(ctx); err != nil {
		return link, fmt.Errorf("refresh after create: %w", err)
	}
	return link, nil
}

func (s *LinkStore) Update(ctx context.Context, id string, payload domain.LinkPayload) (*domain.Link, error) {
	payload, err := s.check(payload)
	if err != nil {
		return nil, err
	}

	link, err := s.api.UpdateLink(ctx, id, payload)
	if err != nil {
		s.observe(ctx, err)
		return nil, err
	}
	s.logger.Info().Str("id", id).Msg("link updated")

	if err := s.Refresh(ctx); err != nil {
		return link, fmt.Errorf("refresh after update: %w", err)
	}
	return link, nil
}

// Delete removes the link and refetches. When the server reports a failure the collection is
// refetched anyway and gone reports whether the link is absent afterwards; err is still the
// server's error so callers can tell the two cases apart.
func (s *LinkStore) Delete(ctx context.Context, id string) (gone bool, err error) {
	err = s.api.DeleteLink(ctx, id)
	if s.observe(ctx, err) {
		return false, err
	}

	if refreshErr := s.Refresh(ctx); refreshErr != nil {
		if err == nil {
			return true, fmt.Errorf("refresh after delete: %w", refreshErr)
		}
		return false, err
	}

	_, present := s.Find(id)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", id).Bool("gone", !present).Msg("delete reported failure, refetched")
	} else {
		s.logger.Info().Str("id", id).Msg("link deleted")
	}
	return !present, err
}

// Import restores an export and refetches.
func (s *LinkStore) Import(ctx context.Context, encoded string) (*domain.ImportResult, error) {
	result, err := s.transfer.Import(ctx, encoded)
	if err != nil {
		return result, err
	}
	if err := s.Refresh(ctx); err != nil {
		return result, fmt.Errorf("refresh after import: %w", err)
	}
	return result, nil
}

// Export encodes the current server collection.
func (s *LinkStore) Export(ctx context.Context) (string, *domain.ExportData, error) {
	encoded, data, err := s.transfer.Export(ctx)
	if err != nil {
		s.observe(ctx, err)
	}
	return encoded, data, err
}

func (s *LinkStore) check(payload domain.LinkPayload) (domain.LinkPayload, error) {
	payload = payload.Normalize()
	if err := s.validate.Struct(payload); err != nil {
		if payload.Name == "" {
			return payload, &domain.ValidationError{Field: "name"}
		}
		return payload, &domain.ValidationError{Field: "url"}
	}
	return payload, nil
}

func (s *LinkStore) observe(ctx context.Context, err error) bool {
	if err == nil || s.session == nil {
		return false
	}
	return s.session.Observe(ctx, err)
}

// FilterByGroup keeps the links of group in their original order. "" and "all" keep everything.
func FilterByGroup(links []domain.Link, group string) []domain.Link {
	if group == "" || group == domain.GroupAll {
		return append([]domain.Link(nil), links...)
	}
	filtered := []domain.Link{}
	for _, l := range links {
		if l.GroupID == group {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

// SearchLinks keeps links whose name, url or description contains term, ignoring case.
func SearchLinks(links []domain.Link, term string) []domain.Link {
	if term == "" {
		return append([]domain.Link(nil), links...)
	}
	term = strings.ToLower(term)
	filtered := []domain.Link{}
	for _, l := range links {
		if strings.Contains(strings.ToLower(l.Name), term) ||
			strings.Contains(strings.ToLower(l.URL), term) ||
			strings.Contains(strings.ToLower(l.Description), term) {
			filtered = append(filtered, l)
		}
	}
	return filtered
}
