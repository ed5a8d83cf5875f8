package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/phuslu/log"
	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/ports"
)

// Client performs the link collection operations against the configured origin.
// Every call resolves the origin and the headers anew, so a login or a settings
// change takes effect on the next request.
type Client struct {
	httpClient *http.Client
	origin     ports.OriginProvider
	headers    ports.HeaderProvider
	logger     *log.Logger
}

var _ ports.LinkAPI = (*Client)(nil)

func NewClient(httpClient *http.Client, origin ports.OriginProvider, headers ports.HeaderProvider, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		origin:     origin,
		headers:    headers,
		logger:     logger,
	}
}

// errorBody is the error payload of the links service.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FetchLinks returns the whole collection. A 2xx body that is not an array yields an empty slice.
func (c *Client) FetchLinks(ctx context.Context) ([]domain.Link, error) {
	const op = "fetch links"

	resp, err := c.do(ctx, op, http.MethodGet, "/api/links", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, &domain.RequestFailedError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return []domain.Link{}, nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &domain.DecodeError{Stage: "links response", Err: err}
	}
	if !isArray(raw) {
		c.logger.Warn().Str("op", op).Msg("response is not an array, treating as empty")
		return []domain.Link{}, nil
	}

	links := []domain.Link{}
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, &domain.DecodeError{Stage: "links response", Err: err}
	}

	c.logger.Debug().Str("op", op).Int("count", len(links)).Msg("links fetched")
	return links, nil
}

func (c *Client) CreateLink(ctx context.Context, payload domain.LinkPayload) (*domain.Link, error) {
	return c.save(ctx, "create link", http.MethodPost, "/api/links", payload)
}

func (c *Client) UpdateLink(ctx context.Context, id string, payload domain.LinkPayload) (*domain.Link, error) {
	return c.save(ctx, "update link", http.MethodPut, "/api/links/"+url.PathEscape(id), payload)
}

// DeleteLink succeeds on 200 and 204 only.
func (c *Client) DeleteLink(ctx context.Context, id string) error {
	const op = "delete link"

	resp, err := c.do(ctx, op, http.MethodDelete, "/api/links/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return requestFailed(op, resp)
	}
	c.logger.Debug().Str("op", op).Str("id", id).Int("status", resp.StatusCode).Msg("link deleted")
	return nil
}

func (c *Client) save(ctx context.Context, op, method, path string, payload domain.LinkPayload) (*domain.Link, error) {
	resp, err := c.do(ctx, op, method, path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, requestFailed(op, resp)
	}

	var link domain.Link
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return nil, &domain.DecodeError{Stage: op + " response", Err: err}
	}
	c.logger.Debug().Str("op", op).Str("name", link.Name).Msg("link saved")
	return &link, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	origin, err := c.origin.APIURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: resolve api url: %w", op, err)
	}
	headers, err := c.headers.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: resolve headers: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(origin, "/")+path, reader)
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("request failed")
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	return resp, nil
}

// requestFailed reads the error body and keeps its message verbatim when present.
func requestFailed(op string, resp *http.Response) error {
	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&eb)
	return &domain.RequestFailedError{
		Op:      op,
		Status:  resp.StatusCode,
		Code:    eb.Error,
		Message: eb.Message,
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
