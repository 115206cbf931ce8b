package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npezzotti/go-chatsync/internal/types"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 4 << 20
)

// Fetcher loads directory data and message history from the server.
type Fetcher interface {
	CurrentUser(ctx context.Context) (types.User, error)
	Channels(ctx context.Context) ([]types.Channel, error)
	DirectMessageThreads(ctx context.Context) ([]types.DirectMessageThread, error)
	Users(ctx context.Context) ([]types.User, error)
	History(ctx context.Context, ref types.ConversationRef) ([]types.Message, error)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: u,
		http:    httpClient,
	}, nil
}

func (c *Client) CurrentUser(ctx context.Context) (types.User, error) {
	var u types.User
	if err := c.getJson(ctx, "/api/user/current", &u); err != nil {
		return types.User{}, err
	}
	return u, nil
}

func (c *Client) Channels(ctx context.Context) ([]types.Channel, error) {
	var channels []types.Channel
	if err := c.getJson(ctx, "/api/channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *Client) DirectMessageThreads(ctx context.Context) ([]types.DirectMessageThread, error) {
	var dms []types.DirectMessageThread
	if err := c.getJson(ctx, "/api/direct-messages", &dms); err != nil {
		return nil, err
	}
	return dms, nil
}

func (c *Client) Users(ctx context.Context) ([]types.User, error) {
	var users []types.User
	if err := c.getJson(ctx, "/api/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) History(ctx context.Context, ref types.ConversationRef) ([]types.Message, error) {
	path, err := historyPath(ref)
	if err != nil {
		return nil, err
	}

	var messages []types.Message
	if err := c.getJson(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func historyPath(ref types.ConversationRef) (string, error) {
	if ref.Id == "" {
		return "", types.ErrMissingId
	}

	id := url.PathEscape(ref.Id)
	switch ref.Kind {
	case types.KindChannel:
		return "/api/messages/channel/" + id, nil
	case types.KindDirect:
		return "/api/direct-messages/" + id + "/messages", nil
	default:
		return "", fmt.Errorf("unknown conversation kind %q", ref.Kind)
	}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.baseURL.String(), "/") + path
}

func (c *Client) getJson(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodySize)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(body)
		return NewApiError(resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
