package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Device-flow outcomes reported by the token endpoint.
var (
	ErrAuthorizationPending = errors.New("github: authorization pending")
	ErrSlowDown             = errors.New("github: slow down")
	ErrCodeExpired          = errors.New("github: device code expired")
	ErrAccessDenied         = errors.New("github: access denied")
)

// Client talks to the GitHub REST and OAuth device-flow endpoints.
type Client struct {
	apiBaseURL   string
	oauthBaseURL string
	httpClient   *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client for the given API and OAuth base URLs.
func New(apiBase, oauthBase string, opts ...Option) *Client {
	api := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if api == "" {
		api = "https://api.github.com"
	}
	oauth := strings.TrimRight(strings.TrimSpace(oauthBase), "/")
	if oauth == "" {
		oauth = "https://github.com"
	}
	c := &Client{
		apiBaseURL:   api,
		oauthBaseURL: oauth,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents an error response from GitHub.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github request failed with status %d", e.Status)
	}
	return fmt.Sprintf("github request failed (%d): %s", e.Status, e.Message)
}

// DeviceAuthorization is the device-flow challenge handed to the user.
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// User is the subset of the authenticated-user payload the service needs.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Repo is the subset of a repository payload the service needs.
type Repo struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Fork     bool   `json:"fork"`
}

// StartDeviceFlow requests a device authorization challenge.
func (c *Client) StartDeviceFlow(ctx context.Context, clientID string) (*DeviceAuthorization, error) {
	form := url.Values{"client_id": {clientID}, "scope": {"read:user"}}
	var auth DeviceAuthorization
	if err := c.postForm(ctx, c.oauthBaseURL+"/login/device/code", form, &auth); err != nil {
		return nil, err
	}
	if auth.DeviceCode == "" {
		return nil, APIError{Status: http.StatusBadGateway, Message: "empty device code response"}
	}
	return &auth, nil
}

// PollToken exchanges a device code for an access token. While the user has
// not finished the flow it returns ErrAuthorizationPending.
func (c *Client) PollToken(ctx context.Context, clientID, deviceCode string) (string, error) {
	form := url.Values{
		"client_id":   {clientID},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := c.postForm(ctx, c.oauthBaseURL+"/login/oauth/access_token", form, &payload); err != nil {
		return "", err
	}
	switch payload.Error {
	case "":
	case "authorization_pending":
		return "", ErrAuthorizationPending
	case "slow_down":
		return "", ErrSlowDown
	case "expired_token":
		return "", ErrCodeExpired
	case "access_denied":
		return "", ErrAccessDenied
	default:
		return "", APIError{Status: http.StatusBadRequest, Message: payload.Error}
	}
	if payload.AccessToken == "" {
		return "", APIError{Status: http.StatusBadGateway, Message: "empty access token response"}
	}
	return payload.AccessToken, nil
}

// GetAuthenticatedUser fetches the profile behind the token.
func (c *Client) GetAuthenticatedUser(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.getWithRetry(ctx, c.apiBaseURL+"/user", token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListRepos fetches up to 100 of the user's most recently pushed repositories.
func (c *Client) ListRepos(ctx context.Context, token, login string) ([]Repo, error) {
	endpoint := fmt.Sprintf("%s/users/%s/repos?per_page=100&sort=pushed", c.apiBaseURL, url.PathEscape(login))
	var repos []Repo
	if err := c.getWithRetry(ctx, endpoint, token, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// getWithRetry performs an authenticated GET with fibonacci backoff on
// throttling and server errors.
func (c *Client) getWithRetry(ctx context.Context, endpoint, token string, v any) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.get(ctx, endpoint, token, v)
		var apiErr APIError
		if errors.As(err, &apiErr) {
			if apiErr.Status >= http.StatusInternalServerError || apiErr.Status == http.StatusTooManyRequests {
				return retry.RetryableError(err)
			}
		}
		return err
	})
}

func (c *Client) get(ctx context.Context, endpoint, token string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, v)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
