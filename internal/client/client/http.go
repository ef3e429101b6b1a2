package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/dmitrijs2005/mycocore/internal/common"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

const (
	pathLogin              = "/auth/login"
	pathRefresh            = "/auth/refresh"
	pathMe                 = "/auth/me"
	pathLogout             = "/auth/logout"
	pathVerifyPin          = "/auth/verify_pin"
	pathChangeUsername     = "/auth/change_username"
	pathChangeEmail        = "/auth/change_email"
	pathCancelPendingEmail = "/auth/cancel_pending_email"
	pathChangePassword     = "/auth/change_password"
	pathChangePin          = "/auth/change_pin"
)

// UnauthorizedHook is called once when a request is answered with 401. A nil
// return means fresh credentials are armed and the request is replayed.
type UnauthorizedHook func(ctx context.Context) error

type noRetryKey struct{}

// WithoutRetry marks ctx so that a 401 answered to any request made with it
// is returned as is. The refresh flow uses it for its own calls.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

// RetryDisabled reports whether ctx was marked with WithoutRetry.
func RetryDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey{}).(bool)
	return v
}

// HTTPClient talks to the dashboard REST API. The refresh credential lives
// in the cookie jar, the access token in the Authorization header.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	jar     http.CookieJar
	log     logging.Logger

	mu     sync.RWMutex
	token  string
	onAuth UnauthorizedHook
}

func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logging.Nop()
	}

	return &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout, Jar: jar},
		jar:     jar,
		log:     log.With("component", "api"),
	}, nil
}

// SetUnauthorizedHook installs the refresh-and-retry hook.
func (c *HTTPClient) SetUnauthorizedHook(h UnauthorizedHook) {
	c.mu.Lock()
	c.onAuth = h
	c.mu.Unlock()
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) ClearAccessToken() {
	c.SetAccessToken("")
}

// AccessToken returns the currently armed token.
func (c *HTTPClient) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasRefreshCredential reports whether the jar holds a refresh cookie for the API host.
func (c *HTTPClient) HasRefreshCredential() bool {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == common.RefreshCookieName && ck.Value != "" {
			return true
		}
	}
	return false
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResult
	if err := c.post(ctx, pathLogin, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Refresh(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, pathRefresh, nil, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &APIError{Kind: KindUnknown, Status: http.StatusOK, Detail: "Invalid or missing access token in refresh response"}
	}
	return out.AccessToken, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, pathMe, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.post(ctx, pathLogout, nil, nil)
}

func (c *HTTPClient) VerifyPin(ctx context.Context, pin string) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.post(ctx, pathVerifyPin, map[string]string{"pin": pin}, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *HTTPClient) ChangeUsername(ctx context.Context, newUsername string) error {
	return c.post(ctx, pathChangeUsername, map[string]string{"new_username": newUsername}, nil)
}

func (c *HTTPClient) ChangeEmail(ctx context.Context, newEmail string) error {
	return c.post(ctx, pathChangeEmail, map[string]string{"new_email": newEmail}, nil)
}

func (c *HTTPClient) CancelPendingEmail(ctx context.Context) error {
	return c.post(ctx, pathCancelPendingEmail, nil, nil)
}

func (c *HTTPClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	return c.post(ctx, pathChangePassword, body, nil)
}

func (c *HTTPClient) ChangePin(ctx context.Context, oldPin, newPin string) error {
	return c.post(ctx, pathChangePin, map[string]string{"old_pin": oldPin, "new_pin": newPin}, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// do sends one request, replaying it once after a successful 401 hook.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", path, err)
		}
		payload = b
	}

	err := c.send(ctx, method, path, payload, out)
	if err == nil || KindOf(err) != KindUnauthorized || !c.retryable(ctx, path) {
		return err
	}

	c.mu.RLock()
	hook := c.onAuth
	c.mu.RUnlock()
	if hook == nil {
		return err
	}

	c.log.Info(ctx, "access token rejected, refreshing", "path", path)
	if herr := hook(WithoutRetry(ctx)); herr != nil {
		return herr
	}

	return c.send(WithoutRetry(ctx), method, path, payload, out)
}

func (c *HTTPClient) retryable(ctx context.Context, path string) bool {
	if RetryDisabled(ctx) {
		return false
	}
	return path != pathLogin && path != pathRefresh
}

func (c *HTTPClient) send(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return &APIError{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.AccessToken(); tok != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		return mapError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := mapStatus(resp.StatusCode, respBody)
		c.log.Debug(ctx, "request rejected", "method", method, "path", path, "status", resp.StatusCode, "kind", apiErr.Kind)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{Kind: KindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode %s response: %w", path, err)}
	}
	return nil
}
