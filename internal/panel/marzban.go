package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"vendbot/internal/pkg/httpclient"
)

// ErrAlreadyExists is returned by CreateUser when the panel already has a
// user with that username. CreateMinimal relies on it for idempotent creates.
var ErrAlreadyExists = errors.New("panel: user already exists")

const (
	maxAttempts = 3
	baseDelay   = 500 * time.Millisecond
)

// retryableStatus marks statuses worth retrying with backoff. Other 4xx are
// caller mistakes and fail immediately; 401 has its own refresh path.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// MarzbanClient drives a Marzban panel over its REST API. It owns the token
// lifecycle and all transient-failure retries; callers above never see a 401
// or a backoff.
type MarzbanClient struct {
	baseURL  string
	username string
	password string
	client   *httpclient.Client
	logger   *zap.Logger

	mu    sync.Mutex
	token string
}

// NewMarzbanClient creates a new Marzban panel client. Self-hosted panels
// often run on self-signed certificates, so TLS verification is optional.
func NewMarzbanClient(baseURL, username, password string, insecureSkipVerify bool, logger *zap.Logger) *MarzbanClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := httpclient.New().WithTimeout(30 * time.Second)
	if insecureSkipVerify {
		client = client.WithInsecureSkipVerify()
	}
	return &MarzbanClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   client,
		logger:   logger,
	}
}

// Authenticate exchanges admin credentials for a bearer token and caches it.
// Safe to call concurrently; only one login is ever in flight.
func (m *MarzbanClient) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticateLocked(ctx)
}

func (m *MarzbanClient) authenticateLocked(ctx context.Context) error {
	resp, err := m.client.PostForm(ctx, m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return &AuthError{Err: err}
	}
	if !resp.OK() {
		return &AuthError{Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, resp.Body)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return &AuthError{Err: fmt.Errorf("parse token response: %w", err)}
	}
	if result.AccessToken == "" {
		return &AuthError{Err: errors.New("no access_token in response")}
	}

	m.token = result.AccessToken
	return nil
}

// ensureToken authenticates on first use. The cached token is reused until a
// request comes back 401.
func (m *MarzbanClient) ensureToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		if err := m.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return m.token, nil
}

// refresh drops a stale token and re-authenticates, unless a concurrent
// caller already swapped in a fresh one.
func (m *MarzbanClient) refresh(ctx context.Context, stale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && m.token != stale {
		return nil
	}
	m.token = ""
	return m.authenticateLocked(ctx)
}

// request issues one logical panel call. 401 triggers exactly one token
// refresh and replay; 429/502/503/504 and transport errors are retried with
// exponential backoff; statuses listed in allowed are handed back untouched
// for the caller to interpret.
func (m *MarzbanClient) request(ctx context.Context, method, path string, body interface{}, allowed ...int) (*httpclient.Response, error) {
	token, err := m.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	refreshed := false
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := m.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := m.client.DoWithToken(ctx, method, m.baseURL+path, token, body)
		if err != nil {
			lastErr = err
			m.logger.Warn("panel request failed, will retry",
				zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if refreshed {
				return nil, &AuthError{Err: errors.New("request rejected after token refresh")}
			}
			refreshed = true
			if err := m.refresh(ctx, token); err != nil {
				return nil, err
			}
			if token, err = m.ensureToken(ctx); err != nil {
				return nil, err
			}
			// replay does not consume a transient-retry attempt
			attempt--
			continue
		}

		for _, code := range allowed {
			if resp.StatusCode == code {
				return resp, nil
			}
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, resp.Body)
			m.logger.Warn("panel busy, will retry",
				zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			continue
		}

		if !resp.OK() {
			return nil, &PanelError{Status: resp.StatusCode, Body: string(resp.Body)}
		}
		return resp, nil
	}

	return nil, &TransientError{Attempts: maxAttempts, Err: lastErr}
}

func (m *MarzbanClient) backoff(ctx context.Context, attempt int) error {
	delay := baseDelay*(1<<uint(attempt-1)) + time.Duration(rand.Int63n(int64(100*time.Millisecond)))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MarzbanClient) GetUser(ctx context.Context, username string) (*User, error) {
	resp, err := m.request(ctx, http.MethodGet, "/api/user/"+username, nil, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	return decodeUser(resp.Body)
}

func (m *MarzbanClient) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	body := map[string]interface{}{
		"username":   req.Username,
		"status":     "active",
		"data_limit": req.DataLimit,
		"expire":     req.Expire,
		"proxies":    map[string]interface{}{},
		"inbounds":   map[string]interface{}{},
	}
	if req.Note != "" {
		body["note"] = req.Note
	}

	resp, err := m.request(ctx, http.MethodPost, "/api/user", body, http.StatusConflict)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, ErrAlreadyExists
	}
	return decodeUser(resp.Body)
}

func (m *MarzbanClient) ModifyUser(ctx context.Context, username string, req ModifyUserRequest) (*User, error) {
	body := map[string]interface{}{}
	if req.Status != "" {
		body["status"] = req.Status
	}
	if req.DataLimit != nil {
		body["data_limit"] = *req.DataLimit
	}
	if req.Expire != nil {
		body["expire"] = *req.Expire
	}
	if req.Note != "" {
		body["note"] = req.Note
	}

	resp, err := m.request(ctx, http.MethodPut, "/api/user/"+username, body, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	return decodeUser(resp.Body)
}

func (m *MarzbanClient) DeleteUser(ctx context.Context, username string) error {
	resp, err := m.request(ctx, http.MethodDelete, "/api/user/"+username, nil, http.StatusNotFound)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

func (m *MarzbanClient) ResetUser(ctx context.Context, username string) error {
	_, err := m.request(ctx, http.MethodPost, "/api/user/"+username+"/reset", nil)
	return err
}

func (m *MarzbanClient) RevokeSubscription(ctx context.Context, username string) (string, error) {
	resp, err := m.request(ctx, http.MethodPost, "/api/user/"+username+"/revoke_sub", nil)
	if err != nil {
		return "", err
	}
	user, err := decodeUser(resp.Body)
	if err != nil {
		return "", err
	}
	return user.SubURL, nil
}

// ListExpired returns usernames expired before the given unix time (0 = all
// expired users).
func (m *MarzbanClient) ListExpired(ctx context.Context, before int64) ([]string, error) {
	resp, err := m.request(ctx, http.MethodGet, "/api/users/expired"+expiredQuery(before), nil)
	if err != nil {
		return nil, err
	}
	var usernames []string
	if err := json.Unmarshal(resp.Body, &usernames); err != nil {
		return nil, fmt.Errorf("parse expired users: %w", err)
	}
	return usernames, nil
}

// DeleteExpired removes expired users via the bulk endpoint. ErrNotFound
// means the panel build has no such endpoint; callers fall back to deleting
// one by one.
func (m *MarzbanClient) DeleteExpired(ctx context.Context, before int64) ([]string, error) {
	resp, err := m.request(ctx, http.MethodDelete, "/api/users/expired"+expiredQuery(before), nil, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	var usernames []string
	if err := json.Unmarshal(resp.Body, &usernames); err != nil {
		return nil, fmt.Errorf("parse deleted users: %w", err)
	}
	return usernames, nil
}

func expiredQuery(before int64) string {
	if before <= 0 {
		return ""
	}
	return "?expired_before=" + time.Unix(before, 0).UTC().Format("2006-01-02T15:04:05")
}

func (m *MarzbanClient) GetInboundTags(ctx context.Context) ([]string, error) {
	resp, err := m.request(ctx, http.MethodGet, "/api/inbounds", nil)
	if err != nil {
		return nil, err
	}

	var raw map[string][]struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("parse inbounds: %w", err)
	}

	var tags []string
	for _, items := range raw {
		for _, item := range items {
			if item.Tag != "" {
				tags = append(tags, item.Tag)
			}
		}
	}
	return tags, nil
}

func (m *MarzbanClient) GetUserTemplates(ctx context.Context) ([]UserTemplate, error) {
	resp, err := m.request(ctx, http.MethodGet, "/api/user_template", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		DataLimit      int64  `json:"data_limit"`
		ExpireDuration int64  `json:"expire_duration"` // seconds
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("parse user templates: %w", err)
	}

	templates := make([]UserTemplate, 0, len(raw))
	for _, t := range raw {
		templates = append(templates, UserTemplate{
			ID:         t.ID,
			Name:       t.Name,
			DataLimit:  t.DataLimit,
			ExpireDays: int(t.ExpireDuration / 86400),
		})
	}
	return templates, nil
}

func (m *MarzbanClient) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	resp, err := m.request(ctx, http.MethodGet, "/api/system", nil)
	if err != nil {
		return nil, err
	}

	var stats SystemStats
	if err := json.Unmarshal(resp.Body, &stats); err != nil {
		return nil, fmt.Errorf("parse system stats: %w", err)
	}
	return &stats, nil
}

func decodeUser(body []byte) (*User, error) {
	var raw struct {
		Username        string   `json:"username"`
		Status          string   `json:"status"`
		DataLimit       int64    `json:"data_limit"`
		UsedTraffic     int64    `json:"used_traffic"`
		Expire          int64    `json:"expire"`
		SubscriptionURL string   `json:"subscription_url"`
		Links           []string `json:"links"`
		Note            string   `json:"note"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse panel user: %w", err)
	}
	return &User{
		Username:    raw.Username,
		Status:      raw.Status,
		DataLimit:   raw.DataLimit,
		UsedTraffic: raw.UsedTraffic,
		Expire:      raw.Expire,
		SubURL:      raw.SubscriptionURL,
		Links:       raw.Links,
		Note:        raw.Note,
	}, nil
}
