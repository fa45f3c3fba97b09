package chatclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"drone_chat/internal/domain"
)

const apiTimeout = 15 * time.Second

// API is a client for the REST side of the chat server.
type API struct {
	baseURL string
	http    *resty.Client
}

// Session is the result of an admin login.
type Session struct {
	Admin        *domain.Admin `json:"admin"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

// Status is the public operator availability.
type Status struct {
	AdminOnline bool `json:"adminOnline"`
	Admins      int  `json:"admins"`
}

type apiError struct {
	Error string `json:"error"`
}

func NewAPI(baseURL string) *API {
	baseURL = strings.TrimRight(baseURL, "/")
	return &API{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("User-Agent", "drone-chat-cli/1.0").
			SetTimeout(apiTimeout),
	}
}

// WebSocketURL returns the chat socket address for the same server.
func (a *API) WebSocketURL() string {
	url := a.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws/chat"
}

func (a *API) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	var apiErr apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&session).
		SetError(&apiErr).
		Post("/api/v1/auth/login")
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("login failed (%d): %s", resp.StatusCode(), apiErr.Error)
	}
	return &session, nil
}

func (a *API) Status(ctx context.Context) (*Status, error) {
	var status Status
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/api/v1/chat/status")
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status failed (%d): %s", resp.StatusCode(), resp.String())
	}
	return &status, nil
}

// Conversations lists the admin inbox, most recent activity first.
func (a *API) Conversations(ctx context.Context, token string, limit, offset int) ([]*domain.ConversationSummary, error) {
	var body struct {
		Conversations []*domain.ConversationSummary `json:"conversations"`
	}
	var apiErr apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"limit":  fmt.Sprint(limit),
			"offset": fmt.Sprint(offset),
		}).
		SetResult(&body).
		SetError(&apiErr).
		Get("/api/v1/admin/conversations")
	if err != nil {
		return nil, fmt.Errorf("inbox request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("inbox failed (%d): %s", resp.StatusCode(), apiErr.Error)
	}
	return body.Conversations, nil
}
