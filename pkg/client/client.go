package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPrefix = "/api/v1"

var ErrNoSession = errors.New("not signed in")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Config struct {
	BaseURL string
	Store   SessionStore
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// OnUnauthorized runs after any 401 response has cleared the session.
	OnUnauthorized func()
	Timeout        time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore
}

func New(cfg Config) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		store:   cfg.Store,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
			Transport: &sessionTransport{
				next:           cfg.Transport,
				store:          cfg.Store,
				onUnauthorized: cfg.OnUnauthorized,
			},
		},
	}, nil
}

// sessionTransport attaches the cached access token to every request and drops the cached
// session on any 401.
type sessionTransport struct {
	next           http.RoundTripper
	store          SessionStore
	onUnauthorized func()
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if session, ok, err := t.store.Load(); err == nil && ok && session.AccessToken != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = t.store.Clear()
		if t.onUnauthorized != nil {
			t.onUnauthorized()
		}
	}
	return resp, nil
}

// Session returns the cached session, if any.
func (c *Client) Session() (Session, bool) {
	session, ok, err := c.store.Load()
	if err != nil {
		return Session{}, false
	}
	return session, ok
}

// RequireSession guards screens that need a signed-in user.
func (c *Client) RequireSession() (Session, error) {
	session, ok := c.Session()
	if !ok {
		return Session{}, ErrNoSession
	}
	return session, nil
}

type authData struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (User, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Refresh exchanges the refresh cookie for a new access token.
func (c *Client) Refresh(ctx context.Context) (User, error) {
	return c.authenticate(ctx, "/auth/refresh", nil)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (User, error) {
	var data authData
	if err := c.doJSON(ctx, http.MethodPost, path, body, &data); err != nil {
		return User{}, err
	}
	if err := c.store.Save(Session{User: data.User, AccessToken: data.AccessToken}); err != nil {
		return User{}, err
	}
	return data.User, nil
}

// Logout clears the server cookie and the local session. The local session is cleared even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var data struct {
		User User `json:"user"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &data)
	return data.User, err
}

func (c *Client) ListPosts(ctx context.Context, page, limit int) (FeedPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var feed FeedPage
	err := c.doJSON(ctx, http.MethodGet, "/posts?"+q.Encode(), nil, &feed)
	return feed, err
}

func (c *Client) GetPost(ctx context.Context, postId string) (Post, error) {
	var data struct {
		Post Post `json:"post"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/posts/"+url.PathEscape(postId), nil, &data)
	return data.Post, err
}

func (c *Client) CreatePost(ctx context.Context, content string, images []Image) (Post, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("content", content); err != nil {
		return Post{}, err
	}
	for _, img := range images {
		part, err := mw.CreateFormFile("images", img.Filename)
		if err != nil {
			return Post{}, err
		}
		if _, err := part.Write(img.Data); err != nil {
			return Post{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Post{}, err
	}

	var data struct {
		Post Post `json:"post"`
	}
	err := c.do(ctx, http.MethodPost, "/posts", &body, mw.FormDataContentType(), &data)
	return data.Post, err
}

func (c *Client) Comment(ctx context.Context, postId, text string) (Post, error) {
	var data struct {
		Post Post `json:"post"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/posts/"+url.PathEscape(postId)+"/comment", map[string]string{"text": text}, &data)
	return data.Post, err
}

func (c *Client) ToggleLike(ctx context.Context, postId string) (LikeResult, error) {
	var res LikeResult
	err := c.doJSON(ctx, http.MethodPost, "/posts/"+url.PathEscape(postId)+"/like", nil, &res)
	return res, err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if body == nil {
		return c.do(ctx, method, path, nil, "", out)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(b), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
