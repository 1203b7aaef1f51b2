// Package client is a typed Go client for the community post API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agroadvisor/community/models"
)

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("community api %d: %s (code %d)", e.Status, e.Message, e.Code)
}

// Client talks to the community API on behalf of one user.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// WithHTTPClient replaces the underlying HTTP client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTimeout sets the HTTP timeout on a copy of the current client, so a
// client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := http.Client{}
		if c.HTTPClient != nil {
			hc = *c.HTTPClient
		}
		hc.Timeout = d
		c.HTTPClient = &hc
	}
}

// New creates a new Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PostFields are the text fields of a create or update.
type PostFields struct {
	Title    string
	Content  string
	Category string
	Tags     string
}

// File is a local file to attach.
type File struct {
	Name string
	Body io.Reader
}

// ListOptions selects a page of the caller's posts. Zero values are omitted.
type ListOptions struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

// PostPage is one page of the caller's posts.
type PostPage struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, "application/json", body, out)
}

// ListMine calls GET /api/community/posts/mine.
func (c *Client) ListMine(ctx context.Context, opts ListOptions) (*PostPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if s := strings.TrimSpace(opts.Search); s != "" {
		q.Set("search", s)
	}
	if opts.Category != "" && opts.Category != models.CategoryAll {
		q.Set("category", opts.Category)
	}

	path := "/api/community/posts/mine"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out PostPage
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost calls POST /api/community/posts.
func (c *Client) CreatePost(ctx context.Context, fields PostFields, files []File) (*models.Post, error) {
	body, contentType, err := encodePostForm(fields, files, nil)
	if err != nil {
		return nil, err
	}
	var out models.Post
	if err := c.do(ctx, http.MethodPost, "/api/community/posts", contentType, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost calls PUT /api/community/posts/{id}.
func (c *Client) UpdatePost(ctx context.Context, id uint, fields PostFields, files []File, removed []uint) (*models.Post, error) {
	body, contentType, err := encodePostForm(fields, files, removed)
	if err != nil {
		return nil, err
	}
	var out models.Post
	if err := c.do(ctx, http.MethodPut, postPath(id), contentType, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePost calls DELETE /api/community/posts/{id}.
func (c *Client) DeletePost(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, postPath(id), "", nil, nil)
}

// Register calls POST /api/users/register.
func (c *Client) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.doJSON(ctx, http.MethodPost, "/api/users/register", map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login calls POST /api/users/login.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.doJSON(ctx, http.MethodPost, "/api/users/login", map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout calls POST /api/users/logout, revoking the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/users/logout", nil, nil)
}

func postPath(id uint) string {
	return "/api/community/posts/" + strconv.FormatUint(uint64(id), 10)
}

func encodePostForm(fields PostFields, files []File, removed []uint) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range [][2]string{
		{"title", fields.Title},
		{"content", fields.Content},
		{"category", fields.Category},
		{"tags", fields.Tags},
	} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if len(removed) > 0 {
		b, err := json.Marshal(removed)
		if err != nil {
			return nil, "", err
		}
		if err := mw.WriteField("removedAttachments", string(b)); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		w, err := mw.CreateFormFile("attachments", f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(w, f.Body); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
