package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agroadvisor/community/config"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/routes"
	"github.com/agroadvisor/community/storage"
	"github.com/agroadvisor/community/utils"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	config.Override(config.AppConfig{
		JWTSecret:           "client-test-secret",
		TokenTTLHours:       1,
		GinMode:             "test",
		AllowedOrigins:      []string{"http://localhost:3000"},
		MaxAttachmentSizeMB: 5,
		MaxAttachments:      5,
	})
	utils.PasswordCost = bcrypt.MinCost

	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	srv := httptest.NewServer(routes.SetupRouter(routes.Dependencies{
		Posts: repository.NewMemoryPostRepository(),
		Users: repository.NewMemoryUserRepository(),
		Store: store,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, baseURL, username string) *Client {
	t.Helper()
	c := New(baseURL)
	res, err := c.Register(context.Background(), username, "password1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	c.Token = res.Token
	return c
}

func TestClientPostRoundTrip(t *testing.T) {
	srv := newServer(t)
	c := login(t, srv.URL, "tester")
	ctx := context.Background()

	created, err := c.CreatePost(ctx, PostFields{Title: "Hail damage", Content: "Lost a third of the crop", Category: "Weather Discussion", Tags: "hail, wheat"},
		[]File{{Name: "a.txt", Body: strings.NewReader("a")}, {Name: "b.txt", Body: strings.NewReader("b")}})
	require.NoError(t, err)
	require.Len(t, created.Attachments, 2)
	assert.Equal(t, []string{"hail", "wheat"}, created.Tags)

	updated, err := c.UpdatePost(ctx, created.ID, PostFields{Title: "Hail damage", Content: "Lost half", Category: "Weather Discussion"},
		[]File{{Name: "c.txt", Body: strings.NewReader("c")}}, []uint{created.Attachments[0].ID})
	require.NoError(t, err)
	names := []string{}
	for _, a := range updated.Attachments {
		names = append(names, a.OriginalName)
	}
	assert.ElementsMatch(t, []string{"b.txt", "c.txt"}, names)

	page, err := c.ListMine(ctx, ListOptions{Page: 1, Limit: 10, Category: "All"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Lost half", page.Posts[0].Content)

	require.NoError(t, c.DeletePost(ctx, created.ID))
	page, err = c.ListMine(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Posts)
}

func TestClientAPIErrors(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	_, err := New(srv.URL).ListMine(ctx, ListOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)

	c := login(t, srv.URL, "owner")
	err = c.DeletePost(ctx, 12345)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Post not found", apiErr.Message)

	_, err = c.CreatePost(ctx, PostFields{Content: "no title"}, nil)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Title is required", apiErr.Message)
}

func TestClientLogoutRevokesToken(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := login(t, srv.URL, "leaver")

	require.NoError(t, c.Logout(ctx))
	_, err := c.ListMine(ctx, ListOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClientOptions(t *testing.T) {
	assert.NotPanics(t, func() {
		c := New("http://localhost", WithHTTPClient(nil), WithTimeout(time.Second))
		require.NotNil(t, c.HTTPClient)
		assert.Equal(t, time.Second, c.HTTPClient.Timeout)
	})

	shared := &http.Client{Timeout: time.Minute}
	c := New("http://localhost/", WithHTTPClient(shared), WithTimeout(5*time.Second), WithToken("tok"))
	assert.Equal(t, 5*time.Second, c.HTTPClient.Timeout)
	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, "http://localhost", c.BaseURL)
	assert.Equal(t, "tok", c.Token)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).DeletePost(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestSessionPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := LoadSession(path)
	require.NoError(t, err)
	assert.False(t, s.Valid())

	require.NoError(t, SaveSession(path, Session{Token: "tok", UserID: 3}))
	s, err = LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, Session{Token: "tok", UserID: 3}, s)
	assert.True(t, s.Valid())

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path))
	s, err = LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, Session{}, s)
}
