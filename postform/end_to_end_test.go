package postform

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agroadvisor/community/client"
	"github.com/agroadvisor/community/config"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/routes"
	"github.com/agroadvisor/community/storage"
	"github.com/agroadvisor/community/utils"
)

func TestEndToEndAgainstServer(t *testing.T) {
	config.Override(config.AppConfig{
		JWTSecret:           "postform-secret",
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
	defer srv.Close()

	ctx := context.Background()
	api := client.New(srv.URL)
	auth, err := api.Register(ctx, "fieldworker", "password1")
	require.NoError(t, err)
	api.Token = auth.Token

	m := New(api, WithConfirmer(func(string) bool { return true }))
	require.NoError(t, m.Mount(ctx))
	assert.Zero(t, m.State().Total)

	m.OpenCreate()
	require.NoError(t, m.UpdateDraft(func(d *Draft) {
		d.Title = "Armyworm sighting"
		d.Content = "Found larvae in the maize field"
		d.Category = "Pest Control"
		d.Tags = "maize, pests"
	}))
	require.NoError(t, m.AddFiles(FileFromBytes("a.txt", []byte("a")), FileFromBytes("b.txt", []byte("b"))))
	require.NoError(t, m.Submit(ctx))

	s := m.State()
	require.Len(t, s.Posts, 1)
	created := s.Posts[0]
	assert.Equal(t, []string{"maize", "pests"}, created.Tags)
	require.Len(t, created.Attachments, 2)

	m.OpenEdit(created)
	m.RemoveExistingAttachment(created.Attachments[0].ID)
	require.NoError(t, m.AddFiles(FileFromBytes("c.txt", []byte("c"))))
	require.NoError(t, m.Submit(ctx))

	names := []string{}
	for _, a := range m.State().Posts[0].Attachments {
		names = append(names, a.OriginalName)
	}
	assert.ElementsMatch(t, []string{"b.txt", "c.txt"}, names)

	require.NoError(t, m.SetCategory(ctx, "Irrigation"))
	assert.Zero(t, m.State().Total)
	require.NoError(t, m.ResetFilters(ctx))
	assert.Equal(t, int64(1), m.State().Total)

	require.NoError(t, m.Delete(ctx, created.ID))
	assert.Zero(t, m.State().Total)
	assert.Empty(t, m.State().ActionError)
}
