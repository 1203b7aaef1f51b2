package postform

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroadvisor/community/client"
	"github.com/agroadvisor/community/models"
)

type updateCall struct {
	id      uint
	fields  client.PostFields
	files   map[string]string
	removed []uint
}

type fakeAPI struct {
	mu      sync.Mutex
	lists   []client.ListOptions
	creates []client.PostFields
	updates []updateCall
	deletes []uint
	listErr error
	saveErr error
	block   chan struct{}
	total   int64
}

func (f *fakeAPI) ListMine(ctx context.Context, opts client.ListOptions) (*client.PostPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}
	pages := int((f.total + int64(opts.Limit) - 1) / int64(opts.Limit))
	return &client.PostPage{Posts: []models.Post{{ID: 1, Title: "p"}}, Page: opts.Page, Limit: opts.Limit, Total: f.total, TotalPages: pages}, nil
}

func (f *fakeAPI) CreatePost(ctx context.Context, fields client.PostFields, files []client.File) (*models.Post, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, fields)
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &models.Post{ID: 99}, nil
}

func (f *fakeAPI) UpdatePost(ctx context.Context, id uint, fields client.PostFields, files []client.File, removed []uint) (*models.Post, error) {
	contents := map[string]string{}
	for _, file := range files {
		b, _ := io.ReadAll(file.Body)
		contents[file.Name] = string(b)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{id: id, fields: fields, files: contents, removed: removed})
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &models.Post{ID: id}, nil
}

func (f *fakeAPI) DeletePost(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.saveErr
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists)
}

func (f *fakeAPI) lastList() client.ListOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[len(f.lists)-1]
}

func TestMountAndPagination(t *testing.T) {
	api := &fakeAPI{total: 15}
	m := New(api)
	ctx := context.Background()

	require.NoError(t, m.Mount(ctx))
	s := m.State()
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 2, s.TotalPages)
	assert.Equal(t, client.ListOptions{Page: 1, Limit: 10, Category: models.CategoryAll}, api.lastList())

	require.NoError(t, m.SetPage(ctx, 2))
	assert.Equal(t, 2, api.lastList().Page)
	assert.Equal(t, 2, api.listCalls())

	// Same page is a no-op.
	require.NoError(t, m.SetPage(ctx, 2))
	assert.Equal(t, 2, api.listCalls())
}

func TestFilterFetchSemantics(t *testing.T) {
	api := &fakeAPI{total: 3}
	m := New(api)
	ctx := context.Background()
	require.NoError(t, m.Mount(ctx))

	m.SetSearchQuery("maize")
	assert.Equal(t, 1, api.listCalls(), "typing does not fetch")

	require.NoError(t, m.SubmitSearch(ctx))
	assert.Equal(t, "maize", api.lastList().Search)

	require.NoError(t, m.SetCategory(ctx, "Irrigation"))
	assert.Equal(t, 3, api.listCalls())
	assert.Equal(t, "Irrigation", api.lastList().Category)

	require.NoError(t, m.SetCategory(ctx, "Irrigation"))
	assert.Equal(t, 3, api.listCalls())

	require.NoError(t, m.ResetFilters(ctx))
	assert.Equal(t, 4, api.listCalls())
	last := api.lastList()
	assert.Equal(t, "", last.Search)
	assert.Equal(t, models.CategoryAll, last.Category)
	assert.Equal(t, 1, last.Page)

	// Only the search changed: the query is cleared but nothing is fetched.
	m.SetSearchQuery("weeds")
	require.NoError(t, m.ResetFilters(ctx))
	assert.Equal(t, 4, api.listCalls())
	assert.Equal(t, "", m.State().SearchQuery)
}

func TestFetchErrorMessages(t *testing.T) {
	api := &fakeAPI{listErr: &client.APIError{Status: 500, Code: 50020, Message: "Something went wrong."}}
	m := New(api)
	require.Error(t, m.Mount(context.Background()))
	assert.Equal(t, "Something went wrong.", m.State().ListError)

	api.listErr = errors.New("dial tcp: connection refused")
	require.Error(t, m.Fetch(context.Background()))
	assert.Equal(t, "Failed to fetch your posts", m.State().ListError)

	api.listErr = &client.APIError{Status: http.StatusBadGateway, Message: "Bad Gateway"}
	require.Error(t, m.Fetch(context.Background()))
	assert.Equal(t, "Failed to fetch your posts", m.State().ListError)

	api.listErr = nil
	require.NoError(t, m.Fetch(context.Background()))
	assert.Empty(t, m.State().ListError)
}

func TestOpenCreateAndEdit(t *testing.T) {
	m := New(&fakeAPI{})

	m.OpenCreate()
	s := m.State()
	assert.True(t, s.FormOpen)
	assert.Equal(t, Draft{Category: models.DefaultCategory}, s.Draft)

	post := models.Post{
		ID:          5,
		Title:       "Drip irrigation",
		Content:     "Setup notes",
		Category:    "Irrigation",
		Tags:        []string{"wheat", "harvest", "2023"},
		Attachments: []models.Attachment{{ID: 10}, {ID: 11}},
	}
	m.OpenEdit(post)
	s = m.State()
	assert.Equal(t, "wheat, harvest, 2023", s.Draft.Tags)
	assert.Equal(t, models.ParseTags(s.Draft.Tags), post.Tags)
	assert.Len(t, s.ExistingAttachments, 2)
	assert.Empty(t, s.RemovedAttachments)

	m.RemoveExistingAttachment(10)
	m.RemoveExistingAttachment(42)
	s = m.State()
	assert.Equal(t, []models.Attachment{{ID: 11}}, s.ExistingAttachments)
	assert.Equal(t, []uint{10}, s.RemovedAttachments)

	m.CancelForm()
	s = m.State()
	assert.False(t, s.FormOpen)
	assert.Empty(t, s.RemovedAttachments)
}

func TestAddAndRemoveFiles(t *testing.T) {
	m := New(&fakeAPI{}, WithMaxFileBytes(10))

	assert.ErrorIs(t, m.AddFiles(FileFromBytes("a.txt", []byte("a"))), ErrFormClosed)

	m.OpenCreate()
	require.NoError(t, m.AddFiles(FileFromBytes("a.txt", []byte("a")), FileFromBytes("b.txt", []byte("b"))))
	require.NoError(t, m.AddFiles(FileFromBytes("c.txt", []byte("c"))))

	err := m.AddFiles(FileFromBytes("big.bin", make([]byte, 11)))
	require.Error(t, err)
	assert.NotEmpty(t, m.State().ActionError)
	assert.Len(t, m.State().NewFiles, 3)

	m.RemoveFile(1)
	m.RemoveFile(7)
	names := []string{}
	for _, f := range m.State().NewFiles {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.txt", "c.txt"}, names)
}

func TestSubmitUpdateSendsRemovalsAndFiles(t *testing.T) {
	api := &fakeAPI{total: 1}
	m := New(api)
	ctx := context.Background()

	m.OpenEdit(models.Post{ID: 5, Title: "t", Content: "c", Category: "General", Tags: []string{"x"},
		Attachments: []models.Attachment{{ID: 1}, {ID: 2}}})
	m.RemoveExistingAttachment(1)
	require.NoError(t, m.AddFiles(FileFromBytes("c.txt", []byte("new file"))))
	require.NoError(t, m.UpdateDraft(func(d *Draft) { d.Title = "t2"; d.ID = 777 }))

	require.NoError(t, m.Submit(ctx))
	require.Len(t, api.updates, 1)
	call := api.updates[0]
	assert.Equal(t, uint(5), call.id)
	assert.Equal(t, "t2", call.fields.Title)
	assert.Equal(t, "x", call.fields.Tags)
	assert.Equal(t, []uint{1}, call.removed)
	assert.Equal(t, map[string]string{"c.txt": "new file"}, call.files)

	s := m.State()
	assert.False(t, s.FormOpen)
	assert.Equal(t, 1, api.listCalls())
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	api := &fakeAPI{saveErr: errors.New("network down")}
	m := New(api)

	m.OpenCreate()
	require.NoError(t, m.UpdateDraft(func(d *Draft) { d.Title = "Aphids"; d.Content = "On the beans" }))
	require.NoError(t, m.AddFiles(FileFromBytes("a.txt", []byte("a"))))

	require.Error(t, m.Submit(context.Background()))
	s := m.State()
	assert.True(t, s.FormOpen)
	assert.Equal(t, "Aphids", s.Draft.Title)
	assert.Len(t, s.NewFiles, 1)
	assert.Equal(t, "Failed to save post", s.ActionError)
	assert.Zero(t, api.listCalls())

	api.saveErr = &client.APIError{Status: 400, Code: 40020, Message: `Invalid category "x"`}
	require.Error(t, m.Submit(context.Background()))
	assert.Equal(t, `Invalid category "x"`, m.State().ActionError)
}

func TestSubmitValidatesDraft(t *testing.T) {
	api := &fakeAPI{}
	m := New(api)

	assert.ErrorIs(t, m.Submit(context.Background()), ErrFormClosed)

	m.OpenCreate()
	require.NoError(t, m.UpdateDraft(func(d *Draft) { d.Title = "   "; d.Content = "body" }))
	require.Error(t, m.Submit(context.Background()))
	assert.Equal(t, "Title is required", m.State().ActionError)
	assert.Empty(t, api.creates)
}

func TestSubmitWhileInFlight(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	m := New(api)
	m.OpenCreate()
	require.NoError(t, m.UpdateDraft(func(d *Draft) { d.Title = "t"; d.Content = "c" }))

	done := make(chan error, 1)
	go func() { done <- m.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return m.State().Loading }, time.Second, time.Millisecond)
	assert.ErrorIs(t, m.Submit(context.Background()), ErrSubmitInFlight)

	close(api.block)
	require.NoError(t, <-done)
	assert.Len(t, api.creates, 1)
}

func TestDeleteConfirmation(t *testing.T) {
	api := &fakeAPI{total: 1}
	answer := false
	var asked string
	m := New(api, WithConfirmer(func(msg string) bool { asked = msg; return answer }))
	ctx := context.Background()

	require.NoError(t, m.Delete(ctx, 3))
	assert.Equal(t, DeleteConfirmation, asked)
	assert.Empty(t, api.deletes)
	assert.Zero(t, api.listCalls())

	answer = true
	require.NoError(t, m.Delete(ctx, 3))
	assert.Equal(t, []uint{3}, api.deletes)
	assert.Equal(t, 1, api.listCalls())

	api.saveErr = errors.New("boom")
	require.Error(t, m.Delete(ctx, 4))
	assert.Equal(t, "Failed to delete post", m.State().ActionError)
	assert.Equal(t, 1, api.listCalls())
}
