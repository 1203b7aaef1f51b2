// Package postform holds the state behind the "my posts" screen: a paginated,
// filterable list of the caller's posts and the create/edit form with its
// attachment bookkeeping.
package postform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agroadvisor/community/client"
	"github.com/agroadvisor/community/models"
)

const (
	DeleteConfirmation = "Are you sure you want to delete this post?"

	fetchFailed  = "Failed to fetch your posts"
	saveFailed   = "Failed to save post"
	deleteFailed = "Failed to delete post"
)

var (
	// ErrSubmitInFlight is returned when Submit is called before the previous submit finished.
	ErrSubmitInFlight = errors.New("a submit is already in progress")
	// ErrFormClosed is returned by form operations while no draft is open.
	ErrFormClosed = errors.New("form is not open")
)

// API is the part of the community client the view model drives.
type API interface {
	ListMine(ctx context.Context, opts client.ListOptions) (*client.PostPage, error)
	CreatePost(ctx context.Context, fields client.PostFields, files []client.File) (*models.Post, error)
	UpdatePost(ctx context.Context, id uint, fields client.PostFields, files []client.File, removed []uint) (*models.Post, error)
	DeletePost(ctx context.Context, id uint) error
}

// Confirmer asks the user a yes/no question.
type Confirmer func(message string) bool

// State is a snapshot of everything the screen renders.
type State struct {
	Posts      []models.Post
	Page       int
	Limit      int
	Total      int64
	TotalPages int

	SearchQuery string
	Category    string

	Loading bool
	// ListError replaces the list view until a fetch succeeds.
	ListError string
	// ActionError is shown inline after a failed submit or delete.
	ActionError string

	FormOpen            bool
	Draft               Draft
	NewFiles            []LocalFile
	ExistingAttachments []models.Attachment
	RemovedAttachments  []uint
}

// Model is safe for use from multiple goroutines.
type Model struct {
	api          API
	confirm      Confirmer
	maxFileBytes int64

	mu         sync.Mutex
	state      State
	fetchSeq   uint64
	submitting atomic.Bool
}

// Option configures a Model.
type Option func(*Model)

// WithConfirmer sets the delete confirmation prompt. Without one, deletes proceed.
func WithConfirmer(c Confirmer) Option {
	return func(m *Model) { m.confirm = c }
}

// WithPageSize sets the number of posts per page.
func WithPageSize(limit int) Option {
	return func(m *Model) {
		if limit > 0 {
			m.state.Limit = limit
		}
	}
}

// WithMaxFileBytes sets the per-file size checked before upload; zero disables it.
func WithMaxFileBytes(n int64) Option {
	return func(m *Model) { m.maxFileBytes = n }
}

func New(api API, opts ...Option) *Model {
	m := &Model{
		api:          api,
		confirm:      func(string) bool { return true },
		maxFileBytes: 5 << 20,
		state: State{
			Page:       1,
			Limit:      10,
			TotalPages: 1,
			Category:   models.CategoryAll,
		},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns a copy of the current state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.Posts = append([]models.Post(nil), m.state.Posts...)
	s.NewFiles = append([]LocalFile(nil), m.state.NewFiles...)
	s.ExistingAttachments = append([]models.Attachment(nil), m.state.ExistingAttachments...)
	s.RemovedAttachments = append([]uint(nil), m.state.RemovedAttachments...)
	return s
}

// Mount performs the initial fetch.
func (m *Model) Mount(ctx context.Context) error {
	return m.Fetch(ctx)
}

// Fetch loads the current page with the current filters. A response that
// arrives after a newer fetch started is dropped.
func (m *Model) Fetch(ctx context.Context) error {
	m.mu.Lock()
	m.fetchSeq++
	seq := m.fetchSeq
	m.state.Loading = true
	opts := client.ListOptions{
		Page:     m.state.Page,
		Limit:    m.state.Limit,
		Search:   m.state.SearchQuery,
		Category: m.state.Category,
	}
	m.mu.Unlock()

	page, err := m.api.ListMine(ctx, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.fetchSeq {
		return err
	}
	m.state.Loading = false
	if err != nil {
		m.state.ListError = errorMessage(err, fetchFailed)
		return err
	}

	m.state.Posts = page.Posts
	m.state.Page = page.Page
	m.state.Limit = page.Limit
	m.state.Total = page.Total
	m.state.TotalPages = page.TotalPages
	m.state.ListError = ""
	return nil
}

// SetPage moves to another page and refetches when it changed.
func (m *Model) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	m.mu.Lock()
	changed := m.state.Page != page
	m.state.Page = page
	m.mu.Unlock()

	if !changed {
		return nil
	}
	return m.Fetch(ctx)
}

// SetCategory changes the category filter and refetches when it changed.
func (m *Model) SetCategory(ctx context.Context, category string) error {
	if category == "" {
		category = models.CategoryAll
	}
	m.mu.Lock()
	changed := m.state.Category != category
	m.state.Category = category
	m.mu.Unlock()

	if !changed {
		return nil
	}
	return m.Fetch(ctx)
}

// SetSearchQuery updates the search box without fetching.
func (m *Model) SetSearchQuery(q string) {
	m.mu.Lock()
	m.state.SearchQuery = q
	m.mu.Unlock()
}

// SubmitSearch fetches with the current search query.
func (m *Model) SubmitSearch(ctx context.Context) error {
	return m.Fetch(ctx)
}

// ResetFilters clears the search, selects all categories and returns to the
// first page. It refetches only when the page or category changed.
func (m *Model) ResetFilters(ctx context.Context) error {
	m.mu.Lock()
	changed := m.state.Page != 1 || m.state.Category != models.CategoryAll
	m.state.SearchQuery = ""
	m.state.Category = models.CategoryAll
	m.state.Page = 1
	m.mu.Unlock()

	if !changed {
		return nil
	}
	return m.Fetch(ctx)
}

// OpenCreate opens an empty form.
func (m *Model) OpenCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openLocked(Draft{Category: models.DefaultCategory}, nil)
}

// OpenEdit opens the form seeded from post.
func (m *Model) OpenEdit(post models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openLocked(Draft{
		ID:       post.ID,
		Title:    post.Title,
		Content:  post.Content,
		Category: post.Category,
		Tags:     strings.Join(post.Tags, ", "),
	}, post.Attachments)
}

func (m *Model) openLocked(d Draft, existing []models.Attachment) {
	m.state.FormOpen = true
	m.state.Draft = d
	m.state.NewFiles = nil
	m.state.ExistingAttachments = append([]models.Attachment(nil), existing...)
	m.state.RemovedAttachments = nil
	m.state.ActionError = ""
}

// CancelForm closes the form and discards the draft.
func (m *Model) CancelForm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.FormOpen = false
	m.state.Draft = Draft{}
	m.state.NewFiles = nil
	m.state.ExistingAttachments = nil
	m.state.RemovedAttachments = nil
}

// UpdateDraft applies edit to the open draft.
func (m *Model) UpdateDraft(edit func(d *Draft)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.FormOpen {
		return ErrFormClosed
	}
	id := m.state.Draft.ID
	edit(&m.state.Draft)
	m.state.Draft.ID = id
	return nil
}

// AddFiles queues files for upload. Files over the size limit are rejected
// together, before any is added.
func (m *Model) AddFiles(files ...LocalFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.FormOpen {
		return ErrFormClosed
	}
	if m.maxFileBytes > 0 {
		for _, f := range files {
			if f.Size > m.maxFileBytes {
				err := fmt.Errorf("%s is larger than %dMB", f.Name, m.maxFileBytes>>20)
				m.state.ActionError = err.Error()
				return err
			}
		}
	}
	m.state.NewFiles = append(m.state.NewFiles, files...)
	return nil
}

// RemoveFile drops the queued file at index.
func (m *Model) RemoveFile(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := m.state.NewFiles
	if index < 0 || index >= len(files) {
		return
	}
	m.state.NewFiles = append(files[:index:index], files[index+1:]...)
}

// RemoveExistingAttachment marks an attachment of the edited post for removal.
func (m *Model) RemoveExistingAttachment(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.state.ExistingAttachments[:0:0]
	found := false
	for _, a := range m.state.ExistingAttachments {
		if a.ID == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return
	}
	m.state.ExistingAttachments = kept
	m.state.RemovedAttachments = append(m.state.RemovedAttachments, id)
}

// Submit sends the draft as a create or an update. On success the form closes
// and the list is refetched; on failure the form and draft stay as they were.
func (m *Model) Submit(ctx context.Context) error {
	if !m.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer m.submitting.Store(false)

	m.mu.Lock()
	if !m.state.FormOpen {
		m.mu.Unlock()
		return ErrFormClosed
	}
	draft := m.state.Draft
	files := append([]LocalFile(nil), m.state.NewFiles...)
	removed := append([]uint(nil), m.state.RemovedAttachments...)
	m.state.Loading = true
	m.mu.Unlock()

	err := m.send(ctx, draft, files, removed)

	m.mu.Lock()
	m.state.Loading = false
	if err != nil {
		m.state.ActionError = errorMessage(err, saveFailed)
		m.mu.Unlock()
		return err
	}
	m.state.ActionError = ""
	m.state.FormOpen = false
	m.state.Draft = Draft{}
	m.state.NewFiles = nil
	m.state.ExistingAttachments = nil
	m.state.RemovedAttachments = nil
	m.mu.Unlock()

	return m.Fetch(ctx)
}

func (m *Model) send(ctx context.Context, draft Draft, files []LocalFile, removed []uint) error {
	if err := draft.Validate(); err != nil {
		return &validationError{err}
	}

	parts := make([]client.File, 0, len(files))
	for _, f := range files {
		if f.open == nil {
			return fmt.Errorf("%s has no content", f.Name)
		}
		rc, err := f.open()
		if err != nil {
			return err
		}
		defer rc.Close()
		parts = append(parts, client.File{Name: f.Name, Body: rc})
	}

	fields := client.PostFields{
		Title:    draft.Title,
		Content:  draft.Content,
		Category: draft.Category,
		Tags:     draft.Tags,
	}
	if draft.ID == 0 {
		_, err := m.api.CreatePost(ctx, fields, parts)
		return err
	}
	_, err := m.api.UpdatePost(ctx, draft.ID, fields, parts, removed)
	return err
}

// Delete removes a post after the user confirms, then refetches.
func (m *Model) Delete(ctx context.Context, id uint) error {
	if !m.confirm(DeleteConfirmation) {
		return nil
	}
	if err := m.api.DeletePost(ctx, id); err != nil {
		m.mu.Lock()
		m.state.ActionError = errorMessage(err, deleteFailed)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.state.ActionError = ""
	m.mu.Unlock()
	return m.Fetch(ctx)
}

type validationError struct{ err error }

func (e *validationError) Error() string { return e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

// errorMessage prefers a message the server sent, then local validation text,
// then the fallback.
func errorMessage(err error, fallback string) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 && apiErr.Message != "" {
		return apiErr.Message
	}
	var verr *validationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return fallback
}
