package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/agroadvisor/community/metrics"
	"github.com/agroadvisor/community/models"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/storage"
	"github.com/agroadvisor/community/utils"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Limits bounds what a single create or update may upload.
type Limits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// FileInput is one uploaded file. Body must support seeking so the type can be sniffed.
type FileInput struct {
	Name string
	Size int64
	Body io.ReadSeeker
}

// PostInput is the editable part of a post as submitted by the client.
type PostInput struct {
	Title    string
	Content  string
	Category string
	Tags     string
	Files    []FileInput
}

// ListQuery holds the raw list parameters.
type ListQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

// PostPage is one window of an owner's posts.
type PostPage struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// PostService implements the owner-scoped post operations.
type PostService struct {
	posts  repository.PostRepository
	store  storage.Store
	limits Limits
	log    *zap.Logger
}

func NewPostService(posts repository.PostRepository, store storage.Store, limits Limits, log *zap.Logger) *PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{posts: posts, store: store, limits: limits, log: log}
}

// ListMine returns the owner's posts matching q, newest first.
func (s *PostService) ListMine(ctx context.Context, ownerID uint, q ListQuery) (*PostPage, error) {
	filter := models.PostFilter{
		OwnerID:  ownerID,
		Search:   strings.TrimSpace(q.Search),
		Category: strings.TrimSpace(q.Category),
		Page:     q.Page,
		Limit:    q.Limit,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}
	if filter.Category == models.CategoryAll {
		filter.Category = ""
	}

	posts, total, err := s.posts.ListByOwner(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &PostPage{
		Posts:      posts,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// Create validates the input, uploads its files and persists a post owned by ownerID.
func (s *PostService) Create(ctx context.Context, ownerID uint, in PostInput) (post *models.Post, err error) {
	defer func() { metrics.ObservePostOperation("create", err) }()

	post, err = s.normalize(in)
	if err != nil {
		return nil, err
	}
	post.UserID = ownerID

	attachments, err := s.upload(ctx, in.Files, 0)
	if err != nil {
		return nil, err
	}
	post.Attachments = attachments

	if err := s.posts.Create(ctx, post); err != nil {
		s.discard(ctx, attachments)
		return nil, err
	}
	return post, nil
}

// Update rewrites an owned post. Attachments named in removedIDs are detached,
// new files are attached, and the removed objects leave the store after the
// database change has committed.
func (s *PostService) Update(ctx context.Context, ownerID, postID uint, in PostInput, removedIDs []uint) (post *models.Post, err error) {
	defer func() { metrics.ObservePostOperation("update", err) }()

	existing, err := s.posts.GetOwned(ctx, postID, ownerID)
	if err != nil {
		return nil, err
	}

	edit, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	edit.ID = existing.ID
	edit.UserID = ownerID

	// Only ids currently attached to this post can be removed.
	owned := make(map[uint]models.Attachment, len(existing.Attachments))
	for _, a := range existing.Attachments {
		owned[a.ID] = a
	}
	var removeIDs []uint
	var removed []models.Attachment
	for _, id := range removedIDs {
		if a, ok := owned[id]; ok {
			removeIDs = append(removeIDs, id)
			removed = append(removed, a)
			delete(owned, id)
		}
	}

	added, err := s.upload(ctx, in.Files, len(existing.Attachments)-len(removed))
	if err != nil {
		return nil, err
	}

	updated, err := s.posts.Update(ctx, edit, removeIDs, added)
	if err != nil {
		s.discard(ctx, added)
		return nil, err
	}

	s.discard(ctx, removed)
	return updated, nil
}

// Delete removes an owned post together with its attachments.
func (s *PostService) Delete(ctx context.Context, ownerID, postID uint) (err error) {
	defer func() { metrics.ObservePostOperation("delete", err) }()

	removed, err := s.posts.Delete(ctx, postID, ownerID)
	if err != nil {
		return err
	}
	s.discard(ctx, removed)
	return nil
}

func (s *PostService) normalize(in PostInput) (*models.Post, error) {
	title := utils.SanitizeText(in.Title)
	if title == "" {
		return nil, invalid("Title is required")
	}
	if utf8.RuneCountInString(title) > 255 {
		return nil, invalid("Title must be at most 255 characters")
	}
	content := utils.SanitizeHTML(in.Content)
	if content == "" {
		return nil, invalid("Content is required")
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	if !models.IsValidCategory(category) {
		return nil, invalid("Invalid category %q", category)
	}

	tags := make([]string, 0)
	for _, t := range models.ParseTags(in.Tags) {
		if t = utils.SanitizeText(t); t != "" {
			tags = append(tags, t)
		}
	}

	return &models.Post{
		Title:    title,
		Content:  content,
		Category: category,
		Tags:     tags,
	}, nil
}

// upload validates every file before storing any of them; a failure part way
// through removes what was already stored.
func (s *PostService) upload(ctx context.Context, files []FileInput, alreadyAttached int) ([]models.Attachment, error) {
	if s.limits.MaxFiles > 0 && alreadyAttached+len(files) > s.limits.MaxFiles {
		return nil, invalid("A post can have at most %d attachments", s.limits.MaxFiles)
	}
	for _, f := range files {
		if s.limits.MaxFileBytes > 0 && f.Size > s.limits.MaxFileBytes {
			return nil, invalid("File %q exceeds the %dMB limit", displayName(f.Name), s.limits.MaxFileBytes>>20)
		}
	}

	attachments := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		kind, contentType, err := storage.Classify(f.Body)
		if err != nil {
			s.discard(ctx, attachments)
			return nil, fmt.Errorf("classify %s: %w", f.Name, err)
		}

		name := displayName(f.Name)
		stored, err := s.store.Save(ctx, storage.Object{
			Name:        name,
			Size:        f.Size,
			ContentType: contentType,
			Body:        f.Body,
		})
		if err != nil {
			s.discard(ctx, attachments)
			return nil, fmt.Errorf("store %s: %w", name, err)
		}

		metrics.AttachmentsStoredTotal.WithLabelValues(kind).Inc()
		metrics.AttachmentBytesTotal.Add(float64(f.Size))
		attachments = append(attachments, models.Attachment{
			OriginalName: name,
			FileType:     kind,
			ContentType:  contentType,
			Size:         f.Size,
			URL:          stored.URL,
			StorageKey:   stored.Key,
		})
	}
	return attachments, nil
}

// discard removes stored objects whose rows are gone or were never written.
// Failures are logged; the caller's outcome does not depend on them.
func (s *PostService) discard(ctx context.Context, attachments []models.Attachment) {
	for _, a := range attachments {
		if a.StorageKey == "" {
			continue
		}
		if err := s.store.Delete(ctx, a.StorageKey); err != nil {
			metrics.AttachmentDeleteFailuresTotal.Inc()
			s.log.Warn("failed to delete stored attachment",
				zap.String("key", a.StorageKey),
				zap.Uint("attachment_id", a.ID),
				zap.Error(err))
		}
	}
}

func displayName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "attachment"
	}
	return base
}

// ParseRemovedAttachments decodes the removedAttachments form field: a JSON
// array of attachment ids given as numbers or numeric strings.
func ParseRemovedAttachments(raw string) ([]uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, invalid("removedAttachments must be a JSON array of attachment ids")
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		text := strings.Trim(string(item), `"`)
		id, err := strconv.ParseUint(text, 10, 64)
		if err != nil || id == 0 {
			return nil, invalid("invalid attachment id %s", string(item))
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
