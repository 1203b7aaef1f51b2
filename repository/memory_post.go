package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agroadvisor/community/models"
)

// MemoryPostRepository keeps posts in process memory. It backs the "memory"
// database driver and the test suites.
type MemoryPostRepository struct {
	mu               sync.RWMutex
	posts            map[uint]*models.Post
	nextPostID       uint
	nextAttachmentID uint
	now              func() time.Time
	last             time.Time
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts:            make(map[uint]*models.Post),
		nextPostID:       1,
		nextAttachmentID: 1,
		now:              time.Now,
	}
}

func (m *MemoryPostRepository) Create(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.tick()
	post.ID = m.nextPostID
	m.nextPostID++
	post.CreatedAt = now
	post.UpdatedAt = now
	for i := range post.Attachments {
		m.stampAttachment(&post.Attachments[i], post.ID, now)
	}

	m.posts[post.ID] = clonePost(post)
	return nil
}

func (m *MemoryPostRepository) GetOwned(ctx context.Context, id, ownerID uint) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok || p.UserID != ownerID {
		return nil, ErrPostNotFound
	}
	return clonePost(p), nil
}

func (m *MemoryPostRepository) Update(ctx context.Context, post *models.Post, removedIDs []uint, added []models.Attachment) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.posts[post.ID]
	if !ok || stored.UserID != post.UserID {
		return nil, ErrPostNotFound
	}

	now := m.tick()
	updated := clonePost(stored)
	updated.Title = post.Title
	updated.Content = post.Content
	updated.Category = post.Category
	updated.Tags = append([]string{}, post.Tags...)
	updated.UpdatedAt = now

	removed := make(map[uint]struct{}, len(removedIDs))
	for _, id := range removedIDs {
		removed[id] = struct{}{}
	}
	kept := updated.Attachments[:0]
	for _, a := range updated.Attachments {
		if _, drop := removed[a.ID]; !drop {
			kept = append(kept, a)
		}
	}
	updated.Attachments = kept

	for i := range added {
		m.stampAttachment(&added[i], post.ID, now)
		updated.Attachments = append(updated.Attachments, added[i])
	}

	m.posts[post.ID] = updated
	return clonePost(updated), nil
}

func (m *MemoryPostRepository) Delete(ctx context.Context, id, ownerID uint) ([]models.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok || p.UserID != ownerID {
		return nil, ErrPostNotFound
	}
	delete(m.posts, id)
	return append([]models.Attachment{}, p.Attachments...), nil
}

func (m *MemoryPostRepository) ListByOwner(ctx context.Context, filter models.PostFilter) ([]models.Post, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(filter.Search)
	var matched []*models.Post
	for _, p := range m.posts {
		if p.UserID != filter.OwnerID {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Content), needle) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	posts := []models.Post{}
	start := filter.Offset()
	if start >= len(matched) {
		return posts, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, p := range matched[start:end] {
		posts = append(posts, *clonePost(p))
	}
	return posts, total, nil
}

// tick returns a strictly increasing timestamp so listing order is stable.
func (m *MemoryPostRepository) tick() time.Time {
	now := m.now()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	return now
}

func (m *MemoryPostRepository) stampAttachment(a *models.Attachment, postID uint, now time.Time) {
	a.ID = m.nextAttachmentID
	m.nextAttachmentID++
	a.PostID = postID
	a.CreatedAt = now
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	c.Attachments = append([]models.Attachment{}, p.Attachments...)
	return &c
}
