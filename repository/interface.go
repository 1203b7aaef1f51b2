package repository

import (
	"context"
	"errors"

	"github.com/agroadvisor/community/models"
)

var (
	// ErrPostNotFound is returned when a post does not exist or is not owned by the caller.
	ErrPostNotFound = errors.New("post not found")
	// ErrUserNotFound is returned when no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when registering a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
)

// PostRepository persists posts and their attachment rows.
// Every read or write is scoped to the owning user.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetOwned(ctx context.Context, id, ownerID uint) (*models.Post, error)
	// Update writes the post's editable fields, detaches removed attachments and
	// attaches added ones in a single unit, then returns the reloaded post.
	Update(ctx context.Context, post *models.Post, removedIDs []uint, added []models.Attachment) (*models.Post, error)
	// Delete removes the post and its attachment rows, returning the removed attachments.
	Delete(ctx context.Context, id, ownerID uint) ([]models.Attachment, error)
	ListByOwner(ctx context.Context, filter models.PostFilter) ([]models.Post, int64, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}
