package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agroadvisor/community/models"
)

// likeEscaper makes a search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// GormPostRepository stores posts in a relational database through GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a GORM backed post repository.
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *GormPostRepository) GetOwned(ctx context.Context, id, ownerID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *GormPostRepository) Update(ctx context.Context, post *models.Post, removedIDs []uint, added []models.Attachment) (*models.Post, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// MySQL reports zero affected rows for an unchanged row, so ownership
		// is checked with a locking read instead of RowsAffected.
		var owned models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ? AND user_id = ?", post.ID, post.UserID).
			First(&owned).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			return err
		}

		err = tx.Model(post).
			Select("title", "content", "category", "tags", "updated_at").
			Omit(clause.Associations).
			Updates(post).Error
		if err != nil {
			return err
		}

		if len(removedIDs) > 0 {
			if err := tx.Where("post_id = ? AND id IN ?", post.ID, removedIDs).Delete(&models.Attachment{}).Error; err != nil {
				return err
			}
		}

		if len(added) > 0 {
			for i := range added {
				added[i].PostID = post.ID
			}
			if err := tx.Create(&added).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetOwned(ctx, post.ID, post.UserID)
}

func (r *GormPostRepository) Delete(ctx context.Context, id, ownerID uint) ([]models.Attachment, error) {
	var removed []models.Attachment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		if err := tx.Where("post_id = ?", id).Find(&removed).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", id).Delete(&models.Attachment{}).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *GormPostRepository) ListByOwner(ctx context.Context, filter models.PostFilter) ([]models.Post, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", filter.OwnerID)
	if filter.Search != "" {
		like := "%" + likeEscaper.Replace(filter.Search) + "%"
		q = q.Where(r.db.Where("title LIKE ? ESCAPE '!'", like).Or("content LIKE ? ESCAPE '!'", like))
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	posts := []models.Post{}
	if total == 0 {
		return posts, 0, nil
	}
	err := q.Preload("Attachments").
		Order("created_at DESC").
		Order("id DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}
