package models

import "time"

// Attachment kinds reported in FileType.
const (
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeDocument = "document"
)

// Attachment is a stored file that belongs to a post.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PostID       uint      `gorm:"index;not null" json:"post_id"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	FileType     string    `gorm:"size:16;not null" json:"file_type"`
	ContentType  string    `gorm:"size:128" json:"content_type"`
	Size         int64     `gorm:"not null;default:0" json:"size"`
	URL          string    `gorm:"size:1024" json:"url"`
	StorageKey   string    `gorm:"size:512;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
