package models

import (
	"strings"
	"time"
)

// DefaultCategory is assigned when a post is submitted without one.
const DefaultCategory = "General"

// CategoryAll is the list filter sentinel meaning "no category filter".
const CategoryAll = "All"

// Categories enumerates the accepted post categories.
var Categories = []string{
	"General",
	"Crop Help",
	"Soil Issues",
	"Weather Discussion",
	"Market Updates",
	"Pest Control",
	"Irrigation",
	"Equipment",
	"Success Stories",
}

// Post represents a community post owned by a single user.
type Post struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	UserID      uint         `gorm:"index;not null" json:"user_id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	Category    string       `gorm:"size:64;index;default:'General'" json:"category"`
	Tags        []string     `gorm:"serializer:json;type:text" json:"tags"`
	Attachments []Attachment `json:"attachments"` // rows removed with the post inside the repository Delete transaction
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PostFilter narrows an owner's post listing.
type PostFilter struct {
	OwnerID  uint
	Search   string
	Category string
	Page     int
	Limit    int
}

// Offset returns the row offset for the filter's page.
func (f PostFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// IsValidCategory reports whether c is one of the accepted categories.
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseTags splits a comma separated tag string, trimming blanks and dropping empties.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
