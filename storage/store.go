package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/agroadvisor/community/config"
	"github.com/agroadvisor/community/models"
)

// Object is a file handed to a Store.
type Object struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Stored describes where a Store put an object.
type Stored struct {
	Key string
	URL string
}

// Store persists attachment bytes outside the database.
type Store interface {
	Save(ctx context.Context, obj Object) (Stored, error)
	Delete(ctx context.Context, key string) error
}

// FromConfig builds the Store selected by StorageDriver.
func FromConfig(ctx context.Context, cfg config.AppConfig) (Store, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocalStore(cfg.UploadDir, cfg.UploadPublicPath)
	case "cloudinary":
		return NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	case "s3":
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint, cfg.S3PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Classify sniffs the leading bytes of body and rewinds it. It returns the
// coarse attachment kind and the detected MIME type.
func Classify(body io.ReadSeeker) (string, string, error) {
	mt, err := mimetype.DetectReader(body)
	if err != nil {
		return "", "", err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}

	contentType := mt.String()
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.FileTypeImage, contentType, nil
	case strings.HasPrefix(contentType, "video/"):
		return models.FileTypeVideo, contentType, nil
	default:
		return models.FileTypeDocument, contentType, nil
	}
}

// objectKey builds a collision free key under a date prefix, keeping the original extension.
func objectKey(name string, now time.Time) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join(now.Format("2006/01/02"), uuid.NewString()+ext)
}
