package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads attachments to Cloudinary. Keys are "<resource type>/<public id>"
// because deletion needs both.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(url, folder string) (*CloudinaryStore, error) {
	if url == "" {
		return nil, errors.New("cloudinary url is not configured")
	}
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, obj Object) (Stored, error) {
	key := objectKey(obj.Name, time.Now())
	publicID := strings.ReplaceAll(strings.TrimSuffix(key, path.Ext(key)), "/", "_")
	res, err := s.cld.Upload.Upload(ctx, obj.Body, uploader.UploadParams{
		Folder:   s.folder,
		PublicID: publicID,
	})
	if err != nil {
		return Stored{}, err
	}
	if res.Error.Message != "" {
		return Stored{}, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return Stored{Key: res.ResourceType + "/" + res.PublicID, URL: res.SecureURL}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	resourceType, publicID, ok := splitCloudinaryKey(key)
	if !ok {
		return fmt.Errorf("invalid cloudinary key %q", key)
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}
	return nil
}

func splitCloudinaryKey(key string) (string, string, bool) {
	resourceType, publicID, ok := strings.Cut(key, "/")
	if !ok || resourceType == "" || publicID == "" {
		return "", "", false
	}
	return resourceType, publicID, true
}
