package postform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agroadvisor/community/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Draft is the form's working copy of a post. ID is zero while creating.
type Draft struct {
	ID       uint
	Title    string `validate:"required,max=255"`
	Content  string `validate:"required"`
	Category string `validate:"required"`
	Tags     string `validate:"max=1000"`
}

// Validate checks the fields the server would reject, using trimmed values.
func (d Draft) Validate() error {
	trimmed := Draft{
		Title:    strings.TrimSpace(d.Title),
		Content:  strings.TrimSpace(d.Content),
		Category: strings.TrimSpace(d.Category),
		Tags:     d.Tags,
	}
	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if verrs[0].Tag() == "required" {
				return fmt.Errorf("%s is required", verrs[0].Field())
			}
			return fmt.Errorf("%s is too long", verrs[0].Field())
		}
		return err
	}
	if !models.IsValidCategory(trimmed.Category) {
		return fmt.Errorf("invalid category %q", trimmed.Category)
	}
	return nil
}

// LocalFile is a file picked for upload but not yet sent.
type LocalFile struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// FileFromPath describes a file on disk.
func FileFromPath(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, err
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}
	return LocalFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileFromBytes wraps in-memory content.
func FileFromBytes(name string, data []byte) LocalFile {
	return LocalFile{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}
