// Package storage uploads problem and profile images to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"mojgrad-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxFileSize   = 5 * 1024 * 1024
	DefaultFolder = "uploads"
	defaultExt    = ".jpg"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds 5MB")
	ErrUnsupportedType = errors.New("only JPG and PNG images are allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidKey      = errors.New("invalid object key")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ObjectStore is a flat key/value blob store.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Uploader validates images and stores them under generated keys
type Uploader struct {
	store     ObjectStore
	publicUrl string
}

func NewUploader(store ObjectStore, publicUrl string) *Uploader {
	return &Uploader{store: store, publicUrl: publicUrl}
}

// Upload stores data as folder/<uuid><ext> and returns its key and public URL.
func (u *Uploader) Upload(ctx context.Context, filename, folder string, data []byte) (*models.UploadResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = defaultExt
	}
	if !allowedExtensions[ext] {
		return nil, ErrUnsupportedType
	}

	contentType := http.DetectContentType(data)
	if !allowedContentTypes[contentType] {
		return nil, ErrUnsupportedType
	}

	key, err := ObjectKey(folder, ext)
	if err != nil {
		return nil, err
	}

	if err := u.store.Put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}

	url := PublicUrl(u.publicUrl, key)
	zap.L().Info("Image uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))

	return &models.UploadResult{
		Key:         key,
		Url:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes a previously uploaded object
func (u *Uploader) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := u.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds folder/<uuid><ext>. An empty folder yields a bare name.
func ObjectKey(folder, ext string) (string, error) {
	folder = strings.Trim(folder, "/")
	if ext == "" {
		ext = defaultExt
	}
	name := uuid.NewString() + ext
	if folder == "" {
		return name, nil
	}

	key := folder + "/" + name
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// PublicUrl joins base and key. Without a base the key is returned as-is.
func PublicUrl(base, key string) string {
	if base == "" {
		return key
	}
	if strings.HasSuffix(base, "/") {
		return base + key
	}
	return base + "/" + key
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// NewObjectStore builds the backend named by cfg.Backend ("local" or "s3")
func NewObjectStore(ctx context.Context, cfg models.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
