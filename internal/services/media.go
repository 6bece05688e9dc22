package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"frontdesk-backend-go/internal/models"

	"github.com/google/uuid"
)

const BucketDeliveries = "deliveries"

// Photo is an image handed in at registration.
type Photo struct {
	ContentType string
	Body        io.Reader
}

// PhotoStorage stores an object under key and returns its public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Remove(ctx context.Context, key string) error
}

type AssetRecorder interface {
	RecordAsset(ctx context.Context, asset models.MediaAsset) error
	DeleteAsset(ctx context.Context, storageKey string) error
}

// DiskStorage keeps objects under BasePath and records each one as a media
// asset when Assets is set.
type DiskStorage struct {
	BasePath      string
	PublicBaseURL string
	Assets        AssetRecorder
}

func (d *DiskStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	targetPath, err := d.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", err
	}
	file, err := os.Create(targetPath)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), body)
	_ = file.Close()
	if err != nil {
		_ = os.Remove(targetPath)
		return "", err
	}
	if size == 0 {
		_ = os.Remove(targetPath)
		return "", errors.New("empty photo")
	}
	if d.Assets != nil {
		bucket := strings.SplitN(key, "/", 2)[0]
		err = d.Assets.RecordAsset(ctx, models.MediaAsset{
			ID:          uuid.NewString(),
			Bucket:      bucket,
			StorageKey:  key,
			ContentType: contentType,
			SizeBytes:   size,
			SHA256:      hex.EncodeToString(hasher.Sum(nil)),
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			_ = os.Remove(targetPath)
			return "", err
		}
	}
	return BuildAssetURL(d.PublicBaseURL, key), nil
}

// Remove deletes the object and its asset row. A missing file is not an error.
func (d *DiskStorage) Remove(ctx context.Context, key string) error {
	targetPath, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if d.Assets != nil {
		return d.Assets.DeleteAsset(ctx, key)
	}
	return nil
}

// Open returns the stored object for key. Keys that escape BasePath are rejected.
func (d *DiskStorage) Open(key string) (*os.File, error) {
	path, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (d *DiskStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", ErrBadRequest("Caminho de arquivo inválido.")
	}
	return filepath.Join(d.BasePath, filepath.FromSlash(clean)), nil
}

func BuildAssetURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/media/" + strings.TrimLeft(key, "/")
}

// DecodeDataURL unpacks an inline data:<type>;base64,<payload> photo.
func DecodeDataURL(raw string) (*Photo, error) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, ErrBadRequest("Foto inválida.")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, ErrBadRequest("Foto inválida.")
	}
	contentType := strings.TrimSuffix(header, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, ErrBadRequest("Foto inválida.")
	}
	return &Photo{ContentType: contentType, Body: bytes.NewReader(data)}, nil
}
