package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Object is an uploaded file addressed by Key and served from URL.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (Object, error)
	Delete(ctx context.Context, key string) error
}

// Bucket is an ObjectStorage that can create its bucket on start-up.
type Bucket interface {
	ObjectStorage
	EnsureBucket(ctx context.Context) error
}

// New builds the backend named by driver: "minio" or "s3".
func New(ctx context.Context, driver string, cfg Config) (Bucket, error) {
	var (
		b   Bucket
		err error
	)
	switch driver {
	case "minio":
		b, err = NewMinioStorage(cfg)
	case "s3":
		b, err = NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// NewObjectKey returns a date-partitioned random key, e.g. posts/2026/10/16/<uuid>.png.
func NewObjectKey(prefix, ext string) string {
	d := time.Now().UTC()
	key := fmt.Sprintf("%s/%d/%02d/%02d/%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New())
	if ext != "" {
		key += "." + strings.TrimPrefix(ext, ".")
	}
	return key
}

// objectURL builds the public URL of key. PublicURL wins when set; otherwise the
// path-style endpoint URL is used.
func objectURL(cfg Config, key string) string {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		endpoint := stripScheme(cfg.Endpoint)
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + endpoint + "/" + cfg.Bucket
	}
	return base + "/" + key
}

func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimRight(endpoint, "/")
}
