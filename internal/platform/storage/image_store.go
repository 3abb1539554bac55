package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"

	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const (
	defaultPublicHost   = "https://storage.googleapis.com"
	defaultCacheControl = "public, max-age=86400"
)

// ObjectWriter opens a writer for one object. It exists so tests can capture
// uploads without a bucket.
type ObjectWriter func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// ImageStore uploads product images to a Cloud Storage bucket and returns the
// public URL of the written object.
type ImageStore struct {
	bucket     string
	publicHost string
	open       ObjectWriter
	newVersion func() string
}

var _ services.ImageStore = (*ImageStore)(nil)

// ImageStoreOption customises the image store.
type ImageStoreOption func(*ImageStore)

// WithPublicHost replaces the host used to build image URLs, e.g. a CDN.
func WithPublicHost(host string) ImageStoreOption {
	return func(s *ImageStore) {
		if host = strings.TrimRight(strings.TrimSpace(host), "/"); host != "" {
			s.publicHost = host
		}
	}
}

// WithObjectWriter overrides how objects are written.
func WithObjectWriter(open ObjectWriter) ImageStoreOption {
	return func(s *ImageStore) {
		if open != nil {
			s.open = open
		}
	}
}

// WithVersionGenerator overrides the per-upload object version.
func WithVersionGenerator(fn func() string) ImageStoreOption {
	return func(s *ImageStore) {
		if fn != nil {
			s.newVersion = fn
		}
	}
}

// NewImageStore binds an image store to bucket. client may be nil when
// WithObjectWriter is supplied.
func NewImageStore(client *storage.Client, bucket string, opts ...ImageStoreOption) (*ImageStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	s := &ImageStore{
		bucket:     bucket,
		publicHost: defaultPublicHost,
		newVersion: func() string { return strings.ToLower(ulid.Make().String()) },
	}
	if client != nil {
		s.open = gcsWriter(client)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.open == nil {
		return nil, errors.New("storage: client is required")
	}
	return s, nil
}

var errInvalidBucket = errors.New("storage: bucket name is required")

// PutProductImage writes data under the product's image prefix.
func (s *ImageStore) PutProductImage(ctx context.Context, companyID, productID, contentType string, data []byte) (string, error) {
	if s == nil || s.open == nil {
		return "", errors.New("storage: image store not initialised")
	}
	object, err := ProductImagePath(companyID, productID, s.newVersion(), contentType)
	if err != nil {
		return "", err
	}

	w := s.open(ctx, s.bucket, object, contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: finalise %s: %w", object, err)
	}
	return s.publicURL(object), nil
}

func (s *ImageStore) publicURL(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicHost, s.bucket, strings.Join(segments, "/"))
}

func gcsWriter(client *storage.Client) ObjectWriter {
	return func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		w.CacheControl = defaultCacheControl
		w.Metadata = map[string]string{"uploadedAt": time.Now().UTC().Format(time.RFC3339)}
		return w
	}
}
