package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// GCSStore keeps blobs in a Cloud Storage bucket. References are gs://bucket/object URIs.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCSStore uses credentialsFile when set, otherwise Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string, logger *slog.Logger) (*GCSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", common.ErrInvalidInput)
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, mime string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	object := path.Join(s.prefix, k)

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = mime
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object %s: %w", object, err)
	}
	ref := "gs://" + s.bucket + "/" + object
	s.logger.Debug("blob stored", "ref", ref, "bytes", len(data))
	return ref, nil
}

func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(ref)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("blob %s: %w", ref, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open gcs object %s: %w", ref, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("%w: invalid gcs uri %q", common.ErrInvalidInput, uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: gcs uri %q has no object path", common.ErrInvalidInput, uri)
	}
	return parts[0], parts[1], nil
}
