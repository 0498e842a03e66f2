// Package storage keeps the raw bytes of uploaded statements so a retry can rerun
// the pipeline without a new upload.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// BlobStore puts bytes under a key and returns an opaque reference for Get.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, mime string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// New picks the backend named in cfg.
func New(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalRoot, logger)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("%w: empty storage key", common.ErrInvalidInput)
	}
	return k, nil
}
