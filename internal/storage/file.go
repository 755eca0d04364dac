package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const metaSuffix = ".meta.json"

// FileStore keeps objects on the local filesystem for development. Content
// type and metadata live in a "<key>.meta.json" sidecar.
type FileStore struct {
	baseDir       string
	publicBaseURL string
}

type sidecar struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewFileStore(baseDir, publicBaseURL string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

func (f *FileStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.HasSuffix(clean, metaSuffix) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.baseDir, filepath.FromSlash(clean)), nil
}

func (f *FileStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := f.Head(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileStore) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	meta := sidecar{ContentType: contentType}
	if len(metadata) > 0 {
		meta.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta.Metadata[strings.ToLower(k)] = v
		}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.WriteFile(p+metaSuffix, raw, 0644); err != nil {
		// drop the object so a retry does not dedupe against it
		if derr := f.Delete(ctx, key); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         f.GetPublicURL(key),
		ETag:        fmt.Sprintf(`"%d-%d"`, len(data), time.Now().UnixNano()),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (f *FileStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	info := &ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
		Metadata:     map[string]string{},
	}

	raw, err := os.ReadFile(p + metaSuffix)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// objects copied in by hand have no sidecar
	case err != nil:
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	default:
		var meta sidecar
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("corrupt metadata for %s: %w", key, err)
		}
		info.ContentType = meta.ContentType
		for k, v := range meta.Metadata {
			info.Metadata[k] = v
		}
	}
	return info, nil
}

func (f *FileStore) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/%s", f.publicBaseURL, key)
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	if err := os.Remove(p + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
