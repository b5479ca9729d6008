package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

// localStore writes documents to a directory served by a static file host.
type localStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(cfg LocalConfig) (DocumentStore, error) {
	if cfg.Dir == "" {
		cfg.Dir = "./documents"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	return &localStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

func (s *localStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Keys come from internal callers but never trust them with the path.
	name := filepath.Base(filepath.Clean(key))
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid document key %q", key)
	}

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create document file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return s.baseURL + "/" + name, nil
}
