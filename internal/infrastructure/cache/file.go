// Package cache holds session cache backends that do not need a server.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

// FileCache keeps the last identity in a JSON file readable only by the
// owner.
type FileCache struct {
	mu   sync.Mutex
	path string
}

var _ ports.SessionCache = (*FileCache)(nil)

// NewFileCache creates the parent directory of path if needed.
func NewFileCache(path string) (*FileCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session cache: create directory: %w", err)
	}
	return &FileCache{path: path}, nil
}

func (c *FileCache) Read(_ context.Context) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session cache: read: %w", err)
	}

	var id domain.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	return &id, nil
}

func (c *FileCache) Write(_ context.Context, id *domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == nil {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("session cache: clear: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("session cache: encode: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file behind.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session cache: write: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("session cache: write: %w", err)
	}
	return nil
}
