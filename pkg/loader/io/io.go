package io

import (
	"context"
	"os"
	"sync"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOArchiveLoader loads archives directly from the local filesystem with caching.
type IOArchiveLoader struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOArchiveLoader creates a new filesystem-based archive loader.
func NewIOArchiveLoader() *IOArchiveLoader {
	return &IOArchiveLoader{
		cache: make(map[string][]byte),
	}
}

// GetFileBytes reads the file content from the filesystem. Results are cached.
func (l *IOArchiveLoader) GetFileBytes(ctx context.Context, file loader.ArchiveFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := os.ReadFile(file.FilePath)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// Forget drops the cached content of file.
func (l *IOArchiveLoader) Forget(file loader.ArchiveFile) {
	l.cacheMu.Lock()
	delete(l.cache, loader.CacheKey(file))
	l.cacheMu.Unlock()
}
