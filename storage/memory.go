package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memObject struct {
	data         []byte
	contentType  string
	cacheControl string
}

// Memory is an in-process object store used by tests and local development.
// Signed URLs are synthetic but unique per call, so callers can assert
// distinctness without a real signing backend.
type Memory struct {
	mu        sync.Mutex
	bucket    string
	objects   map[string]memObject
	signCount int
}

// NewMemory creates an empty in-memory store.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, objects: make(map[string]memObject)}
}

// Put stores data under path.
func (m *Memory) Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memObject{data: append([]byte(nil), data...), contentType: contentType, cacheControl: cacheControl}
	return nil
}

// GetText returns the object at path as a string.
func (m *Memory) GetText(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return "", fmt.Errorf("object %s not found", path)
	}
	return string(obj.data), nil
}

// ListPrefix returns the paths of all objects under prefix.
func (m *Memory) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// SignedReadURL returns a synthetic signed URL, unique per invocation.
func (m *Memory) SignedReadURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signCount++
	return fmt.Sprintf("https://storage.invalid/%s/%s?sig=%d&exp=%d",
		m.bucket, path, m.signCount, time.Now().Add(ttl).Unix()), nil
}

// SignedUploadURL returns a synthetic upload grant for a fresh object.
func (m *Memory) SignedUploadURL(ctx context.Context, folder, extension string, ttl time.Duration) (SignedUpload, error) {
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	path := fmt.Sprintf("%s/%s%s", strings.TrimSuffix(folder, "/"), uuid.NewString(), extension)
	url, _ := m.SignedReadURL(ctx, path, ttl)
	return SignedUpload{URL: url, Path: path}, nil
}

// DeletePrefix removes every object under prefix.
func (m *Memory) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			delete(m.objects, path)
		}
	}
	return nil
}

// URI returns the mem:// URI of an object path.
func (m *Memory) URI(path string) string {
	return fmt.Sprintf("mem://%s/%s", m.bucket, path)
}

// ObjectCount reports how many objects the store holds.
func (m *Memory) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Exists reports whether path holds an object.
func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

// ContentType returns the stored content type for path, if present.
func (m *Memory) ContentType(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[path].contentType
}

// CacheControl returns the stored cache control for path, if present.
func (m *Memory) CacheControl(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[path].cacheControl
}
