package storage

import (
	"context"
	"strings"
	"time"
)

// Content types and cache lifetimes used across the pipeline. Playlists are
// rewritten in place and must not be cached long; segments never change.
const (
	ContentTypePlaylist = "application/x-mpegURL"
	ContentTypeSegment  = "video/MP2T"

	CacheShortLived = "private, max-age=60"
	CacheLongLived  = "public, max-age=31536000"
)

// SignedUpload is a time-limited write grant for one new object.
type SignedUpload struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// SchemeOf returns the URI scheme prefix (through "://") a store emits, so
// source references can be validated against the same backend the output
// folders live in.
func SchemeOf(s Store) string {
	uri := s.URI("")
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[:i+3]
	}
	return "gs://"
}

// Store is the narrow object-store contract the pipeline depends on. Paths
// are bucket-relative; URI converts one to the full storage URI understood
// by the transcoding service.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error
	GetText(ctx context.Context, path string) (string, error)
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	SignedReadURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	SignedUploadURL(ctx context.Context, folder, extension string, ttl time.Duration) (SignedUpload, error)
	DeletePrefix(ctx context.Context, prefix string) error
	URI(path string) string
}
