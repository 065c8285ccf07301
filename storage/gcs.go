package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/omzoxima/adminpannelbackend/logger"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS is the Google Cloud Storage backed object store. Signed URLs use the
// V4 scheme and the client's ambient credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS store for the given bucket. When credentialsJSON is
// non-empty it is used in place of application default credentials.
func NewGCS(ctx context.Context, bucket string, credentialsJSON []byte) (*GCS, error) {
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Put uploads data to the given object path.
func (g *GCS) Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error {
	wc := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = cacheControl
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish upload of %s: %w", path, err)
	}
	return nil
}

// GetText downloads the object at path and returns it as a string.
func (g *GCS) GetText(ctx context.Context, path string) (string, error) {
	rc, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open object %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", path, err)
	}
	return string(data), nil
}

// ListPrefix returns the paths of all objects under prefix.
func (g *GCS) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
		}
		paths = append(paths, attrs.Name)
	}
	return paths, nil
}

// SignedReadURL returns a V4 signed GET URL for the object at path.
func (g *GCS) SignedReadURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	url, err := g.client.Bucket(g.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign read URL for %s: %w", path, err)
	}
	return url, nil
}

// SignedUploadURL returns a V4 signed PUT URL for a fresh object under
// folder with the given extension.
func (g *GCS) SignedUploadURL(ctx context.Context, folder, extension string, ttl time.Duration) (SignedUpload, error) {
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	path := fmt.Sprintf("%s/%s%s", strings.TrimSuffix(folder, "/"), uuid.NewString(), extension)

	url, err := g.client.Bucket(g.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "PUT",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("failed to sign upload URL for %s: %w", path, err)
	}
	return SignedUpload{URL: url, Path: path}, nil
}

// DeletePrefix removes every object under prefix. Individual delete failures
// are logged and skipped so one stuck object does not strand the rest.
func (g *GCS) DeletePrefix(ctx context.Context, prefix string) error {
	paths, err := g.ListPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := g.client.Bucket(g.bucket).Object(path).Delete(ctx); err != nil {
			logger.Warnf("Failed to delete object %s: %v", path, err)
		}
	}
	return nil
}

// URI returns the gs:// URI of an object path.
func (g *GCS) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, path)
}
