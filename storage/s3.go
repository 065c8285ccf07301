package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/omzoxima/adminpannelbackend/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3 is the Amazon S3 backed object store, selected by configuration for
// deployments outside GCP. Time-limited references are presigned requests.
type S3 struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
}

// NewS3 creates an S3 store for the given bucket using static credentials.
func NewS3(region, bucket, accessKey, secretKey string) *S3 {
	client := s3.New(s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	})
	return &S3{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

// Put uploads data to the given object path.
func (s *S3) Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(path),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", path, s.bucket, err)
	}
	return nil
}

// GetText downloads the object at path and returns it as a string.
func (s *S3) GetText(ctx context.Context, path string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", path, err)
	}
	return string(data), nil
}

// ListPrefix returns the paths of all objects under prefix.
func (s *S3) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			paths = append(paths, aws.ToString(obj.Key))
		}
		if out.NextContinuationToken == nil {
			break
		}
		continuation = out.NextContinuationToken
	}
	return paths, nil
}

// SignedReadURL returns a presigned GET URL for the object at path.
func (s *S3) SignedReadURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign read for %s: %w", path, err)
	}
	return req.URL, nil
}

// SignedUploadURL returns a presigned PUT URL for a fresh object under
// folder with the given extension.
func (s *S3) SignedUploadURL(ctx context.Context, folder, extension string, ttl time.Duration) (SignedUpload, error) {
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	path := fmt.Sprintf("%s/%s%s", strings.TrimSuffix(folder, "/"), uuid.NewString(), extension)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return SignedUpload{}, fmt.Errorf("failed to presign upload for %s: %w", path, err)
	}
	return SignedUpload{URL: req.URL, Path: path}, nil
}

// DeletePrefix removes every object under prefix, logging and skipping
// individual failures.
func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	paths, err := s.ListPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, path := range paths {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(path),
		})
		if err != nil {
			logger.Warnf("Failed to delete object %s: %v", path, err)
		}
	}
	return nil
}

// URI returns the s3:// URI of an object path.
func (s *S3) URI(path string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, path)
}
