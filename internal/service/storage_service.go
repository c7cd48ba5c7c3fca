package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	presignedURLTTL      = 15 * time.Minute
	defaultStorageRegion = "us-east-1"
)

var ErrURLGenerationFailed = errors.New("failed to generate presigned URL")

// ProfileImageResolver turns a stored profile image reference into a URL a
// browser can load.
type ProfileImageResolver interface {
	ResolveImageURL(ctx context.Context, image string) (string, error)
}

// PassthroughImageResolver returns images unchanged. Used when object storage
// is not configured.
type PassthroughImageResolver struct{}

func NewPassthroughImageResolver() *PassthroughImageResolver {
	return &PassthroughImageResolver{}
}

func (PassthroughImageResolver) ResolveImageURL(_ context.Context, image string) (string, error) {
	return strings.TrimSpace(image), nil
}

// MinIOImageResolver presigns object keys from the profile image bucket;
// absolute URLs (OAuth provider avatars) pass through.
type MinIOImageResolver struct {
	client     *minio.Client
	bucketName string
	ttl        time.Duration
}

// NewMinIOImageResolver does not contact the server; presigning is local as
// long as the region is fixed.
func NewMinIOImageResolver(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOImageResolver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: defaultStorageRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOImageResolver{client: client, bucketName: bucketName, ttl: presignedURLTTL}, nil
}

func (s *MinIOImageResolver) ResolveImageURL(ctx context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" || isAbsoluteURL(image) {
		return image, nil
	}
	objectKey := strings.TrimPrefix(image, "/")
	if objectKey == "" || strings.Contains(objectKey, "..") {
		return "", fmt.Errorf("%w: invalid object key %q", ErrURLGenerationFailed, image)
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return presigned.String(), nil
}

func isAbsoluteURL(v string) bool {
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}
