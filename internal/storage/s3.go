package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"housing-chat-service/internal/apperrors"
)

// Uploader stores message attachments and returns their public location.
type Uploader interface {
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (UploadResult, error)
}

// UploadResult locates a stored attachment.
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// S3Uploader stores attachments in an S3 bucket.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	region   string
}

// NewS3Uploader loads the default AWS credential chain for the region.
func NewS3Uploader(ctx context.Context, region, bucket string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		region:   region,
	}, nil
}

// Upload streams the body to S3 under a random key that keeps the original
// extension, so download clients infer the file type.
func (u *S3Uploader) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (UploadResult, error) {
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), filepath.Ext(filename))
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return UploadResult{}, apperrors.UploadFailed("attachment upload failed", err)
	}

	url := out.Location
	if url == "" {
		url = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
	}
	return UploadResult{URL: url, Key: key}, nil
}
