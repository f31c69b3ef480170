package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/teamlounge/lounge-server/internal/config"
)

var ErrUnsupportedType = errors.New("unsupported content type")

// Image uploads only; the board embeds them in posts.
var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader hands out presigned URLs so image bytes never pass through the API
// server. Works against S3 or any S3-compatible endpoint (R2, MinIO).
type Uploader struct {
	client *s3.Client
	bucket string
	expiry time.Duration
}

func NewUploader(cfg *config.Config) *Uploader {
	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Region:      cfg.S3Region,
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Uploader{client: client, bucket: cfg.S3Bucket, expiry: cfg.UploadURLExpiry}
}

// PresignUpload returns a one-time PUT URL for a fresh object key under the
// uploader's anon id prefix.
func (u *Uploader) PresignUpload(ctx context.Context, anonID, contentType string) (uploadURL, key string, err error) {
	ext, ok := allowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	key = path.Join("uploads", anonID, uuid.NewString()+ext)

	presigner := s3.NewPresignClient(u.client)
	req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, key, nil
}

// PresignDownload returns a temporary GET URL for an existing object.
func (u *Uploader) PresignDownload(ctx context.Context, key string) (string, error) {
	presigner := s3.NewPresignClient(u.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// ObjectExists reports whether a key was actually uploaded.
func (u *Uploader) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
