package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrArchiveDisabled is returned when no export bucket is configured
var ErrArchiveDisabled = errors.New("tour export disabled")

const exportURLExpiry = 15 * time.Minute

// Archiver stores an export document and returns a temporary download URL
type Archiver interface {
	Store(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// S3Archive stores tour exports in an S3 bucket
type S3Archive struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Archive creates an archive in the bucket. The endpoint override is
// meant for S3 compatible storage and switches to path style addressing.
func NewS3Archive(awsCfg aws.Config, bucket, endpoint string) *S3Archive {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// Store uploads the body and presigns a GET for it
func (a *S3Archive) Store(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if a == nil || a.bucket == "" {
		return "", ErrArchiveDisabled
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	request, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = exportURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return request.URL, nil
}
