package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
)

// R2Settings holds what is needed to reach an R2 (S3-compatible) bucket.
type R2Settings struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
	Endpoint        string // overrides the account endpoint, e.g. for MinIO
}

// ObjectPutter is the part of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewR2Client builds an S3 client pointed at the R2 account endpoint.
func NewR2Client(ctx context.Context, cfg R2Settings) (*s3.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.Endpoint != ""
	}), nil
}

// EvidenceUploader stores evidence images in a bucket and returns their
// public URL.
type EvidenceUploader struct {
	client  ObjectPutter
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewEvidenceUploader returns an uploader writing into bucket. publicBaseURL
// is the prefix objects are served from.
func NewEvidenceUploader(client ObjectPutter, bucket, publicBaseURL string) *EvidenceUploader {
	return &EvidenceUploader{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}
}

// EvidenceKey is the object key for an upload: <profile>/<unix>_<quest><ext>.
func EvidenceKey(profileID, questID string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%d_%s%s", slug.Make(profileID), at.Unix(), slug.Make(questID), ext)
}

// UploadDataURL decodes dataURL and stores it under the evidence key for
// profileID and questID. Re-uploading the same key overwrites it.
func (u *EvidenceUploader) UploadDataURL(ctx context.Context, profileID, questID, dataURL string) (string, error) {
	contentType, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	key := EvidenceKey(profileID, questID, u.now(), ImageExtension(contentType))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return fmt.Sprintf("%s/%s", u.baseURL, key), nil
}
