// Package s3 implements the storage adapter for S3-compatible object stores
// (AWS S3, MinIO). The external ID of a stored object is its bucket key.
//
// Resumable sessions are presigned PUT URLs. The PUT response carries no
// body, so the object key doubles as the session URL path and clients
// recover the external ID from there.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/peardrive/peardrive/internal/storage"
)

const presignExpiry = 15 * time.Minute

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Adapter talks to an S3-compatible object store.
type Adapter struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string

	// now is overridable for tests that assert key layout.
	now func() time.Time
}

// New creates an S3 adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &Adapter{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		now:     time.Now,
	}, nil
}

// Provider returns "s3".
func (a *Adapter) Provider() string { return "s3" }

// objectKey builds a date-partitioned key for a new object.
func (a *Adapter) objectKey() string {
	t := a.now().UTC()
	return fmt.Sprintf("users/%d/%02d/%02d/%s", t.Year(), t.Month(), t.Day(), uuid.NewString())
}

// Upload streams the object through the server into the bucket.
func (a *Adapter) Upload(ctx context.Context, info storage.ObjectInfo, body io.Reader) (*storage.UploadResult, error) {
	key := a.objectKey()
	_, err := a.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(info.MimeType),
		ContentLength: aws.Int64(info.Size),
	})
	if err != nil {
		return nil, storage.NewProviderError("s3", "upload", 0, "", err)
	}

	size := info.Size
	if head, err := a.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}); err == nil && head.ContentLength != nil {
		size = *head.ContentLength
	}

	return &storage.UploadResult{
		ID:       key,
		Name:     info.Name,
		Size:     size,
		MimeType: info.MimeType,
	}, nil
}

// StartUploadSession presigns a PUT for a fresh object key.
func (a *Adapter) StartUploadSession(ctx context.Context, info storage.ObjectInfo) (string, error) {
	key := a.objectKey()
	req, err := a.presign.PresignPutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(info.MimeType),
	}, awss3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", storage.NewProviderError("s3", "start_session", 0, "", err)
	}
	return req.URL, nil
}

// Delete removes the object. Deleting a missing key is not an error in S3.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(externalID),
	})
	if err != nil {
		return storage.NewProviderError("s3", "delete", 0, "", err)
	}
	return nil
}

// GetDownloadURL presigns a time-limited GET for the object.
func (a *Adapter) GetDownloadURL(ctx context.Context, externalID string) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(externalID),
	}, awss3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", storage.NewProviderError("s3", "get_download_url", 0, "", err)
	}
	return req.URL, nil
}

// DownloadStream streams the object's content through the server.
func (a *Adapter) DownloadStream(ctx context.Context, externalID string) (io.ReadCloser, int64, error) {
	out, err := a.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(externalID),
	})
	if err != nil {
		return nil, 0, storage.NewProviderError("s3", "download_stream", 0, "", err)
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}
