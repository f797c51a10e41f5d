// Package archive uploads minted certificates to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tavern-guild/tavern/internal/config"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// ObjectPutter is the subset of the S3 client used by the archiver.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each certificate as a JSON object.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	log    *logger.Logger
}

// NewS3Archiver builds an S3 client from cfg. A custom endpoint switches to
// path-style addressing for R2, Spaces and MinIO.
func NewS3Archiver(ctx context.Context, cfg *config.ArchiveConfig, log *logger.Logger) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Msg("Certificate archive enabled")

	return NewS3ArchiverWithClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewS3ArchiverWithClient creates an archiver around an existing client.
func NewS3ArchiverWithClient(client ObjectPutter, bucket, prefix string, log *logger.Logger) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, log: log}
}

// Key returns the object key for a certificate.
func (a *S3Archiver) Key(cert *models.Certificate) string {
	return path.Join(a.prefix, cert.AdventurerID, cert.ScrollID+".json")
}

// Archive uploads the certificate.
func (a *S3Archiver) Archive(ctx context.Context, cert *models.Certificate) error {
	body, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate %s: %w", cert.ScrollID, err)
	}

	key := a.Key(cert)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload certificate %s: %w", cert.ScrollID, err)
	}

	a.log.Debug().
		Str("scroll_id", cert.ScrollID).
		Str("key", key).
		Msg("Archived certificate")
	return nil
}
