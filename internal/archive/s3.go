package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3/R2 mirror backend.
type S3Config struct {
	Region      string
	Bucket      string
	AccessKey   string
	SecretKey   string
	EndpointURL string // set for R2: https://<account>.r2.cloudflarestorage.com
}

// S3Mirror uploads completed media files to an S3-compatible bucket.
type S3Mirror struct {
	client *s3.Client
	bucket string
}

// NewS3Mirror builds an S3Mirror, grounded on the teacher's
// internal/storage/s3.go client construction (static credentials when
// given, otherwise the default provider chain; custom endpoint for R2).
func NewS3Mirror(ctx context.Context, cfg S3Config) (*S3Mirror, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
			awsconfig.WithRegion(cfg.Region),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{client: client, bucket: cfg.Bucket}, nil
}

// Upload streams localPath to remoteKey in the configured bucket.
func (m *S3Mirror) Upload(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(remoteKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("archive: put object %s: %w", remoteKey, err)
	}
	return nil
}

// Exists reports whether remoteKey is already in the bucket.
func (m *S3Mirror) Exists(ctx context.Context, remoteKey string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(remoteKey),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
