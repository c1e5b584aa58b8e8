package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/Windi-Fikriyansyah/planmarket/internal/config"
)

// objectAPI is the subset of the S3 client the store needs.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store stores plan images in an S3 compatible bucket.
type S3Store struct {
	api     objectAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewS3Store connects to the bucket. Outside production a missing
// bucket is created.
func NewS3Store(ctx context.Context, cfg config.S3Config, prod bool) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		if prod {
			return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
		}
		log.Warnf("[Storage] Bucket %s not found, attempting to create it", cfg.BucketName)
		input := &s3.CreateBucketInput{Bucket: aws.String(cfg.BucketName)}
		if cfg.EndpointURL == "" && cfg.Region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(cfg.Region),
			}
		}
		if _, err := client.CreateBucket(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.BucketName, err)
		}
	}

	log.Infof("[Storage] Using bucket %s", cfg.BucketName)
	return newS3Store(client, cfg), nil
}

func newS3Store(api objectAPI, cfg config.S3Config) *S3Store {
	return &S3Store{
		api:     api,
		bucket:  cfg.BucketName,
		baseURL: PublicBaseURL(cfg),
		now:     time.Now,
	}
}

// PublicBaseURL is the prefix under which object keys are publicly served.
func PublicBaseURL(cfg config.S3Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.EndpointURL != "":
		return joinURL(cfg.EndpointURL, cfg.BucketName)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
	}
}

func (s *S3Store) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	mime, err := ValidateImage(filename, data)
	if err != nil {
		return "", err
	}

	key := ObjectKey(filename, s.now())
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mime),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[Storage] Uploaded s3://%s/%s (%d bytes)", s.bucket, key, len(data))
	return joinURL(s.baseURL, key), nil
}

func (s *S3Store) DeleteByURL(ctx context.Context, url string) error {
	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		return ErrForeignURL
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, key, err)
	}
	log.Infof("[Storage] Deleted s3://%s/%s", s.bucket, key)
	return nil
}

func (s *S3Store) Exists(ctx context.Context, url string) (bool, error) {
	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		return false, ErrForeignURL
	}
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
