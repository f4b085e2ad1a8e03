package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"weighbridge/internal/weighment"
)

// S3Config holds the parameters for an S3-compatible bucket (AWS S3 or MinIO).
type S3Config struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string // optional; custom endpoint such as MinIO
	PathStyle     bool
	PublicBaseURL string // optional; CDN or public bucket URL
}

// S3Store uploads snapshots to a single bucket. The bucket (or the CDN in
// front of it) must allow anonymous reads for the public URLs to resolve.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
}

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
	}
}

func (s *S3Store) objectKey(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}
	return strings.Trim(s.cfg.Prefix, "/") + "/" + key
}

// Put uploads the object, using multipart upload for large bodies.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", key, s.cfg.Bucket, err)
	}
	return nil
}

// PublicURL prefers the configured public base URL, then the custom
// endpoint, then the bucket's virtual-hosted AWS URL.
func (s *S3Store) PublicURL(key string) string {
	objectKey := s.objectKey(key)
	if s.cfg.PublicBaseURL != "" {
		return joinURL(s.cfg.PublicBaseURL, objectKey)
	}
	if s.cfg.Endpoint != "" {
		if u, err := url.Parse(s.cfg.Endpoint); err == nil && u.Host != "" {
			if s.cfg.PathStyle {
				return joinURL(u.Scheme+"://"+u.Host, s.cfg.Bucket+"/"+objectKey)
			}
			return joinURL(u.Scheme+"://"+s.cfg.Bucket+"."+u.Host, objectKey)
		}
	}
	return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region), objectKey)
}

// ValidateSetup checks that the bucket exists and is reachable.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", s.cfg.Bucket, err)
	}
	return nil
}

var _ weighment.ObjectStore = (*S3Store)(nil)
