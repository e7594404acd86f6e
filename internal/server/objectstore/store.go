// Package objectstore wraps the S3 API calls the server needs: object
// inspection and removal, bucket checks, and presigned URL generation.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/dmitrijs2005/uploadvault/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Options configures the S3 client.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// ObjectInfo is the subset of HeadObject output used for confirmation.
type ObjectInfo struct {
	Size int64
	ETag string
}

type Store struct {
	client  *s3.Client
	presign *Presigner
	region  string
}

// LoadAWSConfig resolves an aws.Config from opts. Static credentials are used
// when both keys are set, otherwise the default provider chain applies.
func LoadAWSConfig(ctx context.Context, opts Options) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// New builds a Store for the given options.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := LoadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts), nil
}

// NewFromConfig builds a Store from an already resolved aws.Config.
func NewFromConfig(cfg aws.Config, opts Options) *Store {
	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if ep := strings.TrimSpace(opts.Endpoint); ep != "" {
			if !strings.Contains(ep, "://") {
				ep = "https://" + ep
			}
			o.BaseEndpoint = aws.String(ep)
		}
		o.UsePathStyle = opts.ForcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &Store{
		client:  client,
		presign: NewPresigner(client),
		region:  opts.Region,
	}
}

// Client exposes the underlying S3 client for callers that manage bucket
// notification configuration.
func (s *Store) Client() *s3.Client {
	return s.client
}

func (s *Store) Presigner() *Presigner {
	return s.presign
}

func (s *Store) PresignedURL(ctx context.Context, in PresignInput) (string, error) {
	return s.presign.PresignedURL(ctx, in)
}

// HeadObject returns size and ETag of bucket/key. A missing object yields
// common.ErrNotFound.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: object %s/%s", common.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("head object %s/%s: %w", bucket, key, err)
	}
	return &ObjectInfo{
		Size: aws.ToInt64(out.ContentLength),
		ETag: strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// DeleteObject removes bucket/key. S3 treats missing keys as success.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// HeadBucket checks the bucket is reachable and returns its region when the
// store reports one.
func (s *Store) HeadBucket(ctx context.Context, bucket string) (string, error) {
	out, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: bucket %s", common.ErrNotFound, bucket)
		}
		return "", fmt.Errorf("head bucket %s: %w", bucket, err)
	}
	return aws.ToString(out.BucketRegion), nil
}

// CreateBucket creates bucket in region. A bucket already owned by the
// caller counts as success.
func (s *Store) CreateBucket(ctx context.Context, bucket, region string) error {
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != "" && region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	_, err := s.client.CreateBucket(ctx, in)
	if err != nil {
		if apiErrorCode(err) == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// WaitBucketExists blocks until HeadBucket succeeds or timeout elapses.
func (s *Store) WaitBucketExists(ctx context.Context, bucket string, timeout time.Duration) error {
	w := s3.NewBucketExistsWaiter(s.client)
	return w.Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}, timeout)
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func httpStatusCode(err error) (int, bool) {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	switch apiErrorCode(err) {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	if status, ok := httpStatusCode(err); ok {
		return status == http.StatusNotFound
	}
	return false
}
