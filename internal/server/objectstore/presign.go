package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/uploadvault/internal/common"
)

// Operation selects which request a presigned URL authorizes.
type Operation string

const (
	OpGet Operation = "GET"
	OpPut Operation = "PUT"
)

var (
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// PresignInput describes one presigned URL request.
type PresignInput struct {
	Bucket    string
	Key       string
	Operation Operation
	Expires   time.Duration
	// ContentDisposition is applied to GET responses when set.
	ContentDisposition string
}

// Presigner issues time-limited URLs. It makes no network calls.
type Presigner struct {
	pc *s3.PresignClient
}

func NewPresigner(c *s3.Client) *Presigner {
	return &Presigner{pc: newS3PresignClient(c)}
}

func (p *Presigner) PresignedURL(ctx context.Context, in PresignInput) (string, error) {
	if in.Bucket == "" || in.Key == "" {
		return "", fmt.Errorf("%w: bucket and key are required", common.ErrInvalidInput)
	}
	if in.Expires <= 0 {
		return "", fmt.Errorf("%w: expiry must be positive", common.ErrInvalidInput)
	}
	expires := s3.WithPresignExpires(in.Expires)

	switch in.Operation {
	case OpPut:
		req, err := presignPutObject(p.pc, ctx, &s3.PutObjectInput{
			Bucket: aws.String(in.Bucket),
			Key:    aws.String(in.Key),
		}, expires)
		if err != nil {
			return "", fmt.Errorf("presign put: %w", err)
		}
		return req.URL, nil
	case OpGet:
		get := &s3.GetObjectInput{
			Bucket: aws.String(in.Bucket),
			Key:    aws.String(in.Key),
		}
		if in.ContentDisposition != "" {
			get.ResponseContentDisposition = aws.String(in.ContentDisposition)
		}
		req, err := presignGetObject(p.pc, ctx, get, expires)
		if err != nil {
			return "", fmt.Errorf("presign get: %w", err)
		}
		return req.URL, nil
	default:
		return "", fmt.Errorf("%w: unsupported operation %q", common.ErrInvalidInput, in.Operation)
	}
}
