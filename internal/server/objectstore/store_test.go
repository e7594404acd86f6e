package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "uploadvault-test"

func setupFakeS3(t *testing.T) *Store {
	t.Helper()
	backend := s3mem.New()
	fs := gofakes3.New(backend)
	server := httptest.NewServer(fs.Server())
	t.Cleanup(server.Close)

	if err := backend.CreateBucket(testBucket); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	store, err := New(context.Background(), Options{
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)
	return store
}

func putObject(t *testing.T, s *Store, key, body string) {
	t.Helper()
	_, err := s.Client().PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(testBucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(body),
	})
	require.NoError(t, err)
}

func TestHeadObject(t *testing.T) {
	s := setupFakeS3(t)
	ctx := context.Background()

	_, err := s.HeadObject(ctx, testBucket, "uploads/missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	putObject(t, s, "uploads/a.txt", "hello")

	info, err := s.HeadObject(ctx, testBucket, "uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.NotContains(t, info.ETag, `"`)
}

func TestDeleteObject(t *testing.T) {
	s := setupFakeS3(t)
	ctx := context.Background()

	putObject(t, s, "uploads/a.txt", "hello")
	require.NoError(t, s.DeleteObject(ctx, testBucket, "uploads/a.txt"))

	_, err := s.HeadObject(ctx, testBucket, "uploads/a.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBucketOperations(t *testing.T) {
	s := setupFakeS3(t)
	ctx := context.Background()

	_, err := s.HeadBucket(ctx, testBucket)
	require.NoError(t, err)

	_, err = s.HeadBucket(ctx, "absent-bucket")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.CreateBucket(ctx, "fresh-bucket", "us-east-1"))
	_, err = s.HeadBucket(ctx, "fresh-bucket")
	require.NoError(t, err)
}

func TestCreateBucket_ExistingBucket(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{code: "BucketAlreadyOwnedByYou", wantErr: false},
		{code: "BucketAlreadyExists", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusConflict)
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+tt.code+`</Code><Message>bucket exists</Message></Error>`)
			}))
			t.Cleanup(srv.Close)

			store, err := New(context.Background(), Options{
				Region:          "us-east-1",
				Endpoint:        srv.URL,
				AccessKeyID:     "test",
				SecretAccessKey: "test",
				ForcePathStyle:  true,
			})
			require.NoError(t, err)

			err = store.CreateBucket(context.Background(), "profile-pictures-dev", "us-east-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPresignedURL(t *testing.T) {
	s := setupFakeS3(t)
	ctx := context.Background()

	raw, err := s.PresignedURL(ctx, PresignInput{
		Bucket:    testBucket,
		Key:       "uploads/a.txt",
		Operation: OpPut,
		Expires:   time.Minute,
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/"+testBucket+"/uploads/a.txt", u.Path)
	assert.Equal(t, "60", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	raw, err = s.PresignedURL(ctx, PresignInput{
		Bucket:             testBucket,
		Key:                "uploads/a.txt",
		Operation:          OpGet,
		Expires:            2 * time.Minute,
		ContentDisposition: `attachment; filename="a.txt"`,
	})
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "120", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="a.txt"`, u.Query().Get("response-content-disposition"))
}

func TestPresignedURL_InvalidInput(t *testing.T) {
	s := setupFakeS3(t)
	ctx := context.Background()

	cases := []PresignInput{
		{Key: "uploads/a", Operation: OpPut, Expires: time.Minute},
		{Bucket: testBucket, Operation: OpPut, Expires: time.Minute},
		{Bucket: testBucket, Key: "uploads/a", Operation: OpPut},
		{Bucket: testBucket, Key: "uploads/a", Operation: "DELETE", Expires: time.Minute},
	}
	for _, in := range cases {
		_, err := s.PresignedURL(ctx, in)
		assert.ErrorIs(t, err, common.ErrInvalidInput, "%+v", in)
	}
}

func TestPresignedURL_SignerError(t *testing.T) {
	s := setupFakeS3(t)

	orig := presignPutObject
	t.Cleanup(func() { presignPutObject = orig })
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("sign failed")
	}

	_, err := s.PresignedURL(context.Background(), PresignInput{
		Bucket: testBucket, Key: "uploads/a", Operation: OpPut, Expires: time.Minute,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign failed")
}

func TestNewFromConfig_AppliesOptions(t *testing.T) {
	orig := newS3ClientFromConfig
	t.Cleanup(func() { newS3ClientFromConfig = orig })

	var captured s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&captured)
		}
		return s3.New(captured)
	}

	NewFromConfig(aws.Config{Region: "eu-central-1"}, Options{
		Region:         "eu-central-1",
		Endpoint:       "minio:9000",
		ForcePathStyle: true,
	})

	require.NotNil(t, captured.BaseEndpoint)
	assert.Equal(t, "https://minio:9000", *captured.BaseEndpoint)
	assert.True(t, captured.UsePathStyle)
	assert.Equal(t, aws.RequestChecksumCalculationWhenRequired, captured.RequestChecksumCalculation)
}
