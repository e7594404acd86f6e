package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/uploadvault/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UploadRequest describes a file the caller is about to upload.
type UploadRequest struct {
	Filename  string
	SizeBytes int64
	MimeType  string
	Meta      json.RawMessage
}

type GRPCClient struct {
	endpointURL    string
	conn           *grpc.ClientConn
	client         api.FileServiceClient
	accessToken    string
	requestContext json.RawMessage
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(api.TokenMetadataKey)
	md.Set(api.TokenMetadataKey, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewUploadVaultClient dials endpointURL lazily. An empty token makes
// anonymous calls. requestContext, when set, must be a JSON document and is
// forwarded with every permission-checked call.
func NewUploadVaultClient(endpointURL, token, requestContext string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: token}
	if requestContext != "" {
		if !json.Valid([]byte(requestContext)) {
			return nil, fmt.Errorf("%w: request context is not valid JSON", ErrInvalidRequest)
		}
		c.requestContext = json.RawMessage(requestContext)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewFileServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

// IssueUploadIntent registers a pending file and returns its id and the
// presigned PUT URL.
func (s *GRPCClient) IssueUploadIntent(ctx context.Context, r UploadRequest) (string, string, error) {
	req := &api.IssueUploadIntentRequest{
		Filename:  r.Filename,
		SizeBytes: r.SizeBytes,
		MimeType:  r.MimeType,
		Meta:      r.Meta,
		Context:   s.requestContext,
	}

	resp, err := s.client.IssueUploadIntent(ctx, req)
	if err != nil {
		return "", "", s.mapError(err)
	}
	return resp.FileID, resp.URL, nil
}

func (s *GRPCClient) ConfirmUpload(ctx context.Context, fileID string) (*api.FileMetadata, error) {
	resp, err := s.client.ConfirmUpload(ctx, &api.ConfirmUploadRequest{FileID: fileID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.File, nil
}

func (s *GRPCClient) GetMetadata(ctx context.Context, fileID string) (*api.FileMetadata, error) {
	resp, err := s.client.GetMetadata(ctx, &api.GetMetadataRequest{FileID: fileID, Context: s.requestContext})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.File, nil
}

func (s *GRPCClient) IssueDownloadURL(ctx context.Context, fileID string) (string, error) {
	resp, err := s.client.IssueDownloadURL(ctx, &api.IssueDownloadURLRequest{FileID: fileID, Context: s.requestContext})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.URL, nil
}

func (s *GRPCClient) RemoveFile(ctx context.Context, fileID string) error {
	_, err := s.client.RemoveFile(ctx, &api.RemoveFileRequest{FileID: fileID, Context: s.requestContext})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return ErrPermissionDenied
	case codes.NotFound:
		return ErrNotFound
	case codes.FailedPrecondition:
		return ErrNotReady
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
