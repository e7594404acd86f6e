package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "uploadvault.v1.FileService"

	FileService_IssueUploadIntent_FullMethodName = "/" + ServiceName + "/IssueUploadIntent"
	FileService_ConfirmUpload_FullMethodName     = "/" + ServiceName + "/ConfirmUpload"
	FileService_GetMetadata_FullMethodName       = "/" + ServiceName + "/GetMetadata"
	FileService_IssueDownloadURL_FullMethodName  = "/" + ServiceName + "/IssueDownloadURL"
	FileService_RemoveFile_FullMethodName        = "/" + ServiceName + "/RemoveFile"
	FileService_Ping_FullMethodName              = "/" + ServiceName + "/Ping"
)

// FileServiceServer is implemented by the server transport.
type FileServiceServer interface {
	IssueUploadIntent(context.Context, *IssueUploadIntentRequest) (*IssueUploadIntentResponse, error)
	ConfirmUpload(context.Context, *ConfirmUploadRequest) (*ConfirmUploadResponse, error)
	GetMetadata(context.Context, *GetMetadataRequest) (*GetMetadataResponse, error)
	IssueDownloadURL(context.Context, *IssueDownloadURLRequest) (*IssueDownloadURLResponse, error)
	RemoveFile(context.Context, *RemoveFileRequest) (*RemoveFileResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileService_ServiceDesc, srv)
}

func unary[Req, Resp any](fullMethod string, call func(FileServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FileServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FileServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var FileService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IssueUploadIntent",
			Handler:    unary(FileService_IssueUploadIntent_FullMethodName, FileServiceServer.IssueUploadIntent),
		},
		{
			MethodName: "ConfirmUpload",
			Handler:    unary(FileService_ConfirmUpload_FullMethodName, FileServiceServer.ConfirmUpload),
		},
		{
			MethodName: "GetMetadata",
			Handler:    unary(FileService_GetMetadata_FullMethodName, FileServiceServer.GetMetadata),
		},
		{
			MethodName: "IssueDownloadURL",
			Handler:    unary(FileService_IssueDownloadURL_FullMethodName, FileServiceServer.IssueDownloadURL),
		},
		{
			MethodName: "RemoveFile",
			Handler:    unary(FileService_RemoveFile_FullMethodName, FileServiceServer.RemoveFile),
		},
		{
			MethodName: "Ping",
			Handler:    unary(FileService_Ping_FullMethodName, FileServiceServer.Ping),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "uploadvault/v1/files",
}

// FileServiceClient is the client stub for FileService.
type FileServiceClient interface {
	IssueUploadIntent(ctx context.Context, in *IssueUploadIntentRequest, opts ...grpc.CallOption) (*IssueUploadIntentResponse, error)
	ConfirmUpload(ctx context.Context, in *ConfirmUploadRequest, opts ...grpc.CallOption) (*ConfirmUploadResponse, error)
	GetMetadata(ctx context.Context, in *GetMetadataRequest, opts ...grpc.CallOption) (*GetMetadataResponse, error)
	IssueDownloadURL(ctx context.Context, in *IssueDownloadURLRequest, opts ...grpc.CallOption) (*IssueDownloadURLResponse, error)
	RemoveFile(ctx context.Context, in *RemoveFileRequest, opts ...grpc.CallOption) (*RemoveFileResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type fileServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFileServiceClient(cc grpc.ClientConnInterface) FileServiceClient {
	return &fileServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) IssueUploadIntent(ctx context.Context, in *IssueUploadIntentRequest, opts ...grpc.CallOption) (*IssueUploadIntentResponse, error) {
	return invoke[IssueUploadIntentResponse](ctx, c.cc, FileService_IssueUploadIntent_FullMethodName, in, opts)
}

func (c *fileServiceClient) ConfirmUpload(ctx context.Context, in *ConfirmUploadRequest, opts ...grpc.CallOption) (*ConfirmUploadResponse, error) {
	return invoke[ConfirmUploadResponse](ctx, c.cc, FileService_ConfirmUpload_FullMethodName, in, opts)
}

func (c *fileServiceClient) GetMetadata(ctx context.Context, in *GetMetadataRequest, opts ...grpc.CallOption) (*GetMetadataResponse, error) {
	return invoke[GetMetadataResponse](ctx, c.cc, FileService_GetMetadata_FullMethodName, in, opts)
}

func (c *fileServiceClient) IssueDownloadURL(ctx context.Context, in *IssueDownloadURLRequest, opts ...grpc.CallOption) (*IssueDownloadURLResponse, error) {
	return invoke[IssueDownloadURLResponse](ctx, c.cc, FileService_IssueDownloadURL_FullMethodName, in, opts)
}

func (c *fileServiceClient) RemoveFile(ctx context.Context, in *RemoveFileRequest, opts ...grpc.CallOption) (*RemoveFileResponse, error) {
	return invoke[RemoveFileResponse](ctx, c.cc, FileService_RemoveFile_FullMethodName, in, opts)
}

func (c *fileServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, FileService_Ping_FullMethodName, in, opts)
}
