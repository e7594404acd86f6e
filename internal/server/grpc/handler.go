package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/uploadvault/internal/api"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
	"github.com/dmitrijs2005/uploadvault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service error kinds onto gRPC codes. Unknown errors are
// logged and hidden behind a generic message.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrFileNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrDeleteFailed):
		s.logger.Error(ctx, "delete failed", "error", err)
		return status.Error(codes.Unavailable, err.Error())
	}
	s.logger.Error(ctx, err.Error())
	return status.Error(codes.Internal, "internal error")
}

func toAPIMetadata(m *models.FileMetadata) *api.FileMetadata {
	if m == nil {
		return nil
	}
	return &api.FileMetadata{
		ID:        m.ID,
		Filename:  m.Filename,
		SizeBytes: m.SizeBytes,
		MimeType:  m.MimeType,
		Status:    string(m.Status),
		ETag:      m.ETag,
		OwnerID:   m.OwnerID,
		Meta:      m.Meta,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (s *GRPCServer) IssueUploadIntent(ctx context.Context, req *api.IssueUploadIntentRequest) (*api.IssueUploadIntentResponse, error) {

	task, err := s.files.IssueUploadIntent(ctx, services.UploadIntent{
		Filename:    req.Filename,
		SizeBytes:   req.SizeBytes,
		MimeType:    req.MimeType,
		Meta:        req.Meta,
		RequesterID: UserIDFromContext(ctx),
		Context:     req.Context,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Upload intent issued", "file_id", task.FileID)
	return &api.IssueUploadIntentResponse{FileID: task.FileID, URL: task.URL}, nil
}

func (s *GRPCServer) ConfirmUpload(ctx context.Context, req *api.ConfirmUploadRequest) (*api.ConfirmUploadResponse, error) {

	rec, err := s.files.ConfirmUpload(ctx, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.ConfirmUploadResponse{File: toAPIMetadata(rec.Metadata())}, nil
}

func (s *GRPCServer) GetMetadata(ctx context.Context, req *api.GetMetadataRequest) (*api.GetMetadataResponse, error) {

	md, err := s.files.GetMetadata(ctx, req.FileID, UserIDFromContext(ctx), req.Context)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.GetMetadataResponse{File: toAPIMetadata(md)}, nil
}

func (s *GRPCServer) IssueDownloadURL(ctx context.Context, req *api.IssueDownloadURLRequest) (*api.IssueDownloadURLResponse, error) {

	url, err := s.files.IssueDownloadURL(ctx, req.FileID, UserIDFromContext(ctx), req.Context)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.IssueDownloadURLResponse{URL: url}, nil
}

func (s *GRPCServer) RemoveFile(ctx context.Context, req *api.RemoveFileRequest) (*api.RemoveFileResponse, error) {

	if err := s.files.RemoveFile(ctx, req.FileID, UserIDFromContext(ctx), req.Context); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "File removed", "file_id", req.FileID)
	return &api.RemoveFileResponse{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}
