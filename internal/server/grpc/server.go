package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/dmitrijs2005/uploadvault/internal/api"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
	"github.com/dmitrijs2005/uploadvault/internal/server/services"
	"google.golang.org/grpc"
)

type fileSvc interface {
	IssueUploadIntent(ctx context.Context, in services.UploadIntent) (*models.UploadTask, error)
	ConfirmUpload(ctx context.Context, id string) (*models.FileRecord, error)
	GetMetadata(ctx context.Context, id, requesterID string, reqCtx json.RawMessage) (*models.FileMetadata, error)
	IssueDownloadURL(ctx context.Context, id, requesterID string, reqCtx json.RawMessage) (string, error)
	RemoveFile(ctx context.Context, id, requesterID string, reqCtx json.RawMessage) error
}

type GRPCServer struct {
	address   string
	files     fileSvc
	logger    logging.Logger
	jwtSecret []byte
}

var _ api.FileServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, fs fileSvc, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		files:     fs,
		jwtSecret: []byte(secretKey),
	}, nil
}

// register builds a grpc.Server with the service and interceptors attached.
func (s *GRPCServer) register() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	api.RegisterFileServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := s.register()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections; a stop that wins the race
	// against Serve is still a clean shutdown
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
