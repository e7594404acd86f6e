// Package server wires the ledger, bucket registry, provisioning reconciler
// and transports into one process and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/cryptox"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/dmitrijs2005/uploadvault/internal/server/buckets"
	"github.com/dmitrijs2005/uploadvault/internal/server/config"
	"github.com/dmitrijs2005/uploadvault/internal/server/httpapi"
	"github.com/dmitrijs2005/uploadvault/internal/server/metrics"
	"github.com/dmitrijs2005/uploadvault/internal/server/objectstore"
	"github.com/dmitrijs2005/uploadvault/internal/server/permissions"
	"github.com/dmitrijs2005/uploadvault/internal/server/provision"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/uploadvault/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/uploadvault/internal/server/grpc"
)

// Hooks are the embedding application's extension points. Nil fields take
// the defaults: deny-all permissions (unless SkipPermissionChecks), the
// default key naming and no-op upload hooks.
type Hooks struct {
	CheckPermissions permissions.Checker
	GetKey           services.KeyFunc
	BeforeUpload     services.Hook
	AfterUpload      services.Hook
}

type App struct {
	config   *config.Config
	hooks    Hooks
	logger   logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       *objectstore.Store
	bucket      string
	files       *services.FileService
}

func NewApp(c *config.Config, hooks Hooks) (*App, error) {
	return newApp(c, hooks, os.Stdout)
}

func newApp(c *config.Config, hooks Hooks, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	reg := prometheus.NewRegistry()

	return &App{
		config:   c,
		hooks:    hooks,
		logger:   logging.NewJSONLogger(logOut, c.Verbose),
		registry: reg,
		metrics:  metrics.MustNewMetrics(reg),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) initStorage(ctx context.Context) error {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "No database DSN configured, using in-memory ledger")
		app.repomanager = repomanager.NewMemoryRepositoryManager()
		return nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrations: %w", err)
	}

	app.db = db
	app.repomanager = rm
	return nil
}

// prepare brings the instance to a serving state: ledger, bucket, notifier
// resources and the file service.
func (app *App) prepare(ctx context.Context) error {
	c := app.config

	if err := app.initStorage(ctx); err != nil {
		return err
	}

	storeOpts := objectstore.Options{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		ForcePathStyle:  c.ForcePathStyle,
	}
	awsCfg, err := objectstore.LoadAWSConfig(ctx, storeOpts)
	if err != nil {
		return fmt.Errorf("aws config: %w", err)
	}
	app.store = objectstore.NewFromConfig(awsCfg, storeOpts)

	registry := buckets.NewRegistry(app.db, app.repomanager, app.store, c.Production, app.logger)
	row, err := registry.EnsureBucket(ctx, c.Name, c.Region)
	if err != nil {
		return err
	}
	app.bucket = row.BucketName
	app.logger.Info(ctx, "Bucket ready", "instance", c.Name, "bucket", row.BucketName, "region", row.Region)

	if c.Provision {
		if c.WebhookSecret == "" {
			// stable across restarts and across processes serving the instance
			secret, err := cryptox.DeriveSecret([]byte(c.SecretKey+"\x00"+c.SecretAccessKey), c.Name+"/"+row.BucketName)
			if err != nil {
				return fmt.Errorf("webhook secret: %w", err)
			}
			c.WebhookSecret = secret
			app.logger.Warn(ctx, "No webhook secret configured, derived one from the server credentials")
		}
		if err := app.provision(ctx, awsCfg, row.BucketName); err != nil {
			return err
		}
	}

	app.files = services.NewFileService(app.db, app.repomanager, services.FileServiceOptions{
		Bucket:              row.BucketName,
		Store:               app.store,
		Gate:                permissions.NewGate(app.hooks.CheckPermissions, c.SkipPermissionChecks),
		BeforeUpload:        app.hooks.BeforeUpload,
		AfterUpload:         app.hooks.AfterUpload,
		KeyFunc:             app.hooks.GetKey,
		UploadExpiresIn:     c.UploadExpiresIn,
		DownloadExpiresIn:   c.DownloadExpiresIn,
		AutoConfirm:         c.AutoConfirmUploads,
		EnforceDeclaredSize: c.EnforceDeclaredSize,
		Logger:              app.logger,
		Metrics:             app.metrics,
	})

	return nil
}

type reconciler interface {
	Reconcile(ctx context.Context, m provision.Manifest) (*provision.State, error)
}

var newReconciler = func(app *App, awsCfg aws.Config) reconciler {
	return provision.NewFromConfig(awsCfg, app.store.Client(), provision.Options{
		ReadyTimeout:  app.config.ReadyTimeout,
		ReadyInterval: app.config.ReadyInterval,
	}, app.logger, app.metrics)
}

func (app *App) provision(ctx context.Context, awsCfg aws.Config, bucket string) error {
	c := app.config

	artifact, err := provision.LoadArtifact(c.FunctionArtifact)
	if err != nil {
		return fmt.Errorf("notifier artifact: %w", err)
	}

	fn := provision.FunctionNameFor(bucket)
	manifest := provision.Manifest{
		Instance:      c.Name,
		Bucket:        bucket,
		Partition:     provision.PartitionForRegion(c.Region),
		FunctionName:  fn,
		RoleName:      provision.RoleNameFor(fn),
		KeyPrefix:     services.KeyPrefix,
		Artifact:      artifact,
		Runtime:       c.FunctionRuntime,
		Handler:       c.FunctionHandler,
		MemoryMB:      c.FunctionMemoryMB,
		Timeout:       c.FunctionTimeout,
		WebhookURL:    c.WebhookURL,
		WebhookSecret: c.WebhookSecret,
	}

	state, err := newReconciler(app, awsCfg).Reconcile(ctx, manifest)
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}
	app.logger.Info(ctx, "Provisioning reconciled", "function", fn, "changed", state.Changed())
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}
}

// Run prepares the instance and serves gRPC and HTTP until ctx is cancelled
// or a signal arrives. A setup failure or a listener error stops everything.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.prepare(ctx); err != nil {
		app.logger.Error(ctx, "startup failed", "kind", common.Kind(err), "error", err)
		app.close(ctx)
		return err
	}
	defer app.close(ctx)

	grpcServer, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.files, app.config.SecretKey)
	if err != nil {
		return err
	}
	httpServer := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.files,
		app.config.WebhookSecret, app.metrics, app.registry)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(gctx) })
	g.Go(func() error { return httpServer.Run(gctx) })

	err = g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}
