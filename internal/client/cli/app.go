package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/api"
	"github.com/dmitrijs2005/uploadvault/internal/client/client"
	"github.com/dmitrijs2005/uploadvault/internal/client/config"
	"github.com/dmitrijs2005/uploadvault/internal/client/history"
	"github.com/sethvargo/go-retry"
)

var ErrUsage = errors.New("usage")

// fileAPI is the subset of the gRPC client the commands use.
type fileAPI interface {
	Ping(ctx context.Context) error
	IssueUploadIntent(ctx context.Context, r client.UploadRequest) (string, string, error)
	ConfirmUpload(ctx context.Context, fileID string) (*api.FileMetadata, error)
	GetMetadata(ctx context.Context, fileID string) (*api.FileMetadata, error)
	IssueDownloadURL(ctx context.Context, fileID string) (string, error)
	RemoveFile(ctx context.Context, fileID string) error
	Close() error
}

// uploadHistory is the local record of uploads. A nil history disables the
// ls and refresh commands.
type uploadHistory interface {
	Record(ctx context.Context, e history.Entry) error
	SetStatus(ctx context.Context, fileID, status string) error
	Forget(ctx context.Context, fileID string) error
	List(ctx context.Context) ([]history.Entry, error)
	Refresh(ctx context.Context, status history.StatusFunc) (int, error)
	Close() error
}

var ErrNoHistory = errors.New("upload history is disabled")

type App struct {
	config     *config.Config
	api        fileAPI
	history    uploadHistory
	httpClient *http.Client
	out        io.Writer
	backoff    func() retry.Backoff
}

func NewApp(c *config.Config, out io.Writer) (*App, error) {
	apiClient, err := client.NewUploadVaultClient(c.ServerEndpointAddr, c.AccessToken, c.RequestContext)
	if err != nil {
		return nil, err
	}
	a := newApp(c, apiClient, &http.Client{}, out)

	if c.HistoryPath != "" {
		h, err := history.Open(context.Background(), c.HistoryPath)
		if err != nil {
			_ = apiClient.Close()
			return nil, err
		}
		a.history = h
	}
	return a, nil
}

func newApp(c *config.Config, f fileAPI, hc *http.Client, out io.Writer) *App {
	a := &App{config: c, api: f, httpClient: hc, out: out}
	a.backoff = func() retry.Backoff {
		attempts := a.config.ConfirmAttempts
		if attempts < 1 {
			attempts = 1
		}
		return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(500*time.Millisecond))
	}
	return a
}

func (a *App) Close() error {
	err := a.api.Close()
	if a.history != nil {
		err = errors.Join(err, a.history.Close())
	}
	return err
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: uploadvault [flags] <ping|upload|confirm|info|download|rm|ls|refresh> ...", ErrUsage)
	}

	if a.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.CommandTimeout)
		defer cancel()
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "ping":
		if err := a.api.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "OK")
		return nil
	case "upload":
		if len(rest) != 1 {
			return fmt.Errorf("%w: upload <path>", ErrUsage)
		}
		return a.upload(ctx, rest[0])
	case "confirm":
		if len(rest) != 1 {
			return fmt.Errorf("%w: confirm <id>", ErrUsage)
		}
		return a.confirm(ctx, rest[0])
	case "info":
		if len(rest) != 1 {
			return fmt.Errorf("%w: info <id>", ErrUsage)
		}
		return a.info(ctx, rest[0])
	case "download":
		if len(rest) != 2 {
			return fmt.Errorf("%w: download <id> <dest>", ErrUsage)
		}
		return a.download(ctx, rest[0], rest[1])
	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("%w: rm <id>", ErrUsage)
		}
		return a.remove(ctx, rest[0])
	case "ls":
		return a.list(ctx)
	case "refresh":
		return a.refresh(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// remember runs fn against the history when one is configured. History
// failures are reported but never fail a command whose server call succeeded.
func (a *App) remember(fn func(h uploadHistory) error) {
	if a.history == nil {
		return
	}
	if err := fn(a.history); err != nil && !errors.Is(err, history.ErrNotFound) {
		fmt.Fprintf(a.out, "warning: history: %v\n", err)
	}
}

func (a *App) printFile(f *api.FileMetadata) {
	fmt.Fprintf(a.out, "id:       %s\n", f.ID)
	fmt.Fprintf(a.out, "filename: %s\n", f.Filename)
	fmt.Fprintf(a.out, "size:     %d\n", f.SizeBytes)
	fmt.Fprintf(a.out, "mime:     %s\n", f.MimeType)
	fmt.Fprintf(a.out, "status:   %s\n", f.Status)
	if f.ETag != "" {
		fmt.Fprintf(a.out, "etag:     %s\n", f.ETag)
	}
	if len(f.Meta) > 0 {
		fmt.Fprintf(a.out, "meta:     %s\n", f.Meta)
	}
}
