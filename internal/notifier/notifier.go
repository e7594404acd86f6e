// Package notifier is the function deployed next to the bucket. It turns
// ObjectCreated events into webhook calls so the server can confirm uploads.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Environment set by the provisioner.
const (
	EnvWebhookURL    = "UPLOADVAULT_WEBHOOK_URL"
	EnvWebhookSecret = "UPLOADVAULT_WEBHOOK_SECRET"
	EnvBucket        = "UPLOADVAULT_BUCKET"
	EnvInstance      = "UPLOADVAULT_INSTANCE"
	EnvKeyPrefix     = "UPLOADVAULT_KEY_PREFIX"
	EnvVerbose       = "UPLOADVAULT_VERBOSE"

	SecretHeader = "X-Webhook-Secret"

	defaultKeyPrefix = "uploads/"
)

type Config struct {
	WebhookURL    string
	WebhookSecret string
	// Bucket, when set, drops events from any other bucket.
	Bucket    string
	Instance  string
	KeyPrefix string
	Verbose   bool

	MaxAttempts uint64
	Backoff     time.Duration
	Timeout     time.Duration
}

// ConfigFromEnv reads the variables written into the function configuration.
func ConfigFromEnv() (Config, error) {
	c := Config{
		WebhookURL:    os.Getenv(EnvWebhookURL),
		WebhookSecret: os.Getenv(EnvWebhookSecret),
		Bucket:        os.Getenv(EnvBucket),
		Instance:      os.Getenv(EnvInstance),
		KeyPrefix:     os.Getenv(EnvKeyPrefix),
		Verbose:       os.Getenv(EnvVerbose) == "true",
	}
	if c.WebhookURL == "" {
		return c, fmt.Errorf("%w: %s is not set", common.ErrInvalidInput, EnvWebhookURL)
	}
	return c, nil
}

func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 4
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

type Notifier struct {
	cfg    Config
	client *http.Client
	logger logging.Logger
}

func New(cfg Config, client *http.Client, logger logging.Logger) *Notifier {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{
		cfg:    cfg,
		client: client,
		logger: logger.With("module", "notifier", "instance", cfg.Instance),
	}
}

// Handle delivers one webhook per matching record. Records for other
// buckets, other event types or keys outside the prefix are skipped. Any
// failed delivery fails the invocation so the platform retries it.
func (n *Notifier) Handle(ctx context.Context, ev events.S3Event) error {
	var errs []error
	for _, rec := range ev.Records {
		key, ok := n.match(ctx, rec)
		if !ok {
			continue
		}
		if err := n.deliver(ctx, key); err != nil {
			n.logger.Error(ctx, "webhook delivery failed", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) match(ctx context.Context, rec events.S3EventRecord) (string, bool) {
	if !strings.HasPrefix(rec.EventName, "ObjectCreated") {
		n.logger.Debug(ctx, "skipping event", "event", rec.EventName)
		return "", false
	}
	if n.cfg.Bucket != "" && rec.S3.Bucket.Name != n.cfg.Bucket {
		n.logger.Debug(ctx, "skipping foreign bucket", "bucket", rec.S3.Bucket.Name)
		return "", false
	}

	key := rec.S3.Object.URLDecodedKey
	if key == "" {
		// Keys arrive form-encoded ("a+b.png" for "a b.png").
		decoded, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			n.logger.Warn(ctx, "undecodable key", "key", rec.S3.Object.Key, "error", err)
			return "", false
		}
		key = decoded
	}
	if !strings.HasPrefix(key, n.cfg.KeyPrefix) {
		n.logger.Debug(ctx, "skipping key outside prefix", "key", key)
		return "", false
	}
	return key, true
}

type webhookRequest struct {
	Key string `json:"key"`
}

var errNoRecord = errors.New("no record for key")

func (n *Notifier) deliver(ctx context.Context, key string) error {
	body, err := json.Marshal(webhookRequest{Key: key})
	if err != nil {
		return err
	}

	b := retry.WithMaxRetries(n.cfg.MaxAttempts-1, retry.NewExponential(n.cfg.Backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		return n.post(ctx, body)
	})
	if errors.Is(err, errNoRecord) {
		// Objects uploaded outside the ledger; nothing to confirm.
		n.logger.Warn(ctx, "webhook has no record for key", "key", key)
		return nil
	}
	if err == nil {
		n.logger.Info(ctx, "upload confirmed", "key", key)
	}
	return err
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.WebhookSecret != "" {
		req.Header.Set(SecretHeader, n.cfg.WebhookSecret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errNoRecord
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("webhook returned %d", resp.StatusCode))
	}
	return fmt.Errorf("webhook returned %d", resp.StatusCode)
}
