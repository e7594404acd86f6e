// Package provision reconciles the cloud resources behind the upload
// confirmation path: the function's execution role, the notifier function
// itself, and the bucket notification that invokes it. Every step reads the
// live state first and only mutates what differs, so running it on every
// startup is safe.
package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/dmitrijs2005/uploadvault/internal/notifier"
	"github.com/dmitrijs2005/uploadvault/internal/server/metrics"
)

var (
	newIAMClient = func(cfg aws.Config, optFns ...func(*iam.Options)) IAMAPI {
		return iam.NewFromConfig(cfg, optFns...)
	}
	newLambdaClient = func(cfg aws.Config, optFns ...func(*lambda.Options)) LambdaAPI {
		return lambda.NewFromConfig(cfg, optFns...)
	}
)

const (
	maxFunctionNameLen = 64
	namePrefix         = "uploadvault-"

	// Notifier environment variables.
	EnvWebhookURL    = notifier.EnvWebhookURL
	EnvWebhookSecret = notifier.EnvWebhookSecret
	EnvBucket        = notifier.EnvBucket
	EnvInstance      = notifier.EnvInstance
	EnvKeyPrefix     = notifier.EnvKeyPrefix
)

// Manifest is the desired state for one instance.
type Manifest struct {
	Instance     string
	Bucket       string
	Partition    string
	FunctionName string
	RoleName     string
	// KeyPrefix scopes both the trigger filter and the inline policy.
	KeyPrefix string

	Artifact *Artifact
	Runtime  string
	Handler  string
	MemoryMB int32
	Timeout  time.Duration

	WebhookURL    string
	WebhookSecret string
}

// FunctionNameFor derives the function name from the bucket name.
func FunctionNameFor(bucket string) string {
	name := namePrefix + bucket
	if len(name) > maxFunctionNameLen {
		name = strings.TrimRight(name[:maxFunctionNameLen], "-")
	}
	return name
}

// RoleNameFor derives the execution role name from the function name.
func RoleNameFor(function string) string {
	const suffix = "-exec"
	if len(function) > maxFunctionNameLen-len(suffix) {
		function = strings.TrimRight(function[:maxFunctionNameLen-len(suffix)], "-")
	}
	return function + suffix
}

func (m *Manifest) partition() string {
	if m.Partition == "" {
		return "aws"
	}
	return m.Partition
}

func (m *Manifest) keyPrefix() string {
	if m.KeyPrefix == "" {
		return "uploads/"
	}
	return m.KeyPrefix
}

func (m *Manifest) environment() map[string]string {
	env := map[string]string{
		EnvWebhookURL: m.WebhookURL,
		EnvBucket:     m.Bucket,
		EnvInstance:   m.Instance,
		EnvKeyPrefix:  m.keyPrefix(),
	}
	if m.WebhookSecret != "" {
		env[EnvWebhookSecret] = m.WebhookSecret
	}
	return env
}

func (m *Manifest) validate() error {
	switch {
	case m.Bucket == "":
		return fmt.Errorf("%w: manifest bucket is required", common.ErrInvalidInput)
	case m.FunctionName == "":
		return fmt.Errorf("%w: manifest function name is required", common.ErrInvalidInput)
	case m.RoleName == "":
		return fmt.Errorf("%w: manifest role name is required", common.ErrInvalidInput)
	case m.Artifact == nil:
		return fmt.Errorf("%w: manifest artifact is required", common.ErrInvalidInput)
	case m.WebhookURL == "":
		return fmt.Errorf("%w: manifest webhook url is required", common.ErrInvalidInput)
	}
	return nil
}

// Options are the timing and retry bounds. Zero values take defaults.
type Options struct {
	ReadyTimeout         time.Duration
	ReadyInterval        time.Duration
	ConflictAttempts     int
	NotificationAttempts int
	NotificationBackoff  time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 5 * time.Minute
	}
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = 2 * time.Second
	}
	if o.ConflictAttempts <= 0 {
		o.ConflictAttempts = 5
	}
	if o.NotificationAttempts <= 0 {
		o.NotificationAttempts = 5
	}
	if o.NotificationBackoff <= 0 {
		o.NotificationBackoff = time.Second
	}
	return o
}

// State is the outcome of one reconciliation run.
type State struct {
	Role     RoleState
	Function FunctionState
	Trigger  TriggerState
}

// Changed reports whether any mutation was issued.
func (s *State) Changed() bool {
	return s.Role.Changed() || s.Function.Changed() || s.Trigger.Changed()
}

type Reconciler struct {
	iam     IAMAPI
	lambda  LambdaAPI
	s3      NotificationAPI
	opts    Options
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewReconciler(iamClient IAMAPI, lambdaClient LambdaAPI, s3Client NotificationAPI, opts Options, logger logging.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Reconciler{
		iam:     iamClient,
		lambda:  lambdaClient,
		s3:      s3Client,
		opts:    opts.withDefaults(),
		logger:  logger.With("module", "provision"),
		metrics: m,
	}
}

// NewFromConfig builds IAM and Lambda clients from cfg. The S3 client is
// passed in so bucket calls share the object store's endpoint settings.
func NewFromConfig(cfg aws.Config, s3Client NotificationAPI, opts Options, logger logging.Logger, m *metrics.Metrics) *Reconciler {
	return NewReconciler(newIAMClient(cfg), newLambdaClient(cfg), s3Client, opts, logger, m)
}

// Reconcile runs role, function and trigger reconciliation in that order,
// since each step needs the ARN produced by the previous one.
func (r *Reconciler) Reconcile(ctx context.Context, m Manifest) (*State, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	state := &State{}

	role, err := r.EnsureExecRole(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("execution role: %w", err)
	}
	state.Role = *role

	fn, err := r.EnsureFunction(ctx, m, role.ARN)
	if err != nil {
		return nil, fmt.Errorf("function: %w", err)
	}
	state.Function = *fn

	trigger, err := r.EnsureTrigger(ctx, m, fn.ARN)
	if err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	state.Trigger = *trigger

	r.logger.Info(ctx, "provisioning reconciled",
		"function", m.FunctionName, "bucket", m.Bucket, "changed", state.Changed(), "elapsed", time.Since(start).String())
	return state, nil
}

// PartitionForRegion returns the ARN partition that owns region.
func PartitionForRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	}
	return "aws"
}
