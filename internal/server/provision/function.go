package provision

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/sethvargo/go-retry"
)

var (
	errNotReady    = errors.New("function not ready")
	errCreateRaced = errors.New("function created concurrently")
)

// FunctionState records what EnsureFunction changed.
type FunctionState struct {
	ARN           string
	Created       bool
	CodeUpdated   bool
	ConfigUpdated bool
}

func (s FunctionState) Changed() bool {
	return s.Created || s.CodeUpdated || s.ConfigUpdated
}

// getFunction returns nil when the function does not exist.
func (r *Reconciler) getFunction(ctx context.Context, name string) (*types.FunctionConfiguration, error) {
	out, err := r.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)})
	if err != nil {
		if isFunctionNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get function %s: %w", name, err)
	}
	if out.Configuration == nil {
		return nil, fmt.Errorf("get function %s: empty configuration", name)
	}
	return out.Configuration, nil
}

// waitForReady polls until the function accepts updates. A missing function
// is ready. A failed update or a failed state is fatal. Exhausting
// ReadyTimeout fails with common.ErrProvisioningTimeout.
func (r *Reconciler) waitForReady(ctx context.Context, name string) error {
	b := retry.WithMaxDuration(r.opts.ReadyTimeout, retry.NewConstant(r.opts.ReadyInterval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		cfg, err := r.getFunction(ctx, name)
		if err != nil {
			return err
		}
		if cfg == nil {
			return nil
		}
		if cfg.LastUpdateStatus == types.LastUpdateStatusFailed {
			return fmt.Errorf("function %s last update failed: %s", name, aws.ToString(cfg.LastUpdateStatusReason))
		}
		if cfg.State == types.StateFailed {
			return fmt.Errorf("function %s is in failed state: %s", name, aws.ToString(cfg.StateReason))
		}
		if cfg.State == types.StatePending || cfg.LastUpdateStatus == types.LastUpdateStatusInProgress {
			r.logger.Debug(ctx, "waiting for function", "function", name,
				"state", string(cfg.State), "last_update_status", string(cfg.LastUpdateStatus))
			return retry.RetryableError(errNotReady)
		}
		return nil
	})
	if errors.Is(err, errNotReady) {
		return fmt.Errorf("%w: function %s not ready after %s", common.ErrProvisioningTimeout, name, r.opts.ReadyTimeout)
	}
	return err
}

// mutate waits for the function to be ready and runs fn, retrying when the
// control plane reports a concurrent update or has not yet propagated the
// execution role. Exhausted conflicts fail with
// common.ErrProvisioningConflict.
func (r *Reconciler) mutate(ctx context.Context, name, op string, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(uint64(r.opts.ConflictAttempts-1), retry.NewConstant(r.opts.ReadyInterval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := r.waitForReady(ctx, name); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isConflict(err) || isRoleNotAssumable(err) {
			r.metrics.ProvisionRetry(op)
			r.logger.Warn(ctx, "retrying function mutation", "function", name, "op", op, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && isConflict(err) {
		return fmt.Errorf("%w: %s %s: %w", common.ErrProvisioningConflict, op, name, err)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
	r.metrics.ProvisionMutation("function", op)
	return nil
}

// EnsureFunction creates the function when absent, otherwise updates code
// and configuration only where they differ from the manifest.
func (r *Reconciler) EnsureFunction(ctx context.Context, m Manifest, roleARN string) (*FunctionState, error) {
	name := m.FunctionName
	state := &FunctionState{}

	if err := r.waitForReady(ctx, name); err != nil {
		return nil, err
	}
	cfg, err := r.getFunction(ctx, name)
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		err := r.mutate(ctx, name, "create", func(ctx context.Context) error {
			_, err := r.lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
				FunctionName: aws.String(name),
				Role:         aws.String(roleARN),
				Runtime:      types.Runtime(m.Runtime),
				Handler:      aws.String(m.Handler),
				MemorySize:   aws.Int32(m.MemoryMB),
				Timeout:      aws.Int32(timeoutSeconds(m.Timeout)),
				Environment:  &types.Environment{Variables: m.environment()},
				Code:         &types.FunctionCode{ZipFile: m.Artifact.Zip},
				Description:  aws.String("Confirms uploads to " + m.Bucket),
			})
			if isFunctionExists(err) {
				return errCreateRaced
			}
			return err
		})
		switch {
		case errors.Is(err, errCreateRaced):
			// another reconciler won; diff against what it created
			r.logger.Info(ctx, "function created concurrently, re-reading", "function", name)
			if err := r.waitForReady(ctx, name); err != nil {
				return nil, err
			}
			if cfg, err = r.getFunction(ctx, name); err != nil {
				return nil, err
			}
			if cfg == nil {
				return nil, fmt.Errorf("function %s reported as existing but not found", name)
			}
		case err != nil:
			return nil, err
		default:
			state.Created = true
			r.logger.Info(ctx, "function created", "function", name)
		}
	}

	if cfg != nil {
		if aws.ToString(cfg.CodeSha256) != m.Artifact.CodeSha256 {
			err := r.mutate(ctx, name, "update_code", func(ctx context.Context) error {
				_, err := r.lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
					FunctionName: aws.String(name),
					ZipFile:      m.Artifact.Zip,
				})
				return err
			})
			if err != nil {
				return nil, err
			}
			state.CodeUpdated = true
			r.logger.Info(ctx, "function code updated", "function", name,
				"from", aws.ToString(cfg.CodeSha256), "to", m.Artifact.CodeSha256)
		}

		if diff := configDiff(cfg, m, roleARN); len(diff) > 0 {
			err := r.mutate(ctx, name, "update_config", func(ctx context.Context) error {
				_, err := r.lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
					FunctionName: aws.String(name),
					Role:         aws.String(roleARN),
					Runtime:      types.Runtime(m.Runtime),
					Handler:      aws.String(m.Handler),
					MemorySize:   aws.Int32(m.MemoryMB),
					Timeout:      aws.Int32(timeoutSeconds(m.Timeout)),
					Environment:  &types.Environment{Variables: m.environment()},
				})
				return err
			})
			if err != nil {
				return nil, err
			}
			state.ConfigUpdated = true
			r.logger.Info(ctx, "function configuration updated", "function", name, "fields", diff)
		}
	}

	if err := r.waitForReady(ctx, name); err != nil {
		return nil, err
	}
	if cfg == nil || state.Changed() {
		if cfg, err = r.getFunction(ctx, name); err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, fmt.Errorf("function %s disappeared after reconciliation", name)
		}
	}
	state.ARN = aws.ToString(cfg.FunctionArn)
	return state, nil
}

func timeoutSeconds(d time.Duration) int32 {
	s := int32(d / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// configDiff lists the configuration fields that differ from the manifest.
func configDiff(cfg *types.FunctionConfiguration, m Manifest, roleARN string) []string {
	var diff []string
	if aws.ToInt32(cfg.MemorySize) != m.MemoryMB {
		diff = append(diff, "memory")
	}
	if aws.ToInt32(cfg.Timeout) != timeoutSeconds(m.Timeout) {
		diff = append(diff, "timeout")
	}
	if aws.ToString(cfg.Handler) != m.Handler {
		diff = append(diff, "handler")
	}
	if string(cfg.Runtime) != m.Runtime {
		diff = append(diff, "runtime")
	}
	if aws.ToString(cfg.Role) != roleARN {
		diff = append(diff, "role")
	}
	var remote map[string]string
	if cfg.Environment != nil {
		remote = cfg.Environment.Variables
	}
	if !maps.Equal(remote, m.environment()) {
		diff = append(diff, "environment")
	}
	return diff
}
