package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/sethvargo/go-retry"
)

const objectCreatedEvent = types.Event("s3:ObjectCreated:*")

var errTriggerMissing = errors.New("notification entry not present after write")

// TriggerState records what EnsureTrigger changed.
type TriggerState struct {
	NotificationID  string
	PermissionAdded bool
	ConfigUpdated   bool
}

func (s TriggerState) Changed() bool {
	return s.PermissionAdded || s.ConfigUpdated
}

func statementID(m Manifest) string {
	return "s3-invoke-" + m.Bucket
}

// NotificationID is the id of the bucket notification entry owned by the
// function.
func NotificationID(function string) string {
	return function + "-object-created"
}

// EnsureTrigger allows the bucket to invoke the function and merges the
// object-created notification into the bucket configuration, keeping entries
// owned by others. The write is verified by reading it back; a missing entry
// after all attempts fails with common.ErrNotificationWireFailure.
func (r *Reconciler) EnsureTrigger(ctx context.Context, m Manifest, functionARN string) (*TriggerState, error) {
	state := &TriggerState{NotificationID: NotificationID(m.FunctionName)}

	added, err := r.ensureInvokePermission(ctx, m)
	if err != nil {
		return nil, err
	}
	state.PermissionAdded = added

	desired := types.LambdaFunctionConfiguration{
		Id:                aws.String(state.NotificationID),
		LambdaFunctionArn: aws.String(functionARN),
		Events:            []types.Event{objectCreatedEvent},
		Filter: &types.NotificationConfigurationFilter{
			Key: &types.S3KeyFilter{
				FilterRules: []types.FilterRule{{
					Name:  types.FilterRuleNamePrefix,
					Value: aws.String(m.keyPrefix()),
				}},
			},
		},
	}

	var attempt time.Duration
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return attempt * r.opts.NotificationBackoff, false
	})
	b := retry.WithMaxRetries(uint64(r.opts.NotificationAttempts-1), linear)

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		current, err := r.s3.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
			Bucket: aws.String(m.Bucket),
		})
		if err != nil {
			return r.notificationError(ctx, "get", err)
		}

		merged, changed := mergeNotification(current, desired)
		if changed {
			_, err := r.s3.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
				Bucket:                    aws.String(m.Bucket),
				NotificationConfiguration: merged,
			})
			if err != nil {
				return r.notificationError(ctx, "put", err)
			}
			state.ConfigUpdated = true
			r.metrics.ProvisionMutation("trigger", "put_notification")

			current, err = r.s3.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
				Bucket: aws.String(m.Bucket),
			})
			if err != nil {
				return r.notificationError(ctx, "verify", err)
			}
		}

		if !hasNotification(current.LambdaFunctionConfigurations, desired) {
			r.metrics.ProvisionRetry("verify_notification")
			r.logger.Warn(ctx, "notification entry not visible yet", "bucket", m.Bucket, "id", state.NotificationID)
			return retry.RetryableError(errTriggerMissing)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bucket %s: %w", common.ErrNotificationWireFailure, m.Bucket, err)
	}

	if state.ConfigUpdated {
		r.logger.Info(ctx, "bucket notification wired", "bucket", m.Bucket, "function", m.FunctionName)
	}
	return state, nil
}

func (r *Reconciler) notificationError(ctx context.Context, op string, err error) error {
	if isNotificationRetryable(err) {
		r.metrics.ProvisionRetry(op + "_notification")
		r.logger.Warn(ctx, "retrying bucket notification", "op", op, "error", err)
		return retry.RetryableError(err)
	}
	return err
}

// ensureInvokePermission grants s3.amazonaws.com lambda:InvokeFunction for
// the bucket unless the function policy already has the statement.
func (r *Reconciler) ensureInvokePermission(ctx context.Context, m Manifest) (bool, error) {
	sid := statementID(m)

	out, err := r.lambda.GetPolicy(ctx, &lambda.GetPolicyInput{FunctionName: aws.String(m.FunctionName)})
	switch {
	case err == nil:
		if policyHasStatement(aws.ToString(out.Policy), sid) {
			return false, nil
		}
	case !isFunctionNotFound(err):
		return false, fmt.Errorf("get policy of %s: %w", m.FunctionName, err)
	}

	err = r.mutate(ctx, m.FunctionName, "add_permission", func(ctx context.Context) error {
		_, err := r.lambda.AddPermission(ctx, &lambda.AddPermissionInput{
			FunctionName: aws.String(m.FunctionName),
			StatementId:  aws.String(sid),
			Action:       aws.String("lambda:InvokeFunction"),
			Principal:    aws.String("s3.amazonaws.com"),
			SourceArn:    aws.String("arn:" + m.partition() + ":s3:::" + m.Bucket),
		})
		if isPermissionExists(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	r.logger.Info(ctx, "invoke permission granted", "function", m.FunctionName, "statement", sid)
	return true, nil
}

func policyHasStatement(policy, sid string) bool {
	var doc struct {
		Statement []struct {
			Sid string `json:"Sid"`
		} `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(policy), &doc); err != nil {
		return false
	}
	for _, st := range doc.Statement {
		if st.Sid == sid {
			return true
		}
	}
	return false
}

// mergeNotification returns the bucket configuration with desired replacing
// any entry of the same id. Queue, topic and EventBridge settings and other
// function entries are kept. changed is false when desired is already
// present unchanged.
func mergeNotification(current *s3.GetBucketNotificationConfigurationOutput, desired types.LambdaFunctionConfiguration) (*types.NotificationConfiguration, bool) {
	merged := &types.NotificationConfiguration{
		QueueConfigurations:      current.QueueConfigurations,
		TopicConfigurations:      current.TopicConfigurations,
		EventBridgeConfiguration: current.EventBridgeConfiguration,
	}

	changed := true
	for _, c := range current.LambdaFunctionConfigurations {
		if aws.ToString(c.Id) == aws.ToString(desired.Id) {
			if sameNotification(c, desired) {
				changed = false
			}
			continue
		}
		merged.LambdaFunctionConfigurations = append(merged.LambdaFunctionConfigurations, c)
	}
	merged.LambdaFunctionConfigurations = append(merged.LambdaFunctionConfigurations, desired)
	return merged, changed
}

func hasNotification(entries []types.LambdaFunctionConfiguration, desired types.LambdaFunctionConfiguration) bool {
	return slices.ContainsFunc(entries, func(c types.LambdaFunctionConfiguration) bool {
		return aws.ToString(c.Id) == aws.ToString(desired.Id) && sameNotification(c, desired)
	})
}

func sameNotification(a, b types.LambdaFunctionConfiguration) bool {
	if aws.ToString(a.LambdaFunctionArn) != aws.ToString(b.LambdaFunctionArn) {
		return false
	}
	if !sameEvents(a.Events, b.Events) {
		return false
	}
	return filterValue(a, types.FilterRuleNamePrefix) == filterValue(b, types.FilterRuleNamePrefix) &&
		filterValue(a, types.FilterRuleNameSuffix) == filterValue(b, types.FilterRuleNameSuffix)
}

func sameEvents(a, b []types.Event) bool {
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// filterValue reads a key filter rule. S3 reports rule names capitalized.
func filterValue(c types.LambdaFunctionConfiguration, name types.FilterRuleName) string {
	if c.Filter == nil || c.Filter.Key == nil {
		return ""
	}
	for _, r := range c.Filter.Key.FilterRules {
		if strings.EqualFold(string(r.Name), string(name)) {
			return aws.ToString(r.Value)
		}
	}
	return ""
}
