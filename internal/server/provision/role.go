package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

const inlinePolicyName = "uploadvault-object-access"

// basicExecutionPolicy is the managed policy granting CloudWatch Logs access.
func basicExecutionPolicy(partition string) string {
	return "arn:" + partition + ":iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"
}

// RoleState records what EnsureExecRole changed.
type RoleState struct {
	ARN            string
	Created        bool
	TrustUpdated   bool
	PolicyAttached bool
	InlineUpdated  bool
}

func (s RoleState) Changed() bool {
	return s.Created || s.TrustUpdated || s.PolicyAttached || s.InlineUpdated
}

// EnsureExecRole makes the function's execution role match the manifest: the
// Lambda trust policy, the managed logging policy and an inline policy
// limited to objects under the key prefix of the instance bucket.
func (r *Reconciler) EnsureExecRole(ctx context.Context, m Manifest) (*RoleState, error) {
	trust, err := renderTemplate("trust-policy.json", nil)
	if err != nil {
		return nil, err
	}
	inline, err := renderTemplate("exec-policy.json", map[string]string{
		"PARTITION": m.partition(),
		"BUCKET":    m.Bucket,
		"PREFIX":    m.keyPrefix(),
	})
	if err != nil {
		return nil, err
	}

	state := &RoleState{}
	role, err := r.getRole(ctx, m.RoleName)
	if err != nil {
		return nil, err
	}

	if role == nil {
		out, err := r.iam.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(m.RoleName),
			AssumeRolePolicyDocument: aws.String(trust),
			Description:              aws.String("Execution role for the uploadvault notifier of " + m.Bucket),
		})
		switch {
		case err == nil:
			role = out.Role
			state.Created = true
			r.metrics.ProvisionMutation("role", "create")
			r.logger.Info(ctx, "execution role created", "role", m.RoleName)
		case isEntityAlreadyExists(err):
			// Created by a concurrent run.
			if role, err = r.getRole(ctx, m.RoleName); err != nil {
				return nil, err
			}
			if role == nil {
				return nil, fmt.Errorf("role %s reported as existing but not found", m.RoleName)
			}
		default:
			return nil, fmt.Errorf("create role %s: %w", m.RoleName, err)
		}
	}
	state.ARN = aws.ToString(role.Arn)

	if !state.Created {
		same, err := policyEqual(aws.ToString(role.AssumeRolePolicyDocument), trust)
		if err != nil {
			return nil, err
		}
		if !same {
			if _, err := r.iam.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
				RoleName:       aws.String(m.RoleName),
				PolicyDocument: aws.String(trust),
			}); err != nil {
				return nil, fmt.Errorf("update trust policy of %s: %w", m.RoleName, err)
			}
			state.TrustUpdated = true
			r.metrics.ProvisionMutation("role", "update_trust")
			r.logger.Info(ctx, "execution role trust policy updated", "role", m.RoleName)
		}
	}

	managed := basicExecutionPolicy(m.partition())
	attached, err := r.hasAttachedPolicy(ctx, m.RoleName, managed)
	if err != nil {
		return nil, err
	}
	if !attached {
		if _, err := r.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(m.RoleName),
			PolicyArn: aws.String(managed),
		}); err != nil {
			return nil, fmt.Errorf("attach %s to %s: %w", managed, m.RoleName, err)
		}
		state.PolicyAttached = true
		r.metrics.ProvisionMutation("role", "attach_policy")
	}

	current, err := r.iam.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
		RoleName:   aws.String(m.RoleName),
		PolicyName: aws.String(inlinePolicyName),
	})
	if err != nil && !isNoSuchEntity(err) {
		return nil, fmt.Errorf("get inline policy of %s: %w", m.RoleName, err)
	}
	same := false
	if err == nil {
		if same, err = policyEqual(aws.ToString(current.PolicyDocument), inline); err != nil {
			return nil, err
		}
	}
	if !same {
		if _, err := r.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(m.RoleName),
			PolicyName:     aws.String(inlinePolicyName),
			PolicyDocument: aws.String(inline),
		}); err != nil {
			return nil, fmt.Errorf("put inline policy of %s: %w", m.RoleName, err)
		}
		state.InlineUpdated = true
		r.metrics.ProvisionMutation("role", "put_inline_policy")
		r.logger.Info(ctx, "execution role inline policy written", "role", m.RoleName)
	}

	return state, nil
}

// getRole returns nil when the role does not exist.
func (r *Reconciler) getRole(ctx context.Context, name string) (*types.Role, error) {
	out, err := r.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		if isNoSuchEntity(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get role %s: %w", name, err)
	}
	return out.Role, nil
}

func (r *Reconciler) hasAttachedPolicy(ctx context.Context, role, arn string) (bool, error) {
	in := &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(role)}
	for {
		out, err := r.iam.ListAttachedRolePolicies(ctx, in)
		if err != nil {
			return false, fmt.Errorf("list policies of %s: %w", role, err)
		}
		for _, p := range out.AttachedPolicies {
			if aws.ToString(p.PolicyArn) == arn {
				return true, nil
			}
		}
		if !out.IsTruncated || out.Marker == nil {
			return false, nil
		}
		in.Marker = out.Marker
	}
}

// policyEqual compares two policy documents structurally. IAM returns
// documents URL-encoded; both forms are accepted.
func policyEqual(remote, desired string) (bool, error) {
	if decoded, err := url.QueryUnescape(remote); err == nil {
		remote = decoded
	}
	var a, b any
	if err := json.Unmarshal([]byte(remote), &a); err != nil {
		// An unparseable remote document is treated as drift.
		return false, nil
	}
	if err := json.Unmarshal([]byte(desired), &b); err != nil {
		return false, fmt.Errorf("invalid desired policy: %w", err)
	}
	return reflect.DeepEqual(a, b), nil
}
