// Package permissions wraps the embedding application's permission predicate.
package permissions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

// Checker decides whether requesterID may perform action on file. For
// uploads, file carries only the declared filename, size, MIME type and meta.
// reqCtx is forwarded from the client unmodified and must be treated as
// untrusted.
type Checker func(ctx context.Context, file *models.FileRecord, action models.Action, requesterID string, reqCtx json.RawMessage) (bool, error)

// AllowAll is a Checker for trusted deployments and tests.
func AllowAll(context.Context, *models.FileRecord, models.Action, string, json.RawMessage) (bool, error) {
	return true, nil
}

// OwnerOnly allows any requester to upload and restricts download and delete
// to the recorded owner.
func OwnerOnly(_ context.Context, file *models.FileRecord, action models.Action, requesterID string, _ json.RawMessage) (bool, error) {
	if action == models.ActionUpload {
		return requesterID != "", nil
	}
	return requesterID != "" && file.OwnerID == requesterID, nil
}

// Gate has no state beyond its configuration.
type Gate struct {
	check Checker
	skip  bool
}

// NewGate returns a Gate using check. A nil check denies everything unless
// skip is set.
func NewGate(check Checker, skip bool) *Gate {
	return &Gate{check: check, skip: skip}
}

// Authorize returns nil when the action is allowed and an error wrapping
// common.ErrPermissionDenied otherwise, including when the checker fails.
func (g *Gate) Authorize(ctx context.Context, file *models.FileRecord, action models.Action, requesterID string, reqCtx json.RawMessage) error {
	if g.skip {
		return nil
	}
	if g.check == nil {
		return fmt.Errorf("%w: no permission checker configured", common.ErrPermissionDenied)
	}

	ok, err := g.check(ctx, file, action, requesterID, reqCtx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrPermissionDenied, action, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrPermissionDenied, action)
	}
	return nil
}
