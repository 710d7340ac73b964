package approval

import (
	"context"

	"golang.org/x/sync/errgroup"

	echoerrors "github.com/echohq/echo/pkg/errors"
	"github.com/echohq/echo/pkg/telemetry"
)

// CascadeRejectReason is attached to every call auto-rejected after the
// user rejected an earlier one.
const CascadeRejectReason = "Automatically rejected because an earlier action in this run was rejected"

// Responder persists one approval decision. The UI owns storage; the gate
// only sequences the calls.
type Responder func(ctx context.Context, approvalID string, approved bool, reason string) error

// Respond answers the identified approval. A rejection cascades: every
// tool call after it (in flattened order) still awaiting approval is
// auto-rejected with CascadeRejectReason, without further user input —
// one decision per branch withdraws all its undecided followers.
//
// Cascade rejections run concurrently; the call joins them all before
// returning, so callers observe a settled tree.
func Respond(ctx context.Context, nodes []*Node, approvalID string, approved bool, reason string, respond Responder) error {
	flat := FlattenTools(nodes)

	target := -1
	for i, n := range flat {
		if n.ApprovalID == approvalID && n.AwaitingApproval() {
			target = i
			break
		}
	}
	if target == -1 {
		return echoerrors.New(echoerrors.ErrCodeApprovalNotFound, "no pending tool call for approval").
			WithContext("approval_id", approvalID)
	}

	if err := respond(ctx, approvalID, approved, reason); err != nil {
		return echoerrors.Wrap(err, echoerrors.ErrCodeInternal, "failed to record approval response").
			WithContext("approval_id", approvalID)
	}
	flat[target].State = StateApprovalResponded

	if approved {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	cascaded := 0
	for _, n := range flat[target+1:] {
		if !n.AwaitingApproval() || n.ApprovalID == "" {
			continue
		}
		node := n
		cascaded++
		g.Go(func() error {
			if err := respond(ctx, node.ApprovalID, false, CascadeRejectReason); err != nil {
				return err
			}
			node.State = StateOutputDenied
			return nil
		})
	}

	telemetry.RecordCascadeRejections(cascaded)
	if err := g.Wait(); err != nil {
		return echoerrors.Wrap(err, echoerrors.ErrCodeInternal, "cascade rejection failed")
	}
	return nil
}
