package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
)

// OnSettlement grants any verified-tier capabilities an approved user is
// missing. Users who are not approved are left untouched. It returns the
// names actually inserted.
func (e *Engine) OnSettlement(ctx context.Context, userID string) ([]string, error) {
	status, err := e.store.GetKYCStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status != capability.KYCApproved {
		return nil, nil
	}
	return e.grantMissing(ctx, userID, capability.SourceSettlement)
}

func (e *Engine) grantMissing(ctx context.Context, userID, source string) ([]string, error) {
	grants, err := e.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	missing := e.catalog.Missing(grants)
	if len(missing) == 0 {
		return nil, nil
	}

	inserted, err := e.store.GrantCapabilities(ctx, userID, missing, source)
	if err != nil {
		return nil, err
	}
	if len(inserted) > 0 {
		e.plugins.EmitCapabilitiesGranted(ctx, userID, inserted)
		e.logger.Info("capabilities granted",
			"user_id", userID,
			"source", source,
			"capabilities", inserted,
		)
	}
	return inserted, nil
}

// ReconcileCapabilities audits every approved user against the verified
// catalog and inserts missing grants. It never revokes and never touches
// users who are not approved, so repeated runs converge and then no-op.
// Per-user failures are collected; the pass continues past them.
func (e *Engine) ReconcileCapabilities(ctx context.Context) (capability.ReconcileReport, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.ReconcileCapabilities")
	defer span.End()

	start := time.Now()
	var (
		report capability.ReconcileReport
		errs   MultiError
		mu     sync.Mutex
		after  string
	)

	for {
		users, err := e.store.ListApprovedUsers(ctx, after, e.reconcileBatch)
		if err != nil {
			errs.Add(fmt.Errorf("%w: list approved users: %w", ErrStorageFailure, err))
			break
		}
		if len(users) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(e.reconcileConcurrency)
		for _, userID := range users {
			g.Go(func() error {
				inserted, err := e.grantMissing(ctx, userID, capability.SourceReconcile)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed++
					errs.Add(fmt.Errorf("reconcile %s: %w", userID, err))
					return nil
				}
				if len(inserted) > 0 {
					report.UsersUpdated++
					report.GrantsInserted += len(inserted)
				}
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // workers report through errs

		report.UsersScanned += len(users)
		after = users[len(users)-1]
		if len(users) < e.reconcileBatch {
			break
		}
	}

	report.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("reconcile.users_scanned", report.UsersScanned),
		attribute.Int("reconcile.grants_inserted", report.GrantsInserted),
	)

	e.plugins.EmitReconcileCompleted(ctx, report)
	e.logger.Info("capability reconcile completed",
		"users_scanned", report.UsersScanned,
		"users_updated", report.UsersUpdated,
		"grants_inserted", report.GrantsInserted,
		"failed", report.Failed,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)

	if err := errs.ErrOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

// SetKYCStatus mirrors the KYC subsystem's verdict for a user. An approval
// cascades verified capabilities immediately; other statuses change nothing
// else, since revocation is an explicit operation.
func (e *Engine) SetKYCStatus(ctx context.Context, userID string, status capability.KYCStatus) error {
	if userID == "" {
		return ValidationError{Field: "user_id", Message: "required"}
	}
	if !status.Valid() {
		return ValidationError{Field: "status", Message: fmt.Sprintf("unknown KYC status %q", status)}
	}

	if err := e.store.SetKYCStatus(ctx, userID, status); err != nil {
		return err
	}
	if status != capability.KYCApproved {
		return nil
	}

	_, err := e.grantMissing(ctx, userID, capability.SourceKYC)
	return err
}

// RevokeVerifiedCapabilities removes every verified-tier grant from a user,
// including grants stored under legacy names.
func (e *Engine) RevokeVerifiedCapabilities(ctx context.Context, userID string) ([]string, error) {
	grants, err := e.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, g := range grants {
		if e.catalog.IsVerified(g.Name) {
			names = append(names, g.Name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	removed, err := e.store.RevokeCapabilities(ctx, userID, names)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		e.plugins.EmitCapabilitiesRevoked(ctx, userID, removed)
		e.logger.Info("capabilities revoked", "user_id", userID, "capabilities", removed)
	}
	return removed, nil
}

// Capabilities lists the user's current grants.
func (e *Engine) Capabilities(ctx context.Context, userID string) ([]*capability.Grant, error) {
	return e.store.ListGrants(ctx, userID)
}
