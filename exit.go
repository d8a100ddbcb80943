package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
)

// ApproveExit applies an approved exit request: the holding becomes exited,
// its units return to the property's pool and the owner's tier is
// recomputed, all in one transaction.
func (e *Engine) ApproveExit(ctx context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.ApproveExit", trace.WithAttributes(
		attribute.String("settlement.ownership_id", ownershipID.String()),
	))
	defer span.End()

	var (
		exited *ownership.Ownership
		change tierChange
	)
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		cur, err := tx.GetOwnership(ctx, ownershipID)
		if err != nil {
			return err
		}
		// Property before ownership, the same order Settle locks them in.
		if _, err := tx.LockProperty(ctx, cur.PropertyID); err != nil {
			return err
		}
		o, err := tx.TransitionOwnership(ctx, ownershipID, ownership.ActiveLike, ownership.StatusExited)
		if err != nil {
			return err
		}
		if err := tx.Release(ctx, o.PropertyID, o.Units); err != nil {
			return fmt.Errorf("release units: %w", err)
		}
		if err := checkInventory(ctx, tx, o.PropertyID); err != nil {
			return err
		}
		if change, err = recomputeTier(ctx, tx, o.UserID); err != nil {
			return fmt.Errorf("recompute tier: %w", err)
		}
		exited = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInvariantViolation) {
			if o, getErr := e.store.GetOwnership(ctx, ownershipID); getErr == nil {
				e.haltProperty(ctx, o.PropertyID, err)
			}
		}
		return nil, err
	}

	e.invalidate(ctx, cache.AvailableKey(exited.PropertyID.String()), cache.TierKey(exited.UserID))
	e.plugins.EmitOwnershipExited(ctx, exited)
	if change.changed {
		e.plugins.EmitTierChanged(ctx, exited.UserID, change.from, change.to)
	}

	e.logger.Info("ownership exited",
		"ownership_id", exited.ID.String(),
		"property_id", exited.PropertyID.String(),
		"user_id", exited.UserID,
		"units", exited.Units,
		"tier", change.to,
	)
	return exited, nil
}

// LockOwnership freezes an active holding, e.g. while an exit request is
// under review. Locked units still count toward inventory and tier.
func (e *Engine) LockOwnership(ctx context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	return e.store.TransitionOwnership(ctx, ownershipID,
		[]ownership.Status{ownership.StatusActive}, ownership.StatusLocked)
}

// UnlockOwnership returns a locked holding to active.
func (e *Engine) UnlockOwnership(ctx context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	return e.store.TransitionOwnership(ctx, ownershipID,
		[]ownership.Status{ownership.StatusLocked}, ownership.StatusActive)
}

// ListOwnerships lists holdings.
func (e *Engine) ListOwnerships(ctx context.Context, opts ownership.ListOpts) ([]*ownership.Ownership, error) {
	return e.store.ListOwnerships(ctx, opts)
}

// GrantDeveloperReserve sets aside units for a developer as a
// developer_reserve holding. No payment reference is involved. If the user
// already holds units in the property the reserve merges into that record.
func (e *Engine) GrantDeveloperReserve(ctx context.Context, propertyID id.PropertyID, userID string, units int64) (*ownership.Ownership, error) {
	if userID == "" {
		return nil, ValidationError{Field: "user_id", Message: "required"}
	}
	if units <= 0 {
		return nil, ValidationError{Field: "units", Message: "must be positive"}
	}

	var (
		granted *ownership.Ownership
		change  tierChange
	)
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Reserve(ctx, propertyID, units); err != nil {
			return err
		}
		o, err := tx.Grant(ctx, ownership.GrantParams{
			UserID:     userID,
			PropertyID: propertyID,
			Units:      units,
			Status:     ownership.StatusDeveloperReserve,
		})
		if err != nil {
			return fmt.Errorf("grant reserve: %w", err)
		}
		if err := checkInventory(ctx, tx, propertyID); err != nil {
			return err
		}
		if change, err = recomputeTier(ctx, tx, userID); err != nil {
			return fmt.Errorf("recompute tier: %w", err)
		}
		granted = o
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			e.haltProperty(ctx, propertyID, err)
		}
		return nil, err
	}

	e.invalidate(ctx, cache.AvailableKey(propertyID.String()), cache.TierKey(userID))
	if change.changed {
		e.plugins.EmitTierChanged(ctx, userID, change.from, change.to)
	}
	e.logger.Info("developer reserve granted",
		"property_id", propertyID.String(),
		"user_id", userID,
		"units", units,
	)
	return granted, nil
}
