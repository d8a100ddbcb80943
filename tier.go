package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

type tierChange struct {
	from, to tier.Tier
	units    int64
	changed  bool
}

// recomputeTier derives the user's tier from their active-like holdings and
// writes it when it differs from the stored projection.
func recomputeTier(ctx context.Context, s store.Store, userID string) (tierChange, error) {
	units, err := s.SumUnitsByUser(ctx, userID)
	if err != nil {
		return tierChange{}, err
	}
	next := tier.ForUnits(units)

	rec, err := s.GetTier(ctx, userID)
	switch {
	case err == nil:
		if rec.Tier == next {
			return tierChange{from: rec.Tier, to: next, units: units}, nil
		}
	case errors.Is(err, ErrTierNotFound):
		rec = &tier.Record{Entity: types.NewEntity(), UserID: userID, Tier: tier.Standard}
	default:
		return tierChange{}, err
	}

	change := tierChange{from: rec.Tier, to: next, units: units, changed: rec.Tier != next}
	rec.Tier = next
	rec.Units = units
	if err := s.SaveTier(ctx, rec); err != nil {
		return tierChange{}, err
	}
	return change, nil
}

// RecomputeTier recomputes and stores the user's tier from the ownership
// ledger. It never reads the cached tier as input and is safe to call from
// any trigger, any number of times.
func (e *Engine) RecomputeTier(ctx context.Context, userID string) (tier.Tier, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ValidationError{Field: "user_id", Message: "required"}
	}

	var change tierChange
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		change, err = recomputeTier(ctx, tx, userID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("recompute tier for %s: %w", userID, err)
	}

	e.invalidate(ctx, cache.TierKey(userID))
	if change.changed {
		e.plugins.EmitTierChanged(ctx, userID, change.from, change.to)
		e.logger.Info("tier changed",
			"user_id", userID,
			"from", change.from,
			"to", change.to,
			"units", change.units,
		)
	}
	return change.to, nil
}

// GetTier returns the user's tier, serving from cache when configured.
// Users with no stored projection are computed on first read.
func (e *Engine) GetTier(ctx context.Context, userID string) (tier.Tier, error) {
	key := cache.TierKey(userID)
	if v, ok := e.cached(ctx, key); ok {
		return tier.Tier(v), nil
	}

	lease := e.lease(ctx, key)
	rec, err := e.store.GetTier(ctx, userID)
	if errors.Is(err, ErrTierNotFound) {
		// Recomputing invalidates the key, so the fill needs a new lease.
		if _, err := e.RecomputeTier(ctx, userID); err != nil {
			return "", err
		}
		lease = e.lease(ctx, key)
		rec, err = e.store.GetTier(ctx, userID)
	}
	if err != nil {
		return "", err
	}
	e.fill(ctx, key, lease, string(rec.Tier))
	return rec.Tier, nil
}
