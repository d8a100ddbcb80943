package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// RegisterProperty records a property supplied by property management.
// All units start available.
func (e *Engine) RegisterProperty(ctx context.Context, p *property.Property) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return ValidationError{Field: "name", Message: "required"}
	case p.TotalUnits <= 0:
		return ValidationError{Field: "total_units", Message: "must be positive"}
	case !p.PricePerUnit.IsPositive():
		return ValidationError{Field: "price_per_unit", Message: "must be positive"}
	}

	if p.ID.IsNil() {
		p.ID = id.NewPropertyID()
	}
	p.Entity = types.NewEntity()
	p.AvailableUnits = p.TotalUnits
	p.Halted = false
	p.HaltReason = ""

	if err := e.store.CreateProperty(ctx, p); err != nil {
		return err
	}

	e.logger.Info("property registered",
		"property_id", p.ID.String(),
		"total_units", p.TotalUnits,
		"price_per_unit", p.PricePerUnit.String(),
	)
	return nil
}

// GetProperty retrieves a property by ID.
func (e *Engine) GetProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	return e.store.GetProperty(ctx, propertyID)
}

// ListProperties lists properties.
func (e *Engine) ListProperties(ctx context.Context, opts property.ListOpts) ([]*property.Property, error) {
	return e.store.ListProperties(ctx, opts)
}

// GetAvailableUnits returns the units still for sale on a property.
func (e *Engine) GetAvailableUnits(ctx context.Context, propertyID id.PropertyID) (int64, error) {
	key := cache.AvailableKey(propertyID.String())
	if v, ok := e.cached(ctx, key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	}

	lease := e.lease(ctx, key)
	p, err := e.store.GetProperty(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	e.fill(ctx, key, lease, strconv.FormatInt(p.AvailableUnits, 10))
	return p.AvailableUnits, nil
}

// checkInventory verifies that held plus available units equal the total
// and that availability is within bounds.
func checkInventory(ctx context.Context, s store.Store, propertyID id.PropertyID) error {
	p, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	held, err := s.SumUnitsByProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if !p.InBounds() || held+p.AvailableUnits != p.TotalUnits {
		return fmt.Errorf("%w: property %s total=%d available=%d held=%d",
			ErrInvariantViolation, propertyID, p.TotalUnits, p.AvailableUnits, held)
	}
	return nil
}

// VerifyInventory checks a property's unit balance on demand. A mismatch
// halts the property and is returned as ErrInvariantViolation.
func (e *Engine) VerifyInventory(ctx context.Context, propertyID id.PropertyID) error {
	err := checkInventory(ctx, e.store, propertyID)
	if errors.Is(err, ErrInvariantViolation) {
		e.haltProperty(ctx, propertyID, err)
	}
	return err
}

// ResumeProperty clears a halt once the property balances again.
func (e *Engine) ResumeProperty(ctx context.Context, propertyID id.PropertyID) error {
	if err := checkInventory(ctx, e.store, propertyID); err != nil {
		return err
	}
	if err := e.store.SetHalted(ctx, propertyID, false, ""); err != nil {
		return err
	}
	e.invalidate(ctx, cache.AvailableKey(propertyID.String()))
	e.logger.Info("property resumed", "property_id", propertyID.String())
	return nil
}

// haltProperty stops all further writes to a property and raises an alert.
func (e *Engine) haltProperty(ctx context.Context, propertyID id.PropertyID, cause error) {
	if err := e.store.SetHalted(ctx, propertyID, true, cause.Error()); err != nil {
		e.logger.Error("failed to halt property",
			"property_id", propertyID.String(),
			"error", err,
		)
	}
	e.invalidate(ctx, cache.AvailableKey(propertyID.String()))
	e.plugins.EmitInvariantViolation(ctx, propertyID.String(), cause)

	e.logger.Error("inventory invariant violated, property halted",
		"property_id", propertyID.String(),
		"error", cause,
	)
}
