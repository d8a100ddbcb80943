package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/internal/retry"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Request is a confirmed payment reported by the payment gateway adapter.
type Request struct {
	Reference  string        `json:"reference"`
	PropertyID id.PropertyID `json:"property_id"`
	UserID     string        `json:"user_id"`
	Units      int64         `json:"units"`
	Amount     types.Money   `json:"amount"`
}

// Validate checks the request shape. It does not touch storage.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Reference) == "":
		return ValidationError{Field: "reference", Message: "required"}
	case r.PropertyID.IsNil():
		return ValidationError{Field: "property_id", Message: "required"}
	case strings.TrimSpace(r.UserID) == "":
		return ValidationError{Field: "user_id", Message: "required"}
	case r.Units <= 0:
		return ValidationError{Field: "units", Message: "must be positive"}
	case !r.Amount.IsPositive():
		return ValidationError{Field: "amount", Message: "must be positive"}
	}
	return nil
}

// Result is the outcome of a settlement.
type Result struct {
	Reference   string         `json:"reference"`
	Status      payment.State  `json:"status"`
	OwnershipID id.OwnershipID `json:"ownership_id"`
	PropertyID  id.PropertyID  `json:"property_id"`
	UserID      string         `json:"user_id"`
	Units       int64          `json:"units"`
	Reason      string         `json:"reason,omitempty"`
	// Replayed is true when the reference had already reached a terminal
	// state and nothing was re-run.
	Replayed bool  `json:"replayed"`
	Stage    Stage `json:"stage"`
}

// Settled reports whether the payment produced an ownership grant.
func (r *Result) Settled() bool { return r.Status == payment.StateSettled }

// Err maps a rejected result to its sentinel error; settled results return nil.
func (r *Result) Err() error {
	if r.Status != payment.StateRejected {
		return nil
	}
	return ReasonError(r.Reason)
}

func resultFrom(e *payment.Entry, stage Stage, replayed bool) *Result {
	return &Result{
		Reference:   e.Reference,
		Status:      e.State,
		OwnershipID: e.OwnershipID,
		PropertyID:  e.PropertyID,
		UserID:      e.UserID,
		Units:       e.Units,
		Reason:      e.Reason,
		Replayed:    replayed,
		Stage:       stage,
	}
}

// Settle turns a confirmed payment into an ownership grant.
//
// The reference is recorded before any inventory is touched. A reference that
// already reached a terminal state replays its stored outcome with no side
// effects. Reservation, grant, tier projection and ledger finalization commit
// in one transaction; any failure rolls all of them back and the reference is
// rejected with a reason code.
//
// Rejections return both a Result and an error: ErrInsufficientInventory and
// friends are terminal, ErrStorageFailure is retryable with a new reference,
// and ErrInvariantViolation is fatal and halts the property.
// ErrSettlementInProgress means another caller holds the reference.
// ErrTransactionFailed means the core kept losing to conflicting
// transactions; the reference stays settling and recovery finishes it.
//
// Once reservation begins the work is detached from ctx cancellation and is
// bounded by the engine's core timeout instead.
func (e *Engine) Settle(ctx context.Context, req Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("settlement.reference", req.Reference),
		attribute.String("settlement.property_id", req.PropertyID.String()),
		attribute.Int64("settlement.units", req.Units),
	))
	defer span.End()

	res, err := e.settle(ctx, req)
	if res != nil {
		span.SetAttributes(
			attribute.String("settlement.status", string(res.Status)),
			attribute.Bool("settlement.replayed", res.Replayed),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (e *Engine) settle(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	st := newStageTracker()
	attempt := payment.NewEntry(req.Reference, req.PropertyID, req.UserID, req.Units, req.Amount)

	entry, created, err := e.store.RecordAttempt(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("%w: record attempt: %w", ErrStorageFailure, err)
	}
	st.to(StageLedgerChecked)

	if !created {
		if !entry.SameRequest(attempt) {
			return nil, fmt.Errorf("%w: %s", ErrReferenceMismatch, req.Reference)
		}
		switch entry.State {
		case payment.StateSettled, payment.StateRejected:
			return e.replay(ctx, entry, st)
		case payment.StateSettling:
			return nil, fmt.Errorf("%w: %s", ErrSettlementInProgress, req.Reference)
		}
		// pending: the recording caller never advanced it; race for it below.
	}

	if err := e.store.MarkSettling(ctx, req.Reference); err != nil {
		if !errors.Is(err, ErrStateConflict) {
			return nil, fmt.Errorf("%w: mark settling: %w", ErrStorageFailure, err)
		}
		current, getErr := e.store.GetEntry(ctx, req.Reference)
		if getErr == nil && current.State.Terminal() {
			return e.replay(ctx, current, st)
		}
		return nil, fmt.Errorf("%w: %s", ErrSettlementInProgress, req.Reference)
	}
	entry.State = payment.StateSettling

	coreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.coreTimeout)
	defer cancel()

	return e.drive(coreCtx, entry, st)
}

// drive runs the transactional core for an entry already in settling and
// records the terminal outcome. Recovery re-enters here.
func (e *Engine) drive(ctx context.Context, entry *payment.Entry, st *stageTracker) (*Result, error) {
	st.to(StageReserving)
	if st.err != nil {
		return nil, st.err
	}

	out, err := retry.Do(ctx, e.conflictRetry(), e.logger, "settlement core", func(ctx context.Context) (*coreOutcome, error) {
		return e.runCore(ctx, entry, st)
	})
	if errors.Is(err, ErrTransactionFailed) {
		// Nothing committed and the payment is real: leave the entry
		// settling for recovery instead of rejecting it.
		e.logger.Warn("settlement core aborted by a conflicting transaction",
			"reference", entry.Reference,
			"property_id", entry.PropertyID.String(),
			"error", err,
		)
		return nil, err
	}
	if err != nil {
		return e.reject(ctx, entry, st, err)
	}

	at := time.Now().UTC()
	entry.State = payment.StateSettled
	entry.OwnershipID = out.ownership.ID
	entry.SettledAt = &at

	e.invalidate(ctx, cache.AvailableKey(entry.PropertyID.String()), cache.TierKey(entry.UserID))
	if out.tier.changed {
		e.plugins.EmitTierChanged(ctx, entry.UserID, out.tier.from, out.tier.to)
	}

	// The grant is durable; a cascade failure is healed by reconcile.
	if _, err := retry.Do(ctx, e.retry, e.logger, "capability cascade", func(ctx context.Context) ([]string, error) {
		return e.OnSettlement(ctx, entry.UserID)
	}); err != nil {
		e.logger.Error("capability cascade failed after settlement",
			"reference", entry.Reference,
			"user_id", entry.UserID,
			"error", err,
		)
	}

	st.to(StageDone)
	e.plugins.EmitSettlementSettled(ctx, entry)

	e.logger.Info("settlement settled",
		"reference", entry.Reference,
		"property_id", entry.PropertyID.String(),
		"user_id", entry.UserID,
		"units", entry.Units,
		"ownership_id", entry.OwnershipID.String(),
		"tier", out.tier.to,
	)

	return resultFrom(entry, st.current(), false), st.err
}

// conflictRetry is the engine backoff limited to aborted transactions.
func (e *Engine) conflictRetry() *retry.Config {
	cfg := *e.retry
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, ErrTransactionFailed) }
	return &cfg
}

type coreOutcome struct {
	ownership *ownership.Ownership
	tier      tierChange
}

// runCore is the all-or-nothing section: reserve, grant, recompute tier,
// verify inventory and finalize the ledger entry.
func (e *Engine) runCore(ctx context.Context, entry *payment.Entry, st *stageTracker) (*coreOutcome, error) {
	var out coreOutcome

	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		st.rewind(StageReserving)

		p, err := tx.LockProperty(ctx, entry.PropertyID)
		if err != nil {
			return err
		}
		if p.Halted {
			return fmt.Errorf("%w: %s", ErrPropertyHalted, p.HaltReason)
		}
		if e.verifyAmount {
			if want := p.PriceFor(entry.Units); want != entry.Amount {
				return fmt.Errorf("%w: expected %s for %d units, got %s",
					ErrAmountMismatch, want, entry.Units, entry.Amount)
			}
		}

		if err := tx.Reserve(ctx, entry.PropertyID, entry.Units); err != nil {
			return err
		}
		st.to(StageReserved)

		st.to(StageGranting)
		o, err := tx.Grant(ctx, ownership.GrantParams{
			UserID:           entry.UserID,
			PropertyID:       entry.PropertyID,
			Units:            entry.Units,
			AcquisitionPrice: entry.Amount,
		})
		if err != nil {
			return fmt.Errorf("grant ownership: %w", err)
		}
		st.to(StageGranted)

		if err := checkInventory(ctx, tx, entry.PropertyID); err != nil {
			return err
		}

		st.to(StageRecomputing)
		change, err := recomputeTier(ctx, tx, entry.UserID)
		if err != nil {
			return fmt.Errorf("recompute tier: %w", err)
		}

		if err := tx.MarkSettled(ctx, entry.Reference, o.ID); err != nil {
			return fmt.Errorf("finalize ledger: %w", err)
		}

		out = coreOutcome{ownership: o, tier: change}
		return st.err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// reject records a failed core run. The transaction has already rolled back,
// which is the compensating release for any reservation it made.
func (e *Engine) reject(ctx context.Context, entry *payment.Entry, st *stageTracker, cause error) (*Result, error) {
	reason := rejectionReason(cause)
	if errors.Is(cause, ErrInvariantViolation) {
		e.haltProperty(ctx, entry.PropertyID, cause)
	}

	if err := e.store.MarkRejected(ctx, entry.Reference, reason); err != nil {
		if errors.Is(err, ErrStateConflict) {
			// Another worker finished the reference first.
			if current, getErr := e.store.GetEntry(ctx, entry.Reference); getErr == nil && current.State.Terminal() {
				return e.replay(ctx, current, st)
			}
		}
		e.logger.Error("failed to record settlement rejection",
			"reference", entry.Reference,
			"reason", reason,
			"cause", cause,
			"error", err,
		)
		return nil, errors.Join(surface(cause), fmt.Errorf("mark rejected: %w", err))
	}

	st.to(StageRejected)
	entry.State = payment.StateRejected
	entry.Reason = reason
	e.plugins.EmitSettlementRejected(ctx, entry, reason)

	e.logger.Warn("settlement rejected",
		"reference", entry.Reference,
		"property_id", entry.PropertyID.String(),
		"user_id", entry.UserID,
		"units", entry.Units,
		"reason", reason,
		"error", cause,
	)

	return resultFrom(entry, st.current(), false), surface(cause)
}

// replay returns the stored outcome of a terminal reference.
func (e *Engine) replay(ctx context.Context, entry *payment.Entry, st *stageTracker) (*Result, error) {
	st.to(StageShortCircuited)
	e.plugins.EmitSettlementReplayed(ctx, entry)

	e.logger.Debug("settlement replayed",
		"reference", entry.Reference,
		"state", entry.State,
	)

	res := resultFrom(entry, StageShortCircuited, true)
	return res, res.Err()
}

// surface maps a core failure to what the caller sees. Business rejections
// pass through; everything unclassified is a retryable storage failure.
func surface(cause error) error {
	switch {
	case IsRejection(cause), IsFatal(cause), errors.Is(cause, ErrStorageFailure):
		return cause
	default:
		return fmt.Errorf("%w: %w", ErrStorageFailure, cause)
	}
}
