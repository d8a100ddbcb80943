package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NIMOLA/hermeos-backend-sub002/payment"
)

// RecoveryReport summarizes one recovery pass.
type RecoveryReport struct {
	Scanned  int           `json:"scanned"`
	Settled  int           `json:"settled"`
	Rejected int           `json:"rejected"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed"`
	// Resolved counts entries that reached a terminal state in this pass.
	Resolved int `json:"resolved"`
}

// RecoverStale drives pending and settling entries that have not been
// touched within the stale window to a terminal state. Each entry is claimed
// first so concurrent workers never drive the same reference; a claimed
// entry re-runs the transactional core, which either settles it or rejects
// it with the core rolled back.
func (e *Engine) RecoverStale(ctx context.Context) (RecoveryReport, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.RecoverStale")
	defer span.End()

	start := time.Now()
	cutoff := start.UTC().Add(-e.staleAfter)

	var report RecoveryReport
	entries, err := e.store.ListEntries(ctx, payment.ListOpts{
		States:        []payment.State{payment.StatePending, payment.StateSettling},
		UpdatedBefore: cutoff,
		Limit:         e.recoveryBatch,
	})
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("%w: list stale entries: %w", ErrStorageFailure, err)
	}

	var errs MultiError
	for _, entry := range entries {
		report.Scanned++

		claimed, err := e.store.ClaimStale(ctx, entry.Reference, cutoff)
		if err != nil {
			report.Failed++
			errs.Add(fmt.Errorf("claim %s: %w", entry.Reference, err))
			continue
		}
		if !claimed {
			report.Skipped++
			continue
		}

		res, err := e.recoverEntry(ctx, entry)
		switch {
		case res == nil:
			report.Failed++
			errs.Add(fmt.Errorf("recover %s: %w", entry.Reference, err))
		case res.Status == payment.StateSettled:
			report.Settled++
			report.Resolved++
		case res.Status == payment.StateRejected:
			report.Rejected++
			report.Resolved++
		default:
			report.Skipped++
		}
	}

	report.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("recovery.scanned", report.Scanned),
		attribute.Int("recovery.resolved", report.Resolved),
	)

	if report.Scanned > 0 {
		e.plugins.EmitRecoveryCompleted(ctx, report.Resolved, report.Failed, report.Elapsed)
		e.logger.Info("recovery pass completed",
			"scanned", report.Scanned,
			"settled", report.Settled,
			"rejected", report.Rejected,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"elapsed_ms", report.Elapsed.Milliseconds(),
		)
	}

	if err := errs.ErrOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

// recoverEntry re-drives one claimed entry. A nil result means the entry is
// still unresolved and the next pass will retry it.
func (e *Engine) recoverEntry(ctx context.Context, entry *payment.Entry) (*Result, error) {
	st := newStageTracker()
	st.to(StageLedgerChecked)

	if entry.State == payment.StatePending {
		if err := e.store.MarkSettling(ctx, entry.Reference); err != nil {
			if errors.Is(err, ErrStateConflict) {
				current, getErr := e.store.GetEntry(ctx, entry.Reference)
				if getErr == nil && current.State.Terminal() {
					return resultFrom(current, StageShortCircuited, true), nil
				}
			}
			return nil, err
		}
		entry.State = payment.StateSettling
	}

	coreCtx, cancel := context.WithTimeout(ctx, e.coreTimeout)
	defer cancel()

	res, err := e.drive(coreCtx, entry, st)
	if res != nil {
		e.logger.Info("stale settlement recovered",
			"reference", entry.Reference,
			"status", res.Status,
			"reason", res.Reason,
			"attempts", entry.Attempts+1,
		)
		return res, nil
	}
	return nil, err
}
