// Package audithook bridges settlement lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter, or use
// NewSlogRecorder to write structured audit lines.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/plugin"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnInit                = (*Extension)(nil)
	_ plugin.OnShutdown            = (*Extension)(nil)
	_ plugin.OnSettlementSettled   = (*Extension)(nil)
	_ plugin.OnSettlementRejected  = (*Extension)(nil)
	_ plugin.OnSettlementReplayed  = (*Extension)(nil)
	_ plugin.OnTierChanged         = (*Extension)(nil)
	_ plugin.OnOwnershipExited     = (*Extension)(nil)
	_ plugin.OnCapabilitiesGranted = (*Extension)(nil)
	_ plugin.OnCapabilitiesRevoked = (*Extension)(nil)
	_ plugin.OnInvariantViolation  = (*Extension)(nil)
	_ plugin.OnRecoveryCompleted   = (*Extension)(nil)
	_ plugin.OnReconcileCompleted  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// NewSlogRecorder returns a Recorder that writes each event as one
// structured log line at a level derived from its severity.
func NewSlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *AuditEvent) error {
		level := slog.LevelInfo
		switch event.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("category", event.Category),
			slog.String("outcome", event.Outcome),
			slog.String("severity", event.Severity),
		}
		if event.ResourceID != "" {
			attrs = append(attrs, slog.String("resource_id", event.ResourceID))
		}
		if event.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Reason))
		}
		if len(event.Metadata) > 0 {
			meta := make([]any, 0, len(event.Metadata))
			for k, v := range event.Metadata {
				meta = append(meta, slog.Any(k, v))
			}
			attrs = append(attrs, slog.Group("metadata", meta...))
		}

		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Extension bridges settlement lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Engine lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit implements plugin.OnInit.
func (e *Extension) OnInit(ctx context.Context, _ any) error {
	return e.record(ctx, ActionEngineStarted, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategorySystem, nil,
	)
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionEngineStopped, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategorySystem, nil,
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementSettled implements plugin.OnSettlementSettled.
func (e *Extension) OnSettlementSettled(ctx context.Context, entry *payment.Entry) error {
	return e.record(ctx, ActionSettlementSettled, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, entry.Reference, CategoryPayment, nil,
		"user_id", entry.UserID,
		"property_id", entry.PropertyID.String(),
		"ownership_id", entry.OwnershipID.String(),
		"units", entry.Units,
		"amount", entry.Amount.Int64(),
	)
}

// OnSettlementRejected implements plugin.OnSettlementRejected.
func (e *Extension) OnSettlementRejected(ctx context.Context, entry *payment.Entry, reason string) error {
	severity := SeverityWarning
	if reason == payment.ReasonInvariantViolation {
		severity = SeverityCritical
	}
	return e.record(ctx, ActionSettlementRejected, severity, OutcomeFailure,
		ResourceSettlement, entry.Reference, CategoryPayment, nil,
		"user_id", entry.UserID,
		"property_id", entry.PropertyID.String(),
		"units", entry.Units,
		"reason_code", reason,
	)
}

// OnSettlementReplayed implements plugin.OnSettlementReplayed.
func (e *Extension) OnSettlementReplayed(ctx context.Context, entry *payment.Entry) error {
	return e.record(ctx, ActionSettlementReplayed, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, entry.Reference, CategoryPayment, nil,
		"state", string(entry.State),
	)
}

// ──────────────────────────────────────────────────
// Holdings hooks
// ──────────────────────────────────────────────────

// OnTierChanged implements plugin.OnTierChanged.
func (e *Extension) OnTierChanged(ctx context.Context, userID string, from, to tier.Tier) error {
	return e.record(ctx, ActionTierChanged, SeverityInfo, OutcomeSuccess,
		ResourceTier, userID, CategoryHoldings, nil,
		"from", string(from),
		"to", string(to),
	)
}

// OnOwnershipExited implements plugin.OnOwnershipExited.
func (e *Extension) OnOwnershipExited(ctx context.Context, o *ownership.Ownership) error {
	return e.record(ctx, ActionOwnershipExited, SeverityInfo, OutcomeSuccess,
		ResourceOwnership, o.ID.String(), CategoryHoldings, nil,
		"user_id", o.UserID,
		"property_id", o.PropertyID.String(),
		"units", o.Units,
	)
}

// ──────────────────────────────────────────────────
// Capability hooks
// ──────────────────────────────────────────────────

// OnCapabilitiesGranted implements plugin.OnCapabilitiesGranted.
func (e *Extension) OnCapabilitiesGranted(ctx context.Context, userID string, names []string) error {
	return e.record(ctx, ActionCapabilitiesGranted, SeverityInfo, OutcomeSuccess,
		ResourceCapability, userID, CategoryAccess, nil,
		"names", names,
	)
}

// OnCapabilitiesRevoked implements plugin.OnCapabilitiesRevoked.
func (e *Extension) OnCapabilitiesRevoked(ctx context.Context, userID string, names []string) error {
	return e.record(ctx, ActionCapabilitiesRevoked, SeverityWarning, OutcomeSuccess,
		ResourceCapability, userID, CategoryAccess, nil,
		"names", names,
	)
}

// ──────────────────────────────────────────────────
// Integrity and worker hooks
// ──────────────────────────────────────────────────

// OnInvariantViolation implements plugin.OnInvariantViolation.
func (e *Extension) OnInvariantViolation(ctx context.Context, propertyID string, err error) error {
	return e.record(ctx, ActionInvariantViolated, SeverityCritical, OutcomeFailure,
		ResourceProperty, propertyID, CategoryIntegrity, err,
	)
}

// OnRecoveryCompleted implements plugin.OnRecoveryCompleted.
func (e *Extension) OnRecoveryCompleted(ctx context.Context, resolved, failed int, elapsed time.Duration) error {
	return e.record(ctx, ActionRecoveryCompleted, severityFor(failed), outcomeFor(resolved, failed),
		ResourceWorker, "recovery", CategorySystem, nil,
		"resolved", resolved,
		"failed", failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnReconcileCompleted implements plugin.OnReconcileCompleted.
func (e *Extension) OnReconcileCompleted(ctx context.Context, report capability.ReconcileReport) error {
	return e.record(ctx, ActionReconcileCompleted, severityFor(report.Failed),
		outcomeFor(report.UsersScanned-report.Failed, report.Failed),
		ResourceWorker, "reconcile", CategoryAccess, nil,
		"users_scanned", report.UsersScanned,
		"users_updated", report.UsersUpdated,
		"grants_inserted", report.GrantsInserted,
		"failed", report.Failed,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func severityFor(failed int) string {
	if failed > 0 {
		return SeverityWarning
	}
	return SeverityInfo
}

func outcomeFor(ok, failed int) string {
	switch {
	case failed == 0:
		return OutcomeSuccess
	case ok > 0:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
