package audithook

// Action constants for audit events.
const (
	// Engine lifecycle actions
	ActionEngineStarted = "engine.started"
	ActionEngineStopped = "engine.stopped"

	// Settlement actions
	ActionSettlementSettled  = "settlement.settled"
	ActionSettlementRejected = "settlement.rejected"
	ActionSettlementReplayed = "settlement.replayed"

	// Holdings actions
	ActionTierChanged     = "tier.changed"
	ActionOwnershipExited = "ownership.exited"

	// Capability actions
	ActionCapabilitiesGranted = "capabilities.granted"
	ActionCapabilitiesRevoked = "capabilities.revoked"

	// Integrity and worker actions
	ActionInvariantViolated  = "inventory.invariant_violated"
	ActionRecoveryCompleted  = "recovery.completed"
	ActionReconcileCompleted = "reconcile.completed"
)

// Resource constants for audit events.
const (
	ResourceEngine     = "engine"
	ResourceSettlement = "settlement"
	ResourceTier       = "tier"
	ResourceOwnership  = "ownership"
	ResourceCapability = "capability"
	ResourceProperty   = "property"
	ResourceWorker     = "worker"
)

// Category constants for audit events.
const (
	CategorySystem    = "system"
	CategoryPayment   = "payment"
	CategoryHoldings  = "holdings"
	CategoryAccess    = "access"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
