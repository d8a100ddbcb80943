// Package settlement is the settlement engine for fractional real-estate
// ownership. It turns a confirmed payment into a durable ownership grant
// while keeping a fixed-supply unit inventory, each user's membership tier
// and each user's capability set consistent.
//
// The engine is a library. Import it into the service that receives payment
// confirmations and hand it a store. The SQL and Mongo stores run on grove
// drivers; postgres.New and friends also accept an existing *grove.DB:
//
//	import (
//	    settlement "github.com/NIMOLA/hermeos-backend-sub002"
//	    "github.com/NIMOLA/hermeos-backend-sub002/store/postgres"
//	)
//
//	st, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := settlement.New(st,
//	    settlement.WithLogger(logger),
//	    settlement.WithRecovery(time.Minute, 2*time.Minute),
//	)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Settling a payment
//
// Settle is the single entry point for confirmed payments:
//
//	res, err := eng.Settle(ctx, settlement.Request{
//	    Reference:  "PSK-8842",
//	    PropertyID: propertyID,
//	    UserID:     userID,
//	    Units:      5,
//	    Amount:     250000,
//	})
//	switch {
//	case err == nil:
//	    // res.OwnershipID holds the grant; res.Replayed is true on a repeat.
//	case errors.Is(err, settlement.ErrInsufficientInventory):
//	    // sold out: refund or manual review
//	case settlement.IsRetryable(err):
//	    // transient: retry with backoff
//	}
//
// Every reference is recorded before inventory is touched. Reserving units,
// granting ownership, recomputing the tier and finalizing the reference
// commit in a single transaction, so inventory can never be decremented
// without a matching grant. Repeating a reference returns the stored outcome
// without side effects.
//
// # Tiers and capabilities
//
// Tiers are a projection of a user's active, locked and developer-reserve
// units: Standard, Tier 1 (1+), Tier 2 (500+) and Tier 3 (1000+).
// Verified-tier capabilities are granted to every user whose KYC status is
// APPROVED. ReconcileCapabilities audits all approved users and fills gaps.
//
// # Stores
//
// Backends live under store/: memory for tests, postgres (pgx), sqlite
// (modernc) and mongo. All of them pass the shared suite in store/storetest.
package settlement
