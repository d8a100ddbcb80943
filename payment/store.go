package payment

import (
	"context"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/id"
)

// Store is the payment reference ledger contract. Every transition is a
// compare-and-set on the current state so concurrent callers cannot both
// advance the same reference.
type Store interface {
	// RecordAttempt inserts e if its reference is unseen, otherwise returns
	// the stored entry. created reports which happened. Must be atomic with
	// respect to concurrent callers using the same reference.
	RecordAttempt(ctx context.Context, e *Entry) (stored *Entry, created bool, err error)
	GetEntry(ctx context.Context, reference string) (*Entry, error)
	// MarkSettling moves pending -> settling.
	MarkSettling(ctx context.Context, reference string) error
	// MarkSettled moves settling -> settled and records the ownership.
	MarkSettled(ctx context.Context, reference string, ownershipID id.OwnershipID) error
	// MarkRejected moves pending or settling -> rejected with reason.
	MarkRejected(ctx context.Context, reference, reason string) error
	// ClaimStale bumps Attempts and UpdatedAt on a pending or settling entry
	// last touched before cutoff. claimed is false if another worker got it.
	ClaimStale(ctx context.Context, reference string, cutoff time.Time) (claimed bool, err error)
	ListEntries(ctx context.Context, opts ListOpts) ([]*Entry, error)
}
