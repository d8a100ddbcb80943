package capability

import "context"

// Store holds capability grants and the mirrored KYC status per user.
type Store interface {
	SetKYCStatus(ctx context.Context, userID string, status KYCStatus) error
	// GetKYCStatus returns KYCPending for users the KYC subsystem has not
	// reported yet.
	GetKYCStatus(ctx context.Context, userID string) (KYCStatus, error)
	// ListApprovedUsers pages through users whose status is KYCApproved,
	// ordered by user ID, starting after the given cursor.
	ListApprovedUsers(ctx context.Context, after string, limit int) ([]string, error)
	ListGrants(ctx context.Context, userID string) ([]*Grant, error)
	// GrantCapabilities inserts grants that do not already exist and
	// returns the names actually inserted.
	GrantCapabilities(ctx context.Context, userID string, names []string, source string) ([]string, error)
	// RevokeCapabilities deletes grants and returns the names removed.
	RevokeCapabilities(ctx context.Context, userID string, names []string) ([]string, error)
}
