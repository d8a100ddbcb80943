// Package capability models named permissions and the KYC-driven rule that
// decides which of them a user holds.
package capability

import (
	"sort"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/id"
)

// KYCStatus is the verification state reported by the KYC subsystem.
type KYCStatus string

const (
	KYCPending   KYCStatus = "PENDING"
	KYCSubmitted KYCStatus = "SUBMITTED"
	KYCApproved  KYCStatus = "APPROVED"
	KYCRejected  KYCStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s KYCStatus) Valid() bool {
	switch s {
	case KYCPending, KYCSubmitted, KYCApproved, KYCRejected:
		return true
	default:
		return false
	}
}

// Capability names.
const (
	BrowseMarketplace     = "browse_marketplace"
	ViewPortfolio         = "view_portfolio"
	ExecuteInvestment     = "execute_investment"
	RequestExit           = "request_exit"
	TransferUnits         = "transfer_units"
	WithdrawDistributions = "withdraw_distributions"
)

// legacy maps names issued by older seed data to their current names.
var legacy = map[string]string{
	"market_view": BrowseMarketplace,
	"invest":      ExecuteInvestment,
}

// Canonical returns the current name for a possibly legacy capability name.
func Canonical(name string) string {
	if c, ok := legacy[name]; ok {
		return c
	}
	return name
}

// Grant sources.
const (
	SourceSettlement = "settlement"
	SourceReconcile  = "reconcile"
	SourceKYC        = "kyc"
)

// Grant records that a user holds a capability.
type Grant struct {
	ID        id.GrantID `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Source    string     `json:"source"`
	GrantedAt time.Time  `json:"granted_at"`
}

// Catalog partitions capabilities into those every account receives at
// creation and those gated on KYC approval.
type Catalog struct {
	Default  []string
	Verified []string
}

// DefaultCatalog returns the platform catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Default:  []string{BrowseMarketplace, ViewPortfolio},
		Verified: []string{ExecuteInvestment, RequestExit, TransferUnits, WithdrawDistributions},
	}
}

// Missing returns the verified capabilities not covered by granted, sorted.
// Legacy names in granted count as their canonical equivalents.
func (c Catalog) Missing(granted []*Grant) []string {
	have := make(map[string]bool, len(granted))
	for _, g := range granted {
		have[Canonical(g.Name)] = true
	}

	var missing []string
	seen := make(map[string]bool, len(c.Verified))
	for _, name := range c.Verified {
		name = Canonical(name)
		if have[name] || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

// IsVerified reports whether name is gated on KYC approval.
func (c Catalog) IsVerified(name string) bool {
	name = Canonical(name)
	for _, v := range c.Verified {
		if Canonical(v) == name {
			return true
		}
	}
	return false
}

// ReconcileReport summarizes one reconcile pass.
type ReconcileReport struct {
	UsersScanned   int           `json:"users_scanned"`
	UsersUpdated   int           `json:"users_updated"`
	GrantsInserted int           `json:"grants_inserted"`
	Failed         int           `json:"failed"`
	Elapsed        time.Duration `json:"elapsed"`
}
