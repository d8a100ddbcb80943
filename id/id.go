// Package id defines TypeID-based identity types for settlement entities.
//
// Every entity owned by the engine uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix". User identifiers and
// payment references come from external systems and stay plain strings.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for settlement entity types.
const (
	PrefixProperty   Prefix = "prop" // Unit-bearing property
	PrefixOwnership  Prefix = "own"  // Per-user holding of a property
	PrefixSettlement Prefix = "stl"  // Payment reference ledger entry
	PrefixGrant      Prefix = "capg" // Capability grant
)

// ID is the primary identifier type for settlement entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "prop_01h2xcejqtf2nbrexx3vqjhp41").
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and checks its prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ParseOptional parses s, mapping the empty string to Nil.
// Used by store backends for nullable reference columns.
func ParseOptional(s string) (ID, error) {
	if s == "" {
		return Nil, nil
	}
	return Parse(s)
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// PropertyID identifies a property (prefix: "prop").
type PropertyID = ID

// OwnershipID identifies an ownership record (prefix: "own").
type OwnershipID = ID

// SettlementID identifies a ledger entry (prefix: "stl").
type SettlementID = ID

// GrantID identifies a capability grant (prefix: "capg").
type GrantID = ID

// NewPropertyID generates a new unique property ID.
func NewPropertyID() ID { return New(PrefixProperty) }

// NewOwnershipID generates a new unique ownership ID.
func NewOwnershipID() ID { return New(PrefixOwnership) }

// NewSettlementID generates a new unique ledger entry ID.
func NewSettlementID() ID { return New(PrefixSettlement) }

// NewGrantID generates a new unique capability grant ID.
func NewGrantID() ID { return New(PrefixGrant) }

// ParsePropertyID parses a string and validates the "prop" prefix.
func ParsePropertyID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProperty) }

// ParseOwnershipID parses a string and validates the "own" prefix.
func ParseOwnershipID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOwnership) }

// ParseSettlementID parses a string and validates the "stl" prefix.
func ParseSettlementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSettlement) }

// ParseGrantID parses a string and validates the "capg" prefix.
func ParseGrantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixGrant) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string. Returns "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
