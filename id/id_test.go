package id_test

import (
	"strings"
	"testing"

	"github.com/NIMOLA/hermeos-backend-sub002/id"
)

func TestConstructorsUsePrefix(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix id.Prefix
	}{
		{"PropertyID", id.NewPropertyID, id.PrefixProperty},
		{"OwnershipID", id.NewOwnershipID, id.PrefixOwnership},
		{"SettlementID", id.NewSettlementID, id.PrefixSettlement},
		{"GrantID", id.NewGrantID, id.PrefixGrant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn()
			if got.Prefix() != tt.prefix {
				t.Errorf("prefix: got %q, want %q", got.Prefix(), tt.prefix)
			}
			if !strings.HasPrefix(got.String(), string(tt.prefix)+"_") {
				t.Errorf("string %q does not start with %q", got.String(), tt.prefix)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParsePropertyID rejects own_", id.NewOwnershipID().String(), id.ParsePropertyID},
		{"ParseOwnershipID rejects stl_", id.NewSettlementID().String(), id.ParseOwnershipID},
		{"ParseSettlementID rejects capg_", id.NewGrantID().String(), id.ParseSettlementID},
		{"ParseGrantID rejects prop_", id.NewPropertyID().String(), id.ParseGrantID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestParseOptional(t *testing.T) {
	got, err := id.ParseOptional("")
	if err != nil {
		t.Fatalf("ParseOptional(\"\") failed: %v", err)
	}
	if !got.IsNil() {
		t.Error("expected Nil for empty input")
	}

	own := id.NewOwnershipID()
	got, err = id.ParseOptional(own.String())
	if err != nil {
		t.Fatalf("ParseOptional failed: %v", err)
	}
	if got.String() != own.String() {
		t.Errorf("got %q, want %q", got.String(), own.String())
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("Value() = %v, %v; want nil, nil", v, err)
	}
}

func TestScan(t *testing.T) {
	own := id.NewOwnershipID()

	tests := []struct {
		name    string
		src     any
		want    string
		wantErr bool
	}{
		{"nil", nil, "", false},
		{"empty string", "", "", false},
		{"string", own.String(), own.String(), false},
		{"bytes", []byte(own.String()), own.String(), false},
		{"unsupported", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			err := got.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("got %q, want %q", got.String(), tt.want)
			}
		})
	}
}
