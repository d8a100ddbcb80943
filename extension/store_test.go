package extension

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/grovetest"

	"github.com/NIMOLA/hermeos-backend-sub002/store/sqlite"
)

func TestStoreForSQLite(t *testing.T) {
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "settlement.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	got, err := storeFor(s.DB())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(*sqlite.Store); !ok {
		t.Errorf("storeFor = %T, want *sqlite.Store", got)
	}
}

func TestStoreForUnknownDriver(t *testing.T) {
	db, err := grove.Open(grovetest.NewMockDriver())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = storeFor(db)
	if err == nil || !strings.Contains(err.Error(), `"mock"`) {
		t.Errorf("error = %v, want unknown driver", err)
	}
}
