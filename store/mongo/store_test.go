package mongo_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/store/mongo"
	"github.com/NIMOLA/hermeos-backend-sub002/store/storetest"
)

// Set HERMEOS_TEST_MONGO_URI to a replica set to run these. Each test gets
// its own database, dropped on cleanup.
func newStore(t *testing.T) store.Store {
	t.Helper()
	uri := os.Getenv("HERMEOS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("HERMEOS_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	s, err := mongo.Open(ctx, uri, "settlement_test_"+strconv.FormatInt(time.Now().UnixNano(), 36))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = s.Database().Drop(context.Background())
		_ = s.Close()
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
