package registry

import (
	"context"
	"testing"

	"github.com/ddrslabs/matching-backend/internal/data/repos/testutil"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
)

func TestDatasetRepoGetByIDs(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewDatasetRepo(db, testutil.Logger(t))

	a := testutil.SeedDataset(t, ctx, db, "orders")
	b := testutil.SeedDataset(t, ctx, db, "sessions")
	testutil.SeedDatasetQuery(t, ctx, db, a.ID, "daily_totals")
	testutil.SeedDatasetQuery(t, ctx, db, a.ID, "by_customer")

	rows, err := repo.GetByIDs(dbc, []int64{a.ID, b.ID, 9999})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, ds := range rows {
		if ds.ID == a.ID && len(ds.Queries) != 2 {
			t.Fatalf("queries not preloaded: %+v", ds.Queries)
		}
	}

	if rows, err := repo.GetByIDs(dbc, nil); err != nil || len(rows) != 0 {
		t.Fatalf("GetByIDs empty: expected no rows, got %d err=%v", len(rows), err)
	}
}

func TestDatastoreRepoGetByIDs(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewDatastoreRepo(db, testutil.Logger(t))

	a := testutil.SeedDatastore(t, ctx, db, "pg-main")
	testutil.SeedDatastore(t, ctx, db, "redis-main")

	rows, err := repo.GetByIDs(dbc, []int64{a.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "pg-main" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	// Credentials stay out of anything user facing.
	if masked := rows[0].MaskedConnectionInfo(); masked != "postgres://***" {
		t.Fatalf("unexpected masked connection info: %q", masked)
	}
}
