package tierstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "octopad-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(context.Background(), DriverSQLite, f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stores runs fn against both implementations.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, testDB(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func workTier() models.Tier {
	return models.Tier{
		ID:        "tier-0",
		Name:      "Work",
		ShareCode: "AB12CD34",
		Position:  0,
		Pads: []models.Pad{
			{ID: "p1", Name: "Mail", URL: "https://mail.example.com", Position: 0, TierID: "tier-0"},
		},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"users", "user_tiers", "shared_tiers"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSaveUserTiersIdempotent(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tier := workTier()
		for i := 0; i < 3; i++ {
			if err := s.SaveUserTiers(ctx, "u1", []models.Tier{tier}); err != nil {
				t.Fatalf("SaveUserTiers: %v", err)
			}
		}
		got, err := s.UserTiers(ctx, "u1")
		if err != nil {
			t.Fatalf("UserTiers: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 row, got %d", len(got))
		}
		if got[0].Name != "Work" || len(got[0].Pads) != 1 || got[0].Pads[0].URL != "https://mail.example.com" {
			t.Errorf("unexpected tier: %+v", got[0])
		}
	})
}

func TestSaveUserTiersUpsertsByShareCode(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tier := workTier()
		_ = s.SaveUserTiers(ctx, "u1", []models.Tier{tier})

		tier.Name = "Office"
		tier.ShareCode = "ab12cd34"
		if err := s.SaveUserTiers(ctx, "u1", []models.Tier{tier}); err != nil {
			t.Fatalf("SaveUserTiers: %v", err)
		}
		got, _ := s.UserTiers(ctx, "u1")
		if len(got) != 1 || got[0].Name != "Office" {
			t.Fatalf("expected renamed single row, got %+v", got)
		}
	})
}

func TestSaveUserTiersSkipsMissingCode(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.SaveUserTiers(ctx, "u1", []models.Tier{{ID: "x", Name: "No code"}}); err != nil {
			t.Fatalf("SaveUserTiers: %v", err)
		}
		got, _ := s.UserTiers(ctx, "u1")
		if len(got) != 0 {
			t.Errorf("expected no rows, got %d", len(got))
		}
		if err := s.SaveUserTiers(ctx, "", []models.Tier{workTier()}); !apperr.IsValidation(err) {
			t.Errorf("empty user id: expected validation error, got %v", err)
		}
	})
}

func TestUserTiersOrdering(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tiers := []models.Tier{
			{ID: "a", Name: "A", ShareCode: "AAAAAAAA", Position: 2, Pads: []models.Pad{}},
			{ID: "b", Name: "B", ShareCode: "BBBBBBBB", Position: 0, Pads: []models.Pad{}},
			{ID: "c", Name: "C", ShareCode: "CCCCCCCC", Position: 1, Pads: []models.Pad{}},
		}
		_ = s.SaveUserTiers(ctx, "u1", tiers)

		got, _ := s.UserTiers(ctx, "u1")
		if ids(got) != "b,c,a" {
			t.Fatalf("order = %s, want b,c,a", ids(got))
		}

		if err := s.UpdateTierOrder(ctx, "u1", []string{"a", "b", "c"}); err != nil {
			t.Fatalf("UpdateTierOrder: %v", err)
		}
		got, _ = s.UserTiers(ctx, "u1")
		if ids(got) != "a,b,c" {
			t.Fatalf("order = %s, want a,b,c", ids(got))
		}
		for i, tier := range got {
			if tier.Position != i {
				t.Errorf("%s position = %d, want %d", tier.ID, tier.Position, i)
			}
		}
	})
}

func TestUpdateTierOrderScopedToUser(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_ = s.SaveUserTiers(ctx, "u1", []models.Tier{workTier()})
		_ = s.SaveUserTiers(ctx, "u2", []models.Tier{workTier()})

		_ = s.UpdateTierOrder(ctx, "u2", []string{"other", "tier-0"})

		got, _ := s.UserTiers(ctx, "u1")
		if got[0].Position != 0 {
			t.Errorf("u1 tier moved: position %d", got[0].Position)
		}
		got, _ = s.UserTiers(ctx, "u2")
		if got[0].Position != 1 {
			t.Errorf("u2 position = %d, want 1", got[0].Position)
		}
	})
}

func TestDeleteUserTierByIDOrCode(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tiers := []models.Tier{
			{ID: "a", Name: "A", ShareCode: "AAAAAAAA", Position: 0},
			{ID: "b", Name: "B", ShareCode: "BBBBBBBB", Position: 1},
		}
		_ = s.SaveUserTiers(ctx, "u1", tiers)

		if err := s.DeleteUserTier(ctx, "u1", "a"); err != nil {
			t.Fatalf("DeleteUserTier by id: %v", err)
		}
		if err := s.DeleteUserTier(ctx, "u1", "bbbbbbbb"); err != nil {
			t.Fatalf("DeleteUserTier by code: %v", err)
		}
		got, _ := s.UserTiers(ctx, "u1")
		if len(got) != 0 {
			t.Errorf("expected no rows, got %s", ids(got))
		}
		if err := s.DeleteUserTier(ctx, "u1", "missing"); err != nil {
			t.Errorf("deleting a missing tier should succeed, got %v", err)
		}
	})
}

func TestSharedTierRoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.SharedTier(ctx, "ZZZZZZZZ"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		if err := s.SaveSharedTier(ctx, "u1", workTier()); err != nil {
			t.Fatalf("SaveSharedTier: %v", err)
		}
		got, err := s.SharedTier(ctx, "ab12cd34")
		if err != nil {
			t.Fatalf("SharedTier: %v", err)
		}
		if got.ID != "shared-AB12CD34" || got.Name != "Work" || len(got.Pads) != 1 {
			t.Errorf("unexpected shared tier: %+v", got)
		}

		// Repeat upsert by the same owner is fine.
		if err := s.SaveSharedTier(ctx, "u1", workTier()); err != nil {
			t.Fatalf("repeat SaveSharedTier: %v", err)
		}

		if err := s.DeleteSharedTier(ctx, "u1", "AB12CD34"); err != nil {
			t.Fatalf("DeleteSharedTier: %v", err)
		}
		if _, err := s.SharedTier(ctx, "AB12CD34"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestSharedTierOwnerConflict(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_ = s.SaveSharedTier(ctx, "u1", workTier())

		hijack := workTier()
		hijack.Name = "Mine now"
		if err := s.SaveSharedTier(ctx, "u2", hijack); !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		got, _ := s.SharedTier(ctx, "AB12CD34")
		if got.Name != "Work" {
			t.Errorf("name = %q, want Work", got.Name)
		}

		_ = s.DeleteSharedTier(ctx, "u2", "AB12CD34")
		if _, err := s.SharedTier(ctx, "AB12CD34"); err != nil {
			t.Errorf("foreign delete removed the tier: %v", err)
		}
	})
}

func TestSharedTierUnownedClaimed(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_ = s.SaveSharedTier(ctx, "", workTier())
		if err := s.SaveSharedTier(ctx, "u1", workTier()); err != nil {
			t.Fatalf("claiming an unowned tier: %v", err)
		}
		if err := s.SaveSharedTier(ctx, "u2", workTier()); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("expected ErrConflict after claim, got %v", err)
		}
	})
}

func TestSyncUser(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := models.User{ID: "u1", Email: "a@example.com", Name: "A"}
		if err := s.SyncUser(ctx, user, nil); err != nil {
			t.Fatalf("SyncUser: %v", err)
		}
		if err := s.SyncUser(ctx, user, []models.Tier{workTier()}); err != nil {
			t.Fatalf("SyncUser with tiers: %v", err)
		}
		got, _ := s.UserTiers(ctx, "u1")
		if len(got) != 1 {
			t.Errorf("expected 1 tier, got %d", len(got))
		}
		u, err := s.UserByEmail(ctx, "a@example.com")
		if err != nil || u.ID != "u1" {
			t.Errorf("UserByEmail = %+v, %v", u, err)
		}
	})
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.CreateUser(ctx, models.User{ID: "u1", Email: "a@example.com", PasswordHash: "h"}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		err := s.CreateUser(ctx, models.User{ID: "u2", Email: "a@example.com", PasswordHash: "h"})
		if !errors.Is(err, apperr.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDecodePads(t *testing.T) {
	pad := models.Pad{ID: "p", URL: "https://x.example", Position: 3}
	cases := map[string]any{
		"string": `[{"id":"p","url":"https://x.example","position":3}]`,
		"bytes":  []byte(`[{"id":"p","url":"https://x.example","position":3}]`),
		"typed":  []models.Pad{pad},
		"decoded": []any{
			map[string]any{"id": "p", "url": "https://x.example", "position": float64(3)},
		},
	}
	for name, raw := range cases {
		got := DecodePads(raw)
		if len(got) != 1 || got[0].ID != "p" || got[0].Position != 3 {
			t.Errorf("%s: got %+v", name, got)
		}
	}
	for name, raw := range map[string]any{"nil": nil, "garbage": "not json", "null": "null", "number": 42} {
		got := DecodePads(raw)
		if got == nil || len(got) != 0 {
			t.Errorf("%s: expected empty non-nil list, got %#v", name, got)
		}
	}
}

func TestEncodePadsEmpty(t *testing.T) {
	if got := EncodePads(nil); got != "[]" {
		t.Errorf("EncodePads(nil) = %q", got)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	if got := rebind(DriverSQLite, q); got != q {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
	want := "SELECT a FROM t WHERE x = $1 AND y = $2"
	if got := rebind(DriverPostgres, q); got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func ids(tiers []models.Tier) string {
	out := ""
	for i, t := range tiers {
		if i > 0 {
			out += ","
		}
		out += t.ID
	}
	return out
}
