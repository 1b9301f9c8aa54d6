package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/cache"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/tierstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// flakyRemote wraps a Remote, records reorder calls and can be made to fail.
type flakyRemote struct {
	Remote
	mu     sync.Mutex
	fail   error
	orders [][]string
	calls  int
}

func (f *flakyRemote) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fail
}

func (f *flakyRemote) UserTiers(ctx context.Context, userID string) ([]models.Tier, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Remote.UserTiers(ctx, userID)
}

func (f *flakyRemote) SaveUserTiers(ctx context.Context, userID string, tiers []models.Tier) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Remote.SaveUserTiers(ctx, userID, tiers)
}

func (f *flakyRemote) SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Remote.SaveSharedTier(ctx, ownerID, tier)
}

func (f *flakyRemote) SharedTier(ctx context.Context, code string) (models.Tier, error) {
	if err := f.err(); err != nil {
		return models.Tier{}, err
	}
	return f.Remote.SharedTier(ctx, code)
}

func (f *flakyRemote) UpdateTierOrder(ctx context.Context, userID string, ids []string) error {
	f.mu.Lock()
	f.orders = append(f.orders, append([]string(nil), ids...))
	f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	return f.Remote.UpdateTierOrder(ctx, userID, ids)
}

func (f *flakyRemote) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *flakyRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type device struct {
	local  *cache.Memory
	remote *flakyRemote
	coord  *Coordinator
	res    *Resolver
}

func newDevice(t *testing.T, store *tierstore.Memory) *device {
	t.Helper()
	logger := testLogger()
	tasks := NewDispatcher(logger, 16)
	t.Cleanup(tasks.Close)
	remote := &flakyRemote{Remote: store}
	local := cache.NewMemory(nil)
	coord := NewCoordinator(local, remote, tasks, logger)
	return &device{local: local, remote: remote, coord: coord, res: NewResolver(coord)}
}

func assertDense(t *testing.T, tiers []models.Tier) {
	t.Helper()
	for i, tier := range tiers {
		if tier.Position != i {
			t.Fatalf("tier %s at index %d has position %d", tier.ID, i, tier.Position)
		}
	}
}

func TestWorkScenario(t *testing.T) {
	store := tierstore.NewMemory()
	a := newDevice(t, store)
	ctx := context.Background()

	if _, err := a.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "Work"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := a.coord.Mutate(ctx, "u1", "tier-1", AddPad{Pad: models.Pad{Name: "Mail", URL: "https://mail.example.com", Position: 0}})
	if err != nil {
		t.Fatalf("add pad: %v", err)
	}
	if got.Name != "Work" || len(got.Pads) != 1 {
		t.Fatalf("unexpected tier: %+v", got)
	}

	// Local is written before Mutate returns, without waiting on the remote.
	local := a.local.Load()
	if local[1].ID != "tier-1" || local[1].Name != "Work" || len(local[1].Pads) != 1 || local[1].Pads[0].Position != 0 {
		t.Fatalf("local tier-1 = %+v", local[1])
	}

	a.coord.Wait()
	shared, err := store.SharedTier(ctx, local[1].ShareCode)
	if err != nil {
		t.Fatalf("shared row missing: %v", err)
	}
	if len(shared.Pads) != 1 || shared.Pads[0].Name != "Mail" || shared.Pads[0].URL != "https://mail.example.com" {
		t.Errorf("shared pads = %+v", shared.Pads)
	}
	rows, _ := store.UserTiers(ctx, "u1")
	if len(rows) != 1 || rows[0].ShareCode != local[1].ShareCode {
		t.Errorf("user rows = %+v", rows)
	}
}

func TestImportOnSecondDevice(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	a := newDevice(t, store)
	_, _ = a.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "Work"})
	_, _ = a.coord.Mutate(ctx, "u1", "tier-1", AddPad{Pad: models.Pad{ID: "mail", Name: "Mail", URL: "mail.example.com", Position: 0}})
	a.coord.Wait()
	src := a.local.Load()[1]

	b := newDevice(t, store)
	before := len(b.coord.Tiers())
	cp, err := b.res.Import(ctx, "u2", src.ShareCode)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if cp.Name != "Work" || len(cp.Pads) != 1 || cp.Pads[0].Name != "Mail" || cp.Pads[0].Position != 0 {
		t.Fatalf("copy = %+v", cp)
	}
	if cp.Pads[0].URL != "https://mail.example.com" {
		t.Errorf("url = %q", cp.Pads[0].URL)
	}
	if cp.ShareCode == src.ShareCode {
		t.Error("copy reused the source share code")
	}
	if cp.Pads[0].ID == src.Pads[0].ID {
		t.Error("copy reused a source pad id")
	}
	if cp.Pads[0].TierID != cp.ID {
		t.Errorf("pad tierId = %q, want %q", cp.Pads[0].TierID, cp.ID)
	}
	if cp.Position != before {
		t.Errorf("position = %d, want %d", cp.Position, before)
	}
	tiers := b.coord.Tiers()
	if len(tiers) != before+1 || tiers[before].ID != cp.ID {
		t.Fatalf("board after import = %d tiers", len(tiers))
	}
	assertDense(t, tiers)

	b.coord.Wait()
	if _, err := store.SharedTier(ctx, cp.ShareCode); err != nil {
		t.Errorf("imported named copy not upserted: %v", err)
	}
}

func TestImportTwiceGivesDistinctTiers(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	_ = store.SaveSharedTier(ctx, "", models.Tier{ID: "x", Name: "Shared", ShareCode: "SHARED01",
		Pads: []models.Pad{{ID: "p", URL: "https://a.example", Position: 2}}})

	d := newDevice(t, store)
	d.coord.now = func() time.Time { return time.UnixMilli(1700000000000) }
	first, err := d.res.Import(ctx, "", "shared01")
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	second, err := d.res.Import(ctx, "", "SHARED01")
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if first.ID == second.ID || first.ShareCode == second.ShareCode {
		t.Errorf("imports collided: %s/%s vs %s/%s", first.ID, first.ShareCode, second.ID, second.ShareCode)
	}
	if first.ID != "tier-1700000000000" || second.ID != "tier-1700000000001" {
		t.Errorf("ids = %s, %s", first.ID, second.ID)
	}
	if first.Pads[0].ID != "p-1700000000000-0" || first.Pads[0].Position != 2 {
		t.Errorf("pad = %+v", first.Pads[0])
	}
}

func TestRenameMovesTierIntoRemotePartition(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)

	if _, err := d.coord.Mutate(ctx, "u1", "tier-2", RenameTier{Name: "Later"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	d.coord.Wait()

	tiers := d.coord.Reconcile(ctx, "u1")
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	if tiers[0].ID != "tier-2" || tiers[0].Name != "Later" {
		t.Errorf("remote tier should sort first, got %s", tiers[0].ID)
	}
	if tiers[1].ID != "tier-0" || tiers[2].ID != "tier-1" {
		t.Errorf("local order = %s, %s", tiers[1].ID, tiers[2].ID)
	}
	assertDense(t, tiers)
	if got := d.local.Load(); got[0].ID != "tier-2" {
		t.Error("reconcile did not write through to the cache")
	}
}

func TestReconcileOrder(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	local := d.local.Load()

	_ = store.SaveUserTiers(ctx, "u1", []models.Tier{
		{ID: "r-b", Name: "B", ShareCode: local[2].ShareCode, Position: 1},
		{ID: "r-a", Name: "A", ShareCode: "REMOTEAA", Position: 0},
	})

	tiers := d.coord.Reconcile(ctx, "u1")
	want := []string{"r-a", "r-b", "tier-0", "tier-1"}
	if len(tiers) != len(want) {
		t.Fatalf("got %d tiers, want %d", len(tiers), len(want))
	}
	for i, id := range want {
		if tiers[i].ID != id {
			t.Errorf("tiers[%d] = %s, want %s", i, tiers[i].ID, id)
		}
	}
	assertDense(t, tiers)
}

func TestReconcileRetagsClashingLocalIDs(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	d.coord.now = func() time.Time { return time.UnixMilli(42) }
	_ = store.SaveUserTiers(ctx, "u1", []models.Tier{{ID: "tier-0", Name: "Remote", ShareCode: "REMOTE00"}})

	tiers := d.coord.Reconcile(ctx, "u1")
	seen := map[string]bool{}
	for _, tier := range tiers {
		if seen[tier.ID] {
			t.Fatalf("duplicate id %s after reconcile", tier.ID)
		}
		seen[tier.ID] = true
	}
	if !seen["tier-42"] {
		t.Errorf("expected clashing local tier to become tier-42, got %v", seen)
	}
}

func TestReconcileRemoteFailureKeepsLocal(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	_, _ = d.coord.Mutate(ctx, "", "tier-0", RenameTier{Name: "Mine"})
	d.coord.Wait()
	before := d.local.Load()

	d.remote.setFail(errors.New("connection refused"))
	tiers := d.coord.Reconcile(ctx, "u1")
	if len(tiers) != len(before) {
		t.Fatalf("got %d tiers, want %d", len(tiers), len(before))
	}
	for i := range before {
		if tiers[i].ID != before[i].ID || tiers[i].Name != before[i].Name {
			t.Errorf("tier %d changed: %+v", i, tiers[i])
		}
	}
}

func TestMutateSurvivesRemoteFailure(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	d.remote.setFail(errors.New("boom"))

	if _, err := d.coord.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "Offline"}); err != nil {
		t.Fatalf("remote failure leaked to caller: %v", err)
	}
	d.coord.Wait()
	if d.remote.callCount() == 0 {
		t.Error("expected a remote attempt")
	}
	if got := d.local.Load()[0].Name; got != "Offline" {
		t.Errorf("local name = %q", got)
	}
}

func TestMutateUnnamedStaysLocal(t *testing.T) {
	d := newDevice(t, tierstore.NewMemory())
	ctx := context.Background()
	if _, err := d.coord.Mutate(ctx, "u1", "tier-0", AddPad{Pad: models.Pad{URL: "a.example", Position: 3}}); err != nil {
		t.Fatalf("add pad: %v", err)
	}
	d.coord.Wait()
	if n := d.remote.callCount(); n != 0 {
		t.Errorf("unnamed tier reached the remote %d times", n)
	}
}

func TestMutateValidation(t *testing.T) {
	d := newDevice(t, tierstore.NewMemory())
	ctx := context.Background()

	_, err := d.coord.Mutate(ctx, "", "tier-0", AddPad{Pad: models.Pad{Name: "no url", Position: 0}})
	if !apperr.IsValidation(err) {
		t.Errorf("missing url: expected validation error, got %v", err)
	}
	_, err = d.coord.Mutate(ctx, "", "tier-0", AddPad{Pad: models.Pad{URL: "x.example", Position: models.PadsPerTier}})
	if !apperr.IsValidation(err) {
		t.Errorf("slot out of range: expected validation error, got %v", err)
	}
	_, err = d.coord.Mutate(ctx, "", "nope", RenameTier{Name: "x"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown tier: expected ErrNotFound, got %v", err)
	}
	_, err = d.coord.Mutate(ctx, "", "tier-0", DeletePad{PadID: "ghost"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown pad: expected ErrNotFound, got %v", err)
	}
	if pads := d.local.Load()[0].Pads; len(pads) != 0 {
		t.Errorf("failed mutations changed the cache: %+v", pads)
	}
}

func TestPadSlotsStayUnique(t *testing.T) {
	d := newDevice(t, tierstore.NewMemory())
	ctx := context.Background()

	_, _ = d.coord.Mutate(ctx, "", "tier-0", AddPad{Pad: models.Pad{ID: "a", URL: "a.example", Position: 1}})
	_, _ = d.coord.Mutate(ctx, "", "tier-0", AddPad{Pad: models.Pad{ID: "b", URL: "b.example", Position: 4}})
	got, err := d.coord.Mutate(ctx, "", "tier-0", AddPad{Pad: models.Pad{ID: "c", URL: "c.example", Position: 1}})
	if err != nil {
		t.Fatalf("add into occupied slot: %v", err)
	}
	if len(got.Pads) != 2 || got.PadAt(1).ID != "c" {
		t.Fatalf("slot 1 should hold c, pads = %+v", got.Pads)
	}

	got, err = d.coord.Mutate(ctx, "", "tier-0", UpdatePad{Pad: models.Pad{ID: "c", Name: "C", URL: "c.example", Position: 4}})
	if err != nil {
		t.Fatalf("move pad: %v", err)
	}
	if len(got.Pads) != 1 || got.PadAt(4).ID != "c" || got.PadAt(4).Name != "C" {
		t.Fatalf("pads after move = %+v", got.Pads)
	}

	got, _ = d.coord.Mutate(ctx, "", "tier-0", DeletePad{PadID: "c"})
	if len(got.Pads) != 0 {
		t.Errorf("pads after delete = %+v", got.Pads)
	}
}

func TestReorder(t *testing.T) {
	d := newDevice(t, tierstore.NewMemory())
	ctx := context.Background()
	_, _ = d.coord.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "Zero"})
	_, _ = d.coord.Mutate(ctx, "u1", "tier-2", RenameTier{Name: "Two"})
	d.coord.Wait()

	tiers, err := d.coord.Reorder(ctx, "u1", []string{"tier-2", "tier-1", "tier-0"})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	assertDense(t, tiers)
	if tiers[0].ID != "tier-2" || tiers[1].ID != "tier-1" || tiers[2].ID != "tier-0" {
		t.Fatalf("order = %s %s %s", tiers[0].ID, tiers[1].ID, tiers[2].ID)
	}
	assertDense(t, d.local.Load())

	d.coord.Wait()
	d.remote.mu.Lock()
	orders := d.remote.orders
	d.remote.mu.Unlock()
	if len(orders) != 1 || len(orders[0]) != 2 || orders[0][0] != "tier-2" || orders[0][1] != "tier-0" {
		t.Errorf("remote order calls = %v, want [[tier-2 tier-0]]", orders)
	}
}

func TestReorderUnknownID(t *testing.T) {
	d := newDevice(t, tierstore.NewMemory())
	_, err := d.coord.Reorder(context.Background(), "u1", []string{"tier-0", "ghost"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteTier(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	_, _ = d.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "Gone"})
	d.coord.Wait()
	code := d.local.Load()[1].ShareCode

	if err := d.coord.DeleteTier(ctx, "u1", "tier-1"); err != nil {
		t.Fatalf("DeleteTier: %v", err)
	}
	tiers := d.local.Load()
	if len(tiers) != 2 || tiers[0].ID != "tier-0" || tiers[1].ID != "tier-2" {
		t.Fatalf("board after delete = %+v", tiers)
	}
	assertDense(t, tiers)

	d.coord.Wait()
	if _, err := store.SharedTier(ctx, code); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("shared row survived delete: %v", err)
	}
	if rows, _ := store.UserTiers(ctx, "u1"); len(rows) != 0 {
		t.Errorf("user row survived delete: %+v", rows)
	}

	if err := d.coord.DeleteTier(ctx, "u1", "tier-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestRenameToEmptyKeepsRemoteRow(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	_, _ = d.coord.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "Named"})
	d.coord.Wait()
	_, _ = d.coord.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "  "})
	d.coord.Wait()

	rows, _ := store.UserTiers(ctx, "u1")
	if len(rows) != 1 || rows[0].Name != "Named" {
		t.Errorf("remote rows = %+v", rows)
	}
}

func TestPush(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	local := cache.NewMemory([]models.Tier{
		{ID: "a", Name: "A", ShareCode: "AAAAAAAA", Position: 0},
		{ID: "b", Name: "", ShareCode: "BBBBBBBB", Position: 1},
	})
	tasks := NewDispatcher(testLogger(), 4)
	defer tasks.Close()
	c := NewCoordinator(local, store, tasks, testLogger())

	if err := c.Push(ctx, "u1"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	c.Wait()
	rows, _ := store.UserTiers(ctx, "u1")
	if len(rows) != 1 || rows[0].ID != "a" {
		t.Errorf("rows = %+v", rows)
	}

	offline := NewCoordinator(local, nil, tasks, testLogger())
	if err := offline.Push(ctx, "u1"); !errors.Is(err, apperr.ErrUnconfigured) {
		t.Errorf("expected ErrUnconfigured, got %v", err)
	}
}

func TestLocalOnlyMode(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(cache.NewMemory(nil), nil, nil, testLogger())
	if tiers := c.Reconcile(ctx, "u1"); len(tiers) != models.DefaultTierCount {
		t.Fatalf("got %d tiers", len(tiers))
	}
	if _, err := c.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "Solo"}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if _, err := NewResolver(c).Resolve(ctx, "ZZZZZZZZ"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	local := d.local.Load()[0]

	// Same code on both sides: local wins.
	_ = store.SaveSharedTier(ctx, "", models.Tier{ID: "remote", Name: "Remote", ShareCode: local.ShareCode})
	got, err := d.res.Resolve(ctx, "  "+local.ShareCode+" ")
	if err != nil || got.ID != local.ID {
		t.Fatalf("Resolve local = %+v, %v", got, err)
	}

	_ = store.SaveSharedTier(ctx, "", models.Tier{ID: "remote", Name: "Remote", ShareCode: "REMOTE01"})
	got, err = d.res.Resolve(ctx, "remote01")
	if err != nil || got.Name != "Remote" {
		t.Fatalf("Resolve remote = %+v, %v", got, err)
	}

	if _, err := d.res.Resolve(ctx, "MISSING1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := d.res.Resolve(ctx, "  "); !apperr.IsValidation(err) {
		t.Errorf("empty code: expected validation error, got %v", err)
	}

	d.remote.setFail(errors.New("timeout"))
	if _, err := d.res.Resolve(ctx, "REMOTE01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("remote failure: expected ErrNotFound, got %v", err)
	}
}

func TestGrid(t *testing.T) {
	d := newDevice(t, tierstore.NewMemory())
	ctx := context.Background()
	_, _ = d.coord.Mutate(ctx, "", "tier-0", AddPad{Pad: models.Pad{ID: "x", URL: "x.example", Position: 5}})

	grid, err := d.coord.Grid("tier-0")
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	for i, p := range grid {
		if (i == 5) != (p != nil) {
			t.Errorf("slot %d = %v", i, p)
		}
	}
	if _, err := d.coord.Grid("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func remoteRows(t *testing.T, store *tierstore.Memory, userID string) []models.Tier {
	t.Helper()
	rows, err := store.UserTiers(context.Background(), userID)
	if err != nil {
		t.Fatalf("UserTiers: %v", err)
	}
	return rows
}

func TestRenameAfterReorderKeepsRemoteOrder(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)

	_, _ = d.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "B"})
	_, _ = d.coord.Mutate(ctx, "u1", "tier-2", RenameTier{Name: "C"})
	if _, err := d.coord.Reorder(ctx, "u1", []string{"tier-0", "tier-1", "tier-2"}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	_, _ = d.coord.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "A"})
	d.coord.Wait()

	rows := remoteRows(t, store, "u1")
	want := []string{"tier-0", "tier-1", "tier-2"}
	if len(rows) != len(want) {
		t.Fatalf("remote rows = %+v", rows)
	}
	for i, id := range want {
		if rows[i].ID != id || rows[i].Position != i {
			t.Errorf("remote row %d = %s@%d, want %s@%d", i, rows[i].ID, rows[i].Position, id, i)
		}
	}

	tiers := d.coord.Reconcile(ctx, "u1")
	for i, id := range want {
		if tiers[i].ID != id {
			t.Errorf("board after reconcile [%d] = %s, want %s", i, tiers[i].ID, id)
		}
	}
}

func TestDeleteTierKeepsRemotePositionsDense(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	d := newDevice(t, store)
	_, _ = d.coord.Mutate(ctx, "u1", "tier-0", RenameTier{Name: "A"})
	_, _ = d.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "B"})
	_, _ = d.coord.Mutate(ctx, "u1", "tier-2", RenameTier{Name: "C"})

	if err := d.coord.DeleteTier(ctx, "u1", "tier-0"); err != nil {
		t.Fatalf("DeleteTier: %v", err)
	}
	d.coord.Wait()

	rows := remoteRows(t, store, "u1")
	if len(rows) != 2 || rows[0].ID != "tier-1" || rows[1].ID != "tier-2" {
		t.Fatalf("remote rows = %+v", rows)
	}
	assertDense(t, rows)
}

func TestReconcileRetagsDuplicateRemoteIDs(t *testing.T) {
	store := tierstore.NewMemory()
	ctx := context.Background()
	a := newDevice(t, store)
	b := newDevice(t, store)
	a.coord.now = func() time.Time { return time.UnixMilli(7) }

	_, _ = a.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "Work"})
	a.coord.Wait()
	_, _ = b.coord.Mutate(ctx, "u1", "tier-1", RenameTier{Name: "Home"})
	b.coord.Wait()

	tiers := a.coord.Reconcile(ctx, "u1")
	if len(tiers) != 4 {
		t.Fatalf("got %d tiers, want 4", len(tiers))
	}
	seen := map[string]bool{}
	for _, tier := range tiers {
		if seen[tier.ID] {
			t.Fatalf("id %s appears twice after reconcile", tier.ID)
		}
		seen[tier.ID] = true
	}
	if !seen["tier-7"] {
		t.Errorf("expected the second remote tier-1 to become tier-7, got %v", seen)
	}
	assertDense(t, tiers)

	a.coord.Wait()
	rows := remoteRows(t, store, "u1")
	if len(rows) != 2 || rows[0].ID == rows[1].ID {
		t.Fatalf("remote rows = %+v", rows)
	}
	assertDense(t, rows)
}

// blockingRemote stalls UserTiers until release is closed.
type blockingRemote struct {
	Remote
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRemote) UserTiers(ctx context.Context, userID string) ([]models.Tier, error) {
	close(r.entered)
	<-r.release
	return r.Remote.UserTiers(ctx, userID)
}

func TestReconcileDoesNotBlockLocalReads(t *testing.T) {
	remote := &blockingRemote{
		Remote:  tierstore.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	tasks := NewDispatcher(testLogger(), 4)
	defer tasks.Close()
	c := NewCoordinator(cache.NewMemory(nil), remote, tasks, testLogger())

	reconciled := make(chan struct{})
	go func() {
		c.Reconcile(context.Background(), "u1")
		close(reconciled)
	}()
	<-remote.entered

	read := make(chan int)
	go func() { read <- len(c.Tiers()) }()
	select {
	case n := <-read:
		if n != models.DefaultTierCount {
			t.Errorf("Tiers() = %d tiers", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Tiers() blocked behind the remote read")
	}

	close(remote.release)
	<-reconciled
}
