package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushteam/clusterec/core"
)

func testSnapshot(createdAt time.Time) *core.ModelSnapshot {
	ft := core.NewFeatureTable(
		[]string{"A", "B"},
		[]string{"P1", "P2"},
		[][]float64{{1, 0}, {0, 1}},
	)
	ft.Clusters = []int{0, 1}
	return &core.ModelSnapshot{
		Transactions: core.TransactionTable{
			{OrderID: "O1", CustomerID: "A", ProductID: "P1", Quantity: 2, Cluster: 0},
			{OrderID: "O2", CustomerID: "B", ProductID: "P2", Quantity: 1, Cluster: 1},
		},
		Features:  ft,
		CreatedAt: createdAt,
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}

	snap := testSnapshot(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Version() != snap.Version() {
		t.Errorf("Version = %q, want %q", loaded.Version(), snap.Version())
	}
	if !reflect.DeepEqual(loaded.Transactions, snap.Transactions) {
		t.Errorf("Transactions differ after round trip")
	}
	// index is rebuilt on load
	if label, ok := loaded.Features.ClusterOf("B"); !ok || label != 1 {
		t.Errorf("ClusterOf(B) = %d, %v", label, ok)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !core.IsNotFound(err) {
		t.Errorf("Load() = %v, want NOT_FOUND", err)
	}
	if _, err := store.LatestModTime(); !core.IsNotFound(err) {
		t.Errorf("LatestModTime() = %v, want NOT_FOUND", err)
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	snap := testSnapshot(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	if err := store.Save(snap); err != nil {
		t.Fatal(err)
	}

	// garbage in either half fails the whole load
	if err := os.WriteFile(filepath.Join(store.Dir, canonicalFeatures), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !core.IsCorruptModel(err) {
		t.Errorf("Load() = %v, want CORRUPT_MODEL", err)
	}
}

func TestFileStore_LoadVersionMismatch(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	snap := testSnapshot(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	if err := store.Save(snap); err != nil {
		t.Fatal(err)
	}

	// rewrite the features half with a different version stamp
	data, err := json.Marshal(&featuresFile{
		Version:   "20990101_000000",
		CreatedAt: snap.CreatedAt,
		Features:  snap.Features,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir, canonicalFeatures), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !core.IsCorruptModel(err) {
		t.Errorf("Load() = %v, want CORRUPT_MODEL", err)
	}
}

func TestFileStore_CleanupKeepsNewestPairs(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.Save(testSnapshot(base.Add(time.Duration(i) * time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(store.Dir)
	if err != nil {
		t.Fatal(err)
	}
	var backups []string
	for _, e := range entries {
		if _, ok := backupVersion(e.Name(), backupPrefix); ok {
			backups = append(backups, e.Name())
		} else if _, ok := backupVersion(e.Name(), backupFeaturesPrefix); ok {
			backups = append(backups, e.Name())
		}
	}
	// keep=1: exactly one matched backup pair survives, and it is the newest
	want := []string{
		backupFeaturesPrefix + "20260501_090200" + snapshotExt,
		backupPrefix + "20260501_090200" + snapshotExt,
	}
	if !reflect.DeepEqual(backups, want) {
		t.Errorf("backups = %v, want %v", backups, want)
	}
	// canonical pair untouched
	if _, err := store.Load(); err != nil {
		t.Errorf("Load() after cleanup: %v", err)
	}
}

func TestFileStore_CleanupRemovesOrphans(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 2)
	if err != nil {
		t.Fatal(err)
	}
	orphan := backupPrefix + "20260101_000000" + snapshotExt
	if err := os.WriteFile(filepath.Join(store.Dir, orphan), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir, orphan)); !os.IsNotExist(err) {
		t.Error("orphan backup half should have been removed")
	}
}

func TestFileStore_SaveRejectsInvalid(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	snap := testSnapshot(time.Now())
	snap.Transactions[0].Cluster = core.ClusterUnassigned
	if err := store.Save(snap); !core.IsCorruptModel(err) {
		t.Errorf("Save() = %v, want CORRUPT_MODEL", err)
	}
	// nothing written
	if _, err := store.Load(); !core.IsNotFound(err) {
		t.Errorf("Load() = %v, want NOT_FOUND", err)
	}
}

func TestLatestModTime(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(testSnapshot(time.Now())); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(store.Dir, canonicalFeatures), future, future); err != nil {
		t.Fatal(err)
	}
	got, err := store.LatestModTime()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(future) && !got.After(time.Now()) {
		t.Errorf("LatestModTime = %v, want newest half %v", got, future)
	}
}
