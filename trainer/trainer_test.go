package trainer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/clusterec/cluster"
	"github.com/rushteam/clusterec/core"
	"github.com/rushteam/clusterec/feature"
	"github.com/rushteam/clusterec/registry"
	"github.com/rushteam/clusterec/snapshot"
	"github.com/rushteam/clusterec/store"
)

type fakeSource struct {
	txs core.TransactionTable
	err error
}

func (s *fakeSource) CurrentTransactions(context.Context) (core.TransactionTable, error) {
	return s.txs, s.err
}

func record(customer, product string, qty, age float64) core.TransactionRecord {
	return core.TransactionRecord{
		OrderID:     "O-" + customer + product,
		CustomerID:  customer,
		ProductID:   product,
		Quantity:    qty,
		CustomerAge: age,
		Cluster:     core.ClusterUnassigned,
	}
}

func trainingData() core.TransactionTable {
	return core.TransactionTable{
		record("A", "P1", 5, 20),
		record("B", "P1", 4, 22),
		record("C", "P2", 5, 60),
		record("D", "P2", 6, 62),
	}
}

func newTestTrainer(t *testing.T, src core.Source) (*Trainer, *registry.Registry, *store.MemoryStore) {
	t.Helper()
	fileStore, err := snapshot.NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New(fileStore, zerolog.Nop())
	popularity := store.NewMemoryStore()
	t.Cleanup(func() { popularity.Close() })

	return &Trainer{
		Source:             src,
		Store:              fileStore,
		Registry:           reg,
		Popularity:         popularity,
		Builder:            &feature.Builder{},
		Assigner:           &cluster.Assigner{},
		Interval:           time.Hour,
		RowGrowthThreshold: 100,
		Log:                zerolog.Nop(),
	}, reg, popularity
}

func TestShouldRetrain(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	interval := time.Hour
	tests := []struct {
		name      string
		state     RetrainState
		rowCount  int
		threshold int
		want      bool
	}{
		{
			name:     "zero state always triggers",
			state:    RetrainState{},
			rowCount: 10, threshold: 100,
			want: true,
		},
		{
			name:     "interval exceeded",
			state:    RetrainState{LastRetrainTime: now.Add(-2 * time.Hour), LastRowCount: 10},
			rowCount: 10, threshold: 100,
			want: true,
		},
		{
			name:     "fresh model, small growth",
			state:    RetrainState{LastRetrainTime: now.Add(-time.Minute), LastRowCount: 10},
			rowCount: 50, threshold: 100,
			want: false,
		},
		{
			name:     "row growth exceeds threshold",
			state:    RetrainState{LastRetrainTime: now.Add(-time.Minute), LastRowCount: 10},
			rowCount: 200, threshold: 100,
			want: true,
		},
		{
			name:     "growth exactly at threshold does not trigger",
			state:    RetrainState{LastRetrainTime: now.Add(-time.Minute), LastRowCount: 10},
			rowCount: 110, threshold: 100,
			want: false,
		},
		{
			name:     "shrinking table does not trigger",
			state:    RetrainState{LastRetrainTime: now.Add(-time.Minute), LastRowCount: 100},
			rowCount: 10, threshold: 50,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldRetrain(tt.state, tt.rowCount, now, interval, tt.threshold)
			if got != tt.want {
				t.Errorf("ShouldRetrain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrainer_Retrain(t *testing.T) {
	src := &fakeSource{txs: trainingData()}
	tr, reg, popularity := newTestTrainer(t, src)

	if err := tr.Retrain(context.Background()); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}

	snap := reg.Active()
	if snap == nil {
		t.Fatal("registry has no active snapshot after retrain")
	}
	for _, rec := range snap.Transactions {
		if rec.Cluster < 0 {
			t.Errorf("transaction %s left unlabeled", rec.OrderID)
		}
	}
	// input table is not mutated
	for _, rec := range src.txs {
		if rec.Cluster != core.ClusterUnassigned {
			t.Errorf("source table was mutated: %s cluster = %d", rec.OrderID, rec.Cluster)
		}
	}

	// canonical pair is loadable and matches what the registry holds
	loaded, err := tr.Store.Load()
	if err != nil {
		t.Fatalf("Load() after retrain: %v", err)
	}
	if loaded.Version() != snap.Version() {
		t.Errorf("stored version %q != active version %q", loaded.Version(), snap.Version())
	}

	state := tr.State()
	if state.LastRowCount != len(src.txs) {
		t.Errorf("LastRowCount = %d, want %d", state.LastRowCount, len(src.txs))
	}
	if state.LastRetrainTime.IsZero() {
		t.Error("LastRetrainTime not updated")
	}

	// per-cluster popularity published
	hot, err := popularity.ZRange(context.Background(), PopularityKey(0), 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hot) == 0 {
		t.Error("no popularity entries for cluster 0")
	}
}

func TestTrainer_FailedCycleLeavesStateUntouched(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	tr, reg, _ := newTestTrainer(t, src)

	if err := tr.Retrain(context.Background()); err == nil {
		t.Fatal("Retrain() should fail when the source fails")
	}
	if reg.Active() != nil {
		t.Error("failed cycle must not install a snapshot")
	}
	if state := tr.State(); !state.LastRetrainTime.IsZero() || state.LastRowCount != 0 {
		t.Errorf("state changed by failed cycle: %+v", state)
	}
	if _, err := tr.Store.Load(); !core.IsNotFound(err) {
		t.Errorf("canonical pair written by failed cycle: %v", err)
	}
}

func TestTrainer_BuildFailureAbortsCycle(t *testing.T) {
	src := &fakeSource{txs: core.TransactionTable{}}
	tr, _, _ := newTestTrainer(t, src)

	if err := tr.Retrain(context.Background()); !core.IsEmptyInput(err) {
		t.Fatalf("Retrain() = %v, want EMPTY_INPUT", err)
	}
	if _, err := tr.Store.Load(); !core.IsNotFound(err) {
		t.Errorf("canonical pair written by failed cycle: %v", err)
	}
}

func TestTrainer_MaybeRetrain(t *testing.T) {
	src := &fakeSource{txs: trainingData()}
	tr, reg, _ := newTestTrainer(t, src)

	// fresh state, no growth: nothing happens
	tr.SetState(RetrainState{LastRetrainTime: time.Now(), LastRowCount: len(src.txs)})
	if err := tr.MaybeRetrain(context.Background()); err != nil {
		t.Fatalf("MaybeRetrain() error = %v", err)
	}
	if reg.Active() != nil {
		t.Fatal("retrained without a trigger")
	}

	// row growth beyond the threshold triggers even with a fresh model
	tr.RowGrowthThreshold = 1
	tr.SetState(RetrainState{LastRetrainTime: time.Now(), LastRowCount: 0})
	if err := tr.MaybeRetrain(context.Background()); err != nil {
		t.Fatalf("MaybeRetrain() error = %v", err)
	}
	if reg.Active() == nil {
		t.Error("growth trigger did not retrain")
	}
}

func TestPopularityKey(t *testing.T) {
	if got := PopularityKey(3); got != "popular:cluster:3" {
		t.Errorf("PopularityKey(3) = %q", got)
	}
}
