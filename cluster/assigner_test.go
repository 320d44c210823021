package cluster

import (
	"reflect"
	"testing"

	"github.com/rushteam/clusterec/core"
)

// twoBlobs 是两个相距很远的点团，任何合理的聚类都应把它们分开。
func twoBlobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1},
	}
}

func TestAssigner_Assign_TwoBlobs(t *testing.T) {
	k, labels, err := (&Assigner{}).Assign(twoBlobs())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if k != 2 {
		t.Errorf("k = %d, want 2", k)
	}
	if len(labels) != 8 {
		t.Fatalf("labels len = %d", len(labels))
	}
	// first blob shares one label, second blob the other
	for i := 1; i < 4; i++ {
		if labels[i] != labels[0] {
			t.Errorf("labels[%d] = %d, want %d", i, labels[i], labels[0])
		}
	}
	for i := 5; i < 8; i++ {
		if labels[i] != labels[4] {
			t.Errorf("labels[%d] = %d, want %d", i, labels[i], labels[4])
		}
	}
	if labels[0] == labels[4] {
		t.Error("both blobs got the same label")
	}
}

func TestAssigner_Assign_Deterministic(t *testing.T) {
	matrix := twoBlobs()
	k1, labels1, err := (&Assigner{}).Assign(matrix)
	if err != nil {
		t.Fatal(err)
	}
	k2, labels2, err := (&Assigner{}).Assign(matrix)
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 || !reflect.DeepEqual(labels1, labels2) {
		t.Errorf("two runs differ: (%d,%v) vs (%d,%v)", k1, labels1, k2, labels2)
	}
}

func TestAssigner_Assign_TooFewSamples(t *testing.T) {
	for _, matrix := range [][][]float64{nil, {{1, 2}}} {
		_, _, err := (&Assigner{}).Assign(matrix)
		if !core.IsClusteringFailed(err) {
			t.Errorf("Assign(%d samples) = %v, want CLUSTERING_FAILED", len(matrix), err)
		}
	}
}

func TestAssigner_Assign_FallbackK(t *testing.T) {
	// n=2: candidate range [2, n-1] is empty, falls back to fixed 2 clusters
	matrix := [][]float64{{0, 0}, {10, 10}}
	k, labels, err := (&Assigner{}).Assign(matrix)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if k != FallbackK {
		t.Errorf("k = %d, want fallback %d", k, FallbackK)
	}
	if labels[0] == labels[1] {
		t.Error("both samples in one cluster")
	}
}

func TestKmeansFit_Deterministic(t *testing.T) {
	matrix := twoBlobs()
	labels1, err := kmeansFit(matrix, 2, 42, 100)
	if err != nil {
		t.Fatal(err)
	}
	labels2, err := kmeansFit(matrix, 2, 42, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(labels1, labels2) {
		t.Errorf("same seed produced different labels: %v vs %v", labels1, labels2)
	}
}

func TestSilhouetteScore(t *testing.T) {
	matrix := twoBlobs()
	labels, err := kmeansFit(matrix, 2, 42, 100)
	if err != nil {
		t.Fatal(err)
	}
	good := silhouetteScore(matrix, labels, 2)
	if good < 0.5 {
		t.Errorf("well-separated blobs score = %v, want >= 0.5", good)
	}

	// splitting one tight blob scores worse than the natural partition
	tight := [][]float64{{0, 0}, {0.1, 0}, {10, 10}, {10.1, 10}}
	natural := silhouetteScore(tight, []int{0, 0, 1, 1}, 2)
	split := silhouetteScore(tight, []int{0, 1, 0, 1}, 2)
	if split >= natural {
		t.Errorf("split score %v >= natural score %v", split, natural)
	}
}
