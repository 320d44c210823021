package cluster

import (
	"fmt"

	"github.com/rushteam/clusterec/core"
)

// Assigner 为缩放后的特征矩阵选择簇数并给每行分配簇标签。
//
// 簇数选择：扫描候选区间 [MinK, min(MaxK, n-1)]，对每个候选 k 做一次
// k-means 并用轮廓系数打分，保留得分最高的候选；打分严格大于才更新，
// 因此平分时保留先扫描到的（更小的）k。
//
// 边界行为：样本数不足以产生合法候选区间时，回退为固定的 2 簇
// （而不是报错）；只有 n < 2 连回退都无法划分时返回 CLUSTERING_FAILED。
type Assigner struct {
	MinK          int   // 候选下界，默认 2
	MaxK          int   // 候选上界，默认 10（受 n-1 截断）
	Seed          int64 // k-means 随机种子，默认 42
	MaxIterations int   // 单次 k-means 的最大迭代数，默认 100
}

// FallbackK 是候选区间为空时的固定回退簇数。
const FallbackK = 2

// Assign 返回 (簇数, 每行簇标签)。
func (a *Assigner) Assign(matrix [][]float64) (int, []int, error) {
	n := len(matrix)
	if n < 2 {
		return 0, nil, core.NewDomainError(core.ModuleCluster, core.ErrorCodeClusteringFailed,
			fmt.Sprintf("cluster: %d samples cannot be partitioned", n))
	}

	minK := a.MinK
	if minK < 2 {
		minK = 2
	}
	maxK := a.MaxK
	if maxK <= 0 {
		maxK = 10
	}
	if maxK > n-1 {
		maxK = n - 1
	}
	seed := a.Seed
	if seed == 0 {
		seed = 42
	}

	// 候选区间为空：回退为固定 2 簇
	if maxK < minK {
		labels, err := kmeansFit(matrix, FallbackK, seed, a.MaxIterations)
		if err != nil {
			return 0, nil, core.NewDomainError(core.ModuleCluster, core.ErrorCodeClusteringFailed, err.Error())
		}
		return FallbackK, labels, nil
	}

	bestK := 0
	bestScore := -1.0
	var bestLabels []int
	for k := minK; k <= maxK; k++ {
		labels, err := kmeansFit(matrix, k, seed, a.MaxIterations)
		if err != nil {
			continue
		}
		if score := silhouetteScore(matrix, labels, k); score > bestScore {
			bestK, bestScore, bestLabels = k, score, labels
		}
	}
	if bestK == 0 {
		return 0, nil, core.NewDomainError(core.ModuleCluster, core.ErrorCodeClusteringFailed,
			"cluster: no candidate k could be scored")
	}

	return bestK, bestLabels, nil
}
