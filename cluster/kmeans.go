package cluster

import (
	"fmt"
	"math"
	"math/rand"
)

// kmeansFit 对矩阵做 k-means 划分（Lloyd 迭代），返回每行的簇标签。
// 随机性只来自固定 seed 的初始质心选择，同一输入必然复现同一标签，
// 这是快照可复现与回归测试的前提。
func kmeansFit(matrix [][]float64, k int, seed int64, maxIter int) ([]int, error) {
	n := len(matrix)
	if k < 1 || k > n {
		return nil, fmt.Errorf("kmeans: invalid k=%d for n=%d", k, n)
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	// 初始质心：按固定 seed 的排列取前 k 行
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), matrix[perm[i]]...)
	}

	labels := make([]int, n)
	for iter := 0; iter < maxIter; iter++ {
		changed := false

		// 分配：每个点归属最近质心，距离相等时取下标更小的质心（确定性）
		for i, row := range matrix {
			best := 0
			bestDist := sqDistance(row, centroids[0])
			for c := 1; c < k; c++ {
				if d := sqDistance(row, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		// 更新质心
		dims := len(matrix[0])
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range matrix {
			c := labels[i]
			counts[c]++
			for d, v := range row {
				sums[c][d] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// 空簇：用离自身质心最远的点重新播种
				centroids[c] = append([]float64(nil), matrix[farthestPoint(matrix, centroids, labels)]...)
				continue
			}
			for d := 0; d < dims; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return labels, nil
}

// farthestPoint 返回与自身所属质心距离最大的点下标。
func farthestPoint(matrix, centroids [][]float64, labels []int) int {
	worst, worstDist := 0, -1.0
	for i, row := range matrix {
		if d := sqDistance(row, centroids[labels[i]]); d > worstDist {
			worst, worstDist = i, d
		}
	}
	return worst
}

func sqDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func distance(a, b []float64) float64 {
	return math.Sqrt(sqDistance(a, b))
}
