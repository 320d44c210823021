package cluster

// silhouetteScore 计算划分的轮廓系数均值，衡量簇内凝聚度与簇间分离度。
// 对每个点 i：a(i) 为与同簇其他点的平均距离，b(i) 为与最近异簇的平均距离，
// s(i) = (b - a) / max(a, b)。单点簇的 s(i) 记为 0。
// 取值范围 [-1, 1]，越大划分越好。
func silhouetteScore(matrix [][]float64, labels []int, k int) float64 {
	n := len(matrix)
	if n == 0 || k < 2 {
		return 0
	}

	counts := make([]int, k)
	for _, c := range labels {
		counts[c]++
	}

	var total float64
	for i := range matrix {
		own := labels[i]
		if counts[own] <= 1 {
			continue // s(i) = 0
		}

		// 与每个簇的距离和
		sums := make([]float64, k)
		for j := range matrix {
			if i == j {
				continue
			}
			sums[labels[j]] += distance(matrix[i], matrix[j])
		}

		a := sums[own] / float64(counts[own]-1)
		b := -1.0
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if mean := sums[c] / float64(counts[c]); b < 0 || mean < b {
				b = mean
			}
		}
		if b < 0 {
			continue // 不存在异簇，s(i) = 0
		}

		max := a
		if b > max {
			max = b
		}
		if max > 0 {
			total += (b - a) / max
		}
	}

	return total / float64(n)
}
