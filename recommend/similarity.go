package recommend

import "math"

// cosineSimilarity 计算两个购买强度向量的余弦相似度。
// 零向量的范数为 0，除法未定义；此处约定相似度为 0，
// 避免 NaN 进入排序（全零行客户永远不会被当作相似客户）。
func cosineSimilarity(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	var dot, normX, normY float64
	for i := range x {
		dot += x[i] * y[i]
		normX += x[i] * x[i]
		normY += y[i] * y[i]
	}
	if normX == 0 || normY == 0 {
		return 0
	}
	return dot / (math.Sqrt(normX) * math.Sqrt(normY))
}
