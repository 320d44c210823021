package feature

import (
	"fmt"
	"sort"
)

// OneHotEncoder One-Hot 编码（独热编码）。
// 将类别特征转换为二进制向量，每个类别对应一个维度。
// 未知类别编码为全零向量，而不是报错（新仓库/新性别值不应中断训练）。
type OneHotEncoder struct {
	Key        string   // 特征名，用于生成列名
	Categories []string // 类别列表（升序，保证列顺序确定）
}

// FitOneHot 从观测值拟合编码器：去重后按字典序排列类别。
func FitOneHot(key string, values []string) *OneHotEncoder {
	seen := make(map[string]struct{}, len(values))
	categories := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		categories = append(categories, v)
	}
	sort.Strings(categories)
	return &OneHotEncoder{Key: key, Categories: categories}
}

// ColumnNames 返回编码后的列名，如 gender_F / gender_M。
func (e *OneHotEncoder) ColumnNames() []string {
	names := make([]string, len(e.Categories))
	for i, cat := range e.Categories {
		names[i] = fmt.Sprintf("%s_%s", e.Key, cat)
	}
	return names
}

// Encode 编码单个值。未知类别返回全零。
func (e *OneHotEncoder) Encode(value string) []float64 {
	encoded := make([]float64, len(e.Categories))
	for i, cat := range e.Categories {
		if cat == value {
			encoded[i] = 1.0
		}
	}
	return encoded
}

// minMaxScale 对矩阵逐列做 Min-Max 缩放到 [0,1]。
// 公式: x' = (x - min) / (max - min)；常数列缩放为 0。
// 原地修改，调用方负责传入自有矩阵。
func minMaxScale(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	cols := len(matrix[0])
	for c := 0; c < cols; c++ {
		min, max := matrix[0][c], matrix[0][c]
		for _, row := range matrix {
			if row[c] < min {
				min = row[c]
			}
			if row[c] > max {
				max = row[c]
			}
		}
		rangeVal := max - min
		for _, row := range matrix {
			if rangeVal > 0 {
				row[c] = (row[c] - min) / rangeVal
			} else {
				row[c] = 0
			}
		}
	}
}
