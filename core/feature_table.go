package core

// ClusterLabelMap 是权威的 客户→簇 关联表，用于把请求路由到对应簇的交易子集。
type ClusterLabelMap map[string]int

// FeatureTable 是客户特征表：每个客户一行，列为
// 各商品购买量 + 归一化的数值人口属性 + one-hot 编码的类别属性。
// 聚类完成后每行带有一个簇标签（>= 0），读取方不会看到未分配状态。
type FeatureTable struct {
	Customers []string    `json:"customers"` // 行索引：客户 ID，每个客户恰好一行
	Columns   []string    `json:"columns"`   // 列名，和 Matrix 的列一一对应
	Matrix    [][]float64 `json:"matrix"`    // 已 min-max 缩放的特征矩阵
	Clusters  []int       `json:"clusters"`  // 每行的簇标签

	index map[string]int // customerID -> 行号，反序列化后由 Reindex 重建
}

// NewFeatureTable 创建特征表并建立行索引。Clusters 初始为未分配。
func NewFeatureTable(customers, columns []string, matrix [][]float64) *FeatureTable {
	t := &FeatureTable{
		Customers: customers,
		Columns:   columns,
		Matrix:    matrix,
		Clusters:  make([]int, len(customers)),
	}
	for i := range t.Clusters {
		t.Clusters[i] = ClusterUnassigned
	}
	t.Reindex()
	return t
}

// Reindex 重建 customerID -> 行号 索引。
// 快照从磁盘加载后必须调用一次。
func (t *FeatureTable) Reindex() {
	t.index = make(map[string]int, len(t.Customers))
	for i, id := range t.Customers {
		t.index[id] = i
	}
}

// Len 返回客户数。
func (t *FeatureTable) Len() int { return len(t.Customers) }

// Row 返回指定客户的特征行。
func (t *FeatureTable) Row(customerID string) ([]float64, bool) {
	i, ok := t.index[customerID]
	if !ok {
		return nil, false
	}
	return t.Matrix[i], true
}

// ClusterOf 返回指定客户的簇标签。
func (t *FeatureTable) ClusterOf(customerID string) (int, bool) {
	i, ok := t.index[customerID]
	if !ok {
		return 0, false
	}
	return t.Clusters[i], true
}

// Labels 导出 ClusterLabelMap。
func (t *FeatureTable) Labels() ClusterLabelMap {
	labels := make(ClusterLabelMap, len(t.Customers))
	for i, id := range t.Customers {
		labels[id] = t.Clusters[i]
	}
	return labels
}

// Validate 校验表的形状一致性与簇标签完整性。
// 用于快照加载时区分 CORRUPT_MODEL 与正常数据。
func (t *FeatureTable) Validate() error {
	if len(t.Customers) == 0 {
		return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "feature table: no customers")
	}
	if len(t.Matrix) != len(t.Customers) || len(t.Clusters) != len(t.Customers) {
		return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "feature table: row count mismatch")
	}
	for _, row := range t.Matrix {
		if len(row) != len(t.Columns) {
			return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "feature table: column count mismatch")
		}
	}
	for _, c := range t.Clusters {
		if c < 0 {
			return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "feature table: unassigned cluster label")
		}
	}
	return nil
}
