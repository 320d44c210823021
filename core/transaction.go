package core

import (
	"context"
	"time"
)

// ClusterUnassigned 表示该行尚未参与聚类。
// 快照内的交易表不允许出现此值（见 ModelSnapshot.Validate）。
const ClusterUnassigned = -1

// TransactionRecord 是一条订单行项目（line-item）购买事件，接入后不可变，
// 是所有下游聚合的唯一事实来源。
//
// 字段对应数据源的联表查询结果：订单、客户人口属性、商品三方信息。
// Cluster 由再训练周期写入（整表重建，不做原地修改）。
type TransactionRecord struct {
	OrderID        string    `json:"order_id"`
	CustomerID     string    `json:"customer_id"`
	WarehouseID    string    `json:"warehouse_id"`
	CustomerAge    float64   `json:"customer_age"`
	CustomerGender string    `json:"customer_gender"`
	OrderDate      time.Time `json:"order_date"`
	ProductID      string    `json:"product_id"`
	SKUID          string    `json:"sku_id"`
	Category       string    `json:"category"`
	Quantity       float64   `json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	Cluster        int       `json:"cluster"`
}

// TransactionTable 是交易记录的平面表。
type TransactionTable []TransactionRecord

// FilterCluster 返回属于指定簇的子表（共享底层记录，不复制）。
func (t TransactionTable) FilterCluster(label int) TransactionTable {
	out := make(TransactionTable, 0, len(t))
	for _, rec := range t {
		if rec.Cluster == label {
			out = append(out, rec)
		}
	}
	return out
}

// PurchaseMatrix 按 (客户, 商品) 聚合购买数量。
// 缺失组合视为 0，不显式填充。
func (t TransactionTable) PurchaseMatrix() map[string]map[string]float64 {
	matrix := make(map[string]map[string]float64)
	for _, rec := range t {
		row, ok := matrix[rec.CustomerID]
		if !ok {
			row = make(map[string]float64)
			matrix[rec.CustomerID] = row
		}
		row[rec.ProductID] += rec.Quantity
	}
	return matrix
}

// Source 是数据接入协作方的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（ingest）实现
//   - Trainer 在每次触发检查/训练周期时重新读取，不缓存
type Source interface {
	// CurrentTransactions 返回当前全量交易表
	CurrentTransactions(ctx context.Context) (TransactionTable, error)
}
