package feature

import (
	"fmt"
	"sort"

	"github.com/rushteam/clusterec/core"
)

// AggregationPolicy 是人口属性的聚合策略。
type AggregationPolicy string

// FirstSeen 取每个客户首次出现的人口属性值作为代表。
// 假设人口属性在客户维度上是稳定的（文档化假设，不做校验）。
const FirstSeen AggregationPolicy = "first_seen"

// Builder 把平面交易表转换为客户特征表：
//  1. 按 (客户, 商品) 聚合购买数量，缺失组合填 0
//  2. 按 FirstSeen 策略聚合人口属性
//  3. 类别属性 one-hot 编码（未知类别编码为全零）
//  4. 拼接 购买矩阵 + 数值人口属性 + 编码列
//  5. 全列 min-max 缩放到 [0,1]，保证聚类稳定性
//
// Build 不修改输入表，输出的簇标签为未分配状态，由聚类阶段填入。
type Builder struct {
	// Policy 人口属性聚合策略，零值等价于 FirstSeen（目前唯一实现）。
	Policy AggregationPolicy
}

// demographic 是单个客户按策略聚合后的人口属性。
type demographic struct {
	age       float64
	gender    string
	warehouse string
}

// Build 构建特征表。
// 失败语义：空输入返回 EMPTY_INPUT；关键列缺值返回 SCHEMA 并指明列名。
func (b *Builder) Build(txs core.TransactionTable) (*core.FeatureTable, error) {
	if len(txs) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeEmptyInput, "feature: empty transaction table")
	}
	if err := validateSchema(txs); err != nil {
		return nil, err
	}

	// 购买矩阵 + FirstSeen 人口属性
	purchases := txs.PurchaseMatrix()
	demographics := make(map[string]demographic, len(purchases))
	for _, rec := range txs {
		if _, ok := demographics[rec.CustomerID]; ok {
			continue
		}
		demographics[rec.CustomerID] = demographic{
			age:       rec.CustomerAge,
			gender:    rec.CustomerGender,
			warehouse: rec.WarehouseID,
		}
	}

	// 行/列均按字典序排列，保证同一输入产出同一矩阵（快照可复现）
	customers := make([]string, 0, len(purchases))
	for id := range purchases {
		customers = append(customers, id)
	}
	sort.Strings(customers)

	productSet := make(map[string]struct{})
	for _, row := range purchases {
		for pid := range row {
			productSet[pid] = struct{}{}
		}
	}
	products := make([]string, 0, len(productSet))
	for pid := range productSet {
		products = append(products, pid)
	}
	sort.Strings(products)

	genders := make([]string, 0, len(customers))
	warehouses := make([]string, 0, len(customers))
	for _, id := range customers {
		genders = append(genders, demographics[id].gender)
		warehouses = append(warehouses, demographics[id].warehouse)
	}
	genderEnc := FitOneHot("gender", genders)
	warehouseEnc := FitOneHot("warehouse", warehouses)

	columns := make([]string, 0, len(products)+1+len(genderEnc.Categories)+len(warehouseEnc.Categories))
	columns = append(columns, products...)
	columns = append(columns, "customer_age")
	columns = append(columns, genderEnc.ColumnNames()...)
	columns = append(columns, warehouseEnc.ColumnNames()...)

	matrix := make([][]float64, len(customers))
	for i, id := range customers {
		row := make([]float64, 0, len(columns))
		for _, pid := range products {
			row = append(row, purchases[id][pid])
		}
		row = append(row, demographics[id].age)
		row = append(row, genderEnc.Encode(demographics[id].gender)...)
		row = append(row, warehouseEnc.Encode(demographics[id].warehouse)...)
		matrix[i] = row
	}

	minMaxScale(matrix)

	return core.NewFeatureTable(customers, columns, matrix), nil
}

// validateSchema 检查关键列在所有行上均有值。
func validateSchema(txs core.TransactionTable) error {
	for i, rec := range txs {
		switch {
		case rec.CustomerID == "":
			return schemaError("customer_id", i)
		case rec.ProductID == "":
			return schemaError("product_id", i)
		case rec.Quantity < 0:
			return schemaError("quantity", i)
		}
	}
	return nil
}

func schemaError(column string, row int) error {
	return core.NewDomainError(core.ModuleFeature, core.ErrorCodeSchema,
		fmt.Sprintf("feature: missing or malformed column %q at row %d", column, row))
}
