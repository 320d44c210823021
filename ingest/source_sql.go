package ingest

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/rushteam/clusterec/core"
)

// SQLSource 从关系型数据源拉取交易行：订单、行项目、客户、商品四表联查。
// 驱动由调用方决定，注入已打开的 *sql.DB。
type SQLSource struct {
	db *sql.DB
}

var _ core.Source = (*SQLSource)(nil)

// NewSQLSource 注入一个 sql.DB 实现。
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// CurrentTransactions 执行联表查询并返回全量交易表。
func (s *SQLSource) CurrentTransactions(ctx context.Context) (core.TransactionTable, error) {
	if s.db == nil {
		return nil, fmt.Errorf("ingest: nil database handle")
	}

	query, args, err := sq.Select(
		"o.OrderID",
		"c.CustomerID",
		"p.WarehouseID",
		"c.CustomerAge",
		"c.Gender",
		"o.OrderDate",
		"p.ProductID",
		"p.SKUID",
		"p.Category",
		"oi.Quantity",
		"p.PricePerUnit",
	).
		From("OrderItems oi").
		Join("Orders o ON oi.OrderID = o.OrderID").
		Join("Customers c ON o.CustomerID = c.CustomerID").
		Join("Products p ON oi.SKUID = p.SKUID").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out core.TransactionTable
	for rows.Next() {
		rec := core.TransactionRecord{Cluster: core.ClusterUnassigned}
		if err := rows.Scan(
			&rec.OrderID,
			&rec.CustomerID,
			&rec.WarehouseID,
			&rec.CustomerAge,
			&rec.CustomerGender,
			&rec.OrderDate,
			&rec.ProductID,
			&rec.SKUID,
			&rec.Category,
			&rec.Quantity,
			&rec.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
