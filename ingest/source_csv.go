package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rushteam/clusterec/core"
)

// 本地平面文件的列名约定（与数据源查询的别名一致）。
const (
	colOrderID   = "Order ID"
	colCustomer  = "Customer ID"
	colWarehouse = "Warehouse ID"
	colAge       = "Customer Age"
	colGender    = "Customer Gender"
	colDate      = "Date"
	colProduct   = "Product ID"
	colSKU       = "SKU ID"
	colCategory  = "Category"
	colQuantity  = "Quantity"
	colUnitPrice = "Price per Unit"
)

var csvHeader = []string{
	colOrderID, colCustomer, colWarehouse, colAge, colGender,
	colDate, colProduct, colSKU, colCategory, colQuantity, colUnitPrice,
}

const csvDateLayout = "2006-01-02 15:04:05"

// CSVSource 读取 Syncer 维护的本地交易平面文件。
// 文件缺失返回 NOT_FOUND；必需列缺失或数值列解析失败返回 SCHEMA 并指明列名。
type CSVSource struct {
	Path string
}

var _ core.Source = (*CSVSource)(nil)

func (s *CSVSource) CurrentTransactions(_ context.Context) (core.TransactionTable, error) {
	return readCSV(s.Path)
}

func readCSV(path string) (core.TransactionTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewDomainError(core.ModuleIngest, core.ErrorCodeNotFound,
				fmt.Sprintf("ingest: data file %q not found", path))
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return core.TransactionTable{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	required := []string{
		colOrderID, colCustomer, colWarehouse, colAge, colGender,
		colProduct, colSKU, colQuantity,
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, schemaErr(name, "missing column")
		}
	}

	var out core.TransactionTable
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		rec := core.TransactionRecord{
			OrderID:        field(row, idx, colOrderID),
			CustomerID:     field(row, idx, colCustomer),
			WarehouseID:    field(row, idx, colWarehouse),
			CustomerGender: field(row, idx, colGender),
			ProductID:      field(row, idx, colProduct),
			SKUID:          field(row, idx, colSKU),
			Category:       field(row, idx, colCategory),
			Cluster:        core.ClusterUnassigned,
		}
		if rec.CustomerAge, err = parseFloat(row, idx, colAge); err != nil {
			return nil, err
		}
		if rec.Quantity, err = parseFloat(row, idx, colQuantity); err != nil {
			return nil, err
		}
		if rec.UnitPrice, err = parseFloat(row, idx, colUnitPrice); err != nil {
			return nil, err
		}
		if raw := field(row, idx, colDate); raw != "" {
			ts, err := parseDate(raw)
			if err != nil {
				return nil, schemaErr(colDate, err.Error())
			}
			rec.OrderDate = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseFloat(row []string, idx map[string]int, name string) (float64, error) {
	raw := field(row, idx, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, schemaErr(name, "not a number: "+raw)
	}
	return v, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{csvDateLayout, "2006-01-02", time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func schemaErr(column, reason string) error {
	return core.NewDomainError(core.ModuleIngest, core.ErrorCodeSchema,
		fmt.Sprintf("ingest: column %q: %s", column, reason))
}
