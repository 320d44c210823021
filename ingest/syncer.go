package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/clusterec/core"
)

// Syncer 把远端数据源的最新交易行合并进本地平面文件：
// 读取远端全量 → 与现有文件合并 → 按业务键去重 → 原子覆写。
//
// 去重键为 (OrderID, ProductID, SKUID) 业务键，而不是整行相等：
// 浮点列经过文本往返后整行比对不可靠。已有行优先保留。
type Syncer struct {
	Source core.Source // 远端数据源（通常是 SQLSource）
	Path   string      // 本地交易 CSV 路径
	Log    zerolog.Logger
}

// Sync 执行一次同步。远端读取失败时本地文件保持不变。
func (s *Syncer) Sync(ctx context.Context) error {
	fresh, err := s.Source.CurrentTransactions(ctx)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	existing, err := readCSV(s.Path)
	if err != nil && !core.IsNotFound(err) {
		return err
	}

	seen := make(map[string]struct{}, len(existing)+len(fresh))
	merged := make(core.TransactionTable, 0, len(existing)+len(fresh))
	for _, rec := range existing {
		key := businessKey(rec)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
	}
	added := 0
	for _, rec := range fresh {
		key := businessKey(rec)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
		added++
	}

	if err := writeCSV(s.Path, merged); err != nil {
		return err
	}
	s.Log.Info().Int("added", added).Int("total", len(merged)).Msg("data synced")
	return nil
}

func businessKey(rec core.TransactionRecord) string {
	return rec.OrderID + "\x00" + rec.ProductID + "\x00" + rec.SKUID
}

// writeCSV 先写临时文件再 rename，训练侧读取方不会看到半写文件。
func writeCSV(path string, txs core.TransactionTable) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range txs {
		date := ""
		if !rec.OrderDate.IsZero() {
			date = rec.OrderDate.Format(csvDateLayout)
		}
		row := []string{
			rec.OrderID,
			rec.CustomerID,
			rec.WarehouseID,
			formatFloat(rec.CustomerAge),
			rec.CustomerGender,
			date,
			rec.ProductID,
			rec.SKUID,
			rec.Category,
			formatFloat(rec.Quantity),
			formatFloat(rec.UnitPrice),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
