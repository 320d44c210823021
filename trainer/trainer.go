package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/clusterec/cluster"
	"github.com/rushteam/clusterec/core"
	"github.com/rushteam/clusterec/feature"
	"github.com/rushteam/clusterec/recommend"
	"github.com/rushteam/clusterec/registry"
	"github.com/rushteam/clusterec/snapshot"
)

// RetrainState 是再训练的标量记账：上次成功训练的时间与当时的行数。
// 只有训练周期成功结束才会更新；失败的周期不触碰它。
type RetrainState struct {
	LastRetrainTime time.Time
	LastRowCount    int
}

// ShouldRetrain 是纯函数触发策略：
// 距上次成功训练超过 interval，或行数增量超过 threshold，即应触发。
func ShouldRetrain(state RetrainState, rowCount int, now time.Time, interval time.Duration, threshold int) bool {
	if now.Sub(state.LastRetrainTime) > interval {
		return true
	}
	return rowCount-state.LastRowCount > threshold
}

// Trainer 执行完整的再训练周期：
//
//	读取数据源 → 特征构建 → 聚类 → 标签回填 → 快照落盘 → Registry 替换 → 热门发布
//
// 周期内任何一步失败都会放弃本轮：RetrainState 保持上次成功值，
// canonical 快照文件不被触碰（失败结果永远不会成为 canonical）。
type Trainer struct {
	Source   core.Source
	Store    *snapshot.FileStore
	Registry *registry.Registry // 可选：训练成功后直接替换活跃快照

	// Popularity 可选：训练成功后按簇发布热门商品有序集合，
	// 供外部请求层低成本读取 TopN。
	Popularity core.KeyValueStore

	Builder  *feature.Builder
	Assigner *cluster.Assigner

	Interval           time.Duration // 时间触发阈值
	RowGrowthThreshold int           // 行数增量触发阈值

	Log zerolog.Logger

	// mu 串行化触发检查与训练周期：训练进行中时第二次检查
	// 会阻塞到周期结束，看到更新后的状态，不会重复触发。
	mu    sync.Mutex
	state RetrainState
}

// State 返回当前再训练状态的副本。
func (t *Trainer) State() RetrainState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState 恢复持久化的再训练状态（进程启动时、首次触发检查之前调用）。
func (t *Trainer) SetState(state RetrainState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// MaybeRetrain 从数据源读取最新交易表并评估触发条件，满足时执行完整周期。
// 数据总是在触发时刻重新读取，不使用缓存。
func (t *Trainer) MaybeRetrain(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	txs, err := t.Source.CurrentTransactions(ctx)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if !ShouldRetrain(t.state, len(txs), time.Now(), t.Interval, t.RowGrowthThreshold) {
		t.Log.Debug().Int("rows", len(txs)).Msg("no retraining needed")
		return nil
	}

	t.Log.Info().Int("rows", len(txs)).Msg("retraining triggered")
	return t.retrain(ctx, txs)
}

// Retrain 无条件执行一次训练周期（启动时的首次训练等场景）。
func (t *Trainer) Retrain(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	txs, err := t.Source.CurrentTransactions(ctx)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	return t.retrain(ctx, txs)
}

// retrain 执行周期主体。调用方必须持有 t.mu。
func (t *Trainer) retrain(ctx context.Context, txs core.TransactionTable) error {
	features, err := t.Builder.Build(txs)
	if err != nil {
		return err
	}

	k, labels, err := t.Assigner.Assign(features.Matrix)
	if err != nil {
		return err
	}
	features.Clusters = labels

	// 簇标签按客户回填到交易表副本；输入表保持不变
	labelMap := features.Labels()
	labeled := make(core.TransactionTable, len(txs))
	for i, rec := range txs {
		rec.Cluster = labelMap[rec.CustomerID]
		labeled[i] = rec
	}

	snap := &core.ModelSnapshot{
		Transactions: labeled,
		Features:     features,
		CreatedAt:    time.Now(),
	}
	if err := t.Store.Save(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if t.Registry != nil {
		t.Registry.Set(snap)
	}
	t.publishPopularity(ctx, snap, k)

	t.state = RetrainState{
		LastRetrainTime: time.Now(),
		LastRowCount:    len(txs),
	}
	t.Log.Info().
		Str("version", snap.Version()).
		Int("clusters", k).
		Int("customers", features.Len()).
		Msg("model retrained")
	return nil
}

// PopularityKey 返回簇级热门商品有序集合的存储 key。
func PopularityKey(label int) string {
	return fmt.Sprintf("popular:cluster:%d", label)
}

// publishPopularity 把每个簇的商品总销量写入有序集合。
// 发布失败只记日志：热门列表是衍生品，不应让训练周期失败。
func (t *Trainer) publishPopularity(ctx context.Context, snap *core.ModelSnapshot, k int) {
	if t.Popularity == nil {
		return
	}
	for label := 0; label < k; label++ {
		totals := recommend.PopularityTotals(snap.Transactions.FilterCluster(label))
		key := PopularityKey(label)
		for pid, qty := range totals {
			if err := t.Popularity.ZAdd(ctx, key, qty, pid); err != nil {
				t.Log.Error().Err(err).Str("key", key).Msg("publish popularity failed")
				return
			}
		}
	}
}
