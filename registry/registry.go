package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/clusterec/core"
	"github.com/rushteam/clusterec/snapshot"
)

// Registry 持有进程内唯一的活跃 ModelSnapshot 引用。
//
// 并发模型：
//   - Active 只读，永远不被训练/重载阻塞，返回最近一次完整替换的快照
//   - Set 是唯一的变更点：整指针替换，读取方要么看到完整的旧快照、
//     要么看到完整的新快照，不会看到两代混合
//   - 重载失败保留旧快照：宁可服务过期模型，不可中断服务
type Registry struct {
	store *snapshot.FileStore
	log   zerolog.Logger

	mu       sync.RWMutex
	active   *core.ModelSnapshot
	loadedAt time.Time // 已加载 canonical 文件的修改时间
}

// New 创建 Registry。logger 可传 zerolog.Nop()。
func New(store *snapshot.FileStore, logger zerolog.Logger) *Registry {
	return &Registry{store: store, log: logger}
}

// Active 返回当前活跃快照；尚未加载过任何快照时返回 nil。
func (r *Registry) Active() *core.ModelSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Set 原子替换活跃快照。训练周期成功后由 Trainer 调用。
// loadedAt 记为当前时间：本次训练刚写完的文件 mtime 不会晚于它，
// 下一轮 ReloadIfChanged 不会做多余的重载。
func (r *Registry) Set(snap *core.ModelSnapshot) {
	r.mu.Lock()
	r.active = snap
	r.loadedAt = time.Now()
	r.mu.Unlock()
}

// Load 无条件从快照存储加载并替换（启动时调用一次）。
func (r *Registry) Load() error {
	mtime, err := r.store.LatestModTime()
	if err != nil {
		return err
	}
	return r.reload(mtime)
}

// ReloadIfChanged 对比 canonical 文件修改时间，发现新版本时
// 先完整加载两半，成功后才替换指针。加载失败（缺失/损坏/半写）
// 不影响当前活跃快照。
func (r *Registry) ReloadIfChanged() error {
	mtime, err := r.store.LatestModTime()
	if err != nil {
		return err
	}

	r.mu.RLock()
	seen := r.loadedAt
	r.mu.RUnlock()
	if !mtime.After(seen) {
		return nil
	}

	r.log.Info().Time("mtime", mtime).Msg("model change detected, reloading")
	return r.reload(mtime)
}

func (r *Registry) reload(mtime time.Time) error {
	snap, err := r.store.Load()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.active = snap
	r.loadedAt = mtime
	r.mu.Unlock()

	r.log.Info().
		Str("version", snap.Version()).
		Int("customers", snap.Features.Len()).
		Msg("model snapshot loaded")
	return nil
}

// Watch 是模型变更轮询循环：立即检查一次，之后按 interval 周期检查。
// 单轮失败只记日志，不影响后续轮次；ctx 取消后返回。
func (r *Registry) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.ReloadIfChanged(); err != nil {
			r.log.Error().Err(err).Msg("model reload failed, keeping previous snapshot")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
