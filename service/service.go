package service

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/clusterec/core"
	"github.com/rushteam/clusterec/filter"
	"github.com/rushteam/clusterec/recommend"
	"github.com/rushteam/clusterec/registry"
	"github.com/rushteam/clusterec/trainer"
)

// RecommendService 是供外部请求层调用的服务门面。
//
// 职责：
//   - 应用配置的默认 top_n
//   - 结果缓存（key 含快照版本，换代后旧缓存自然失效）
//   - CEL 排除规则（在截断前生效，被剔除的名额由候选递补）
//   - 领域错误原样透传，由请求层映射为传输错误
type RecommendService struct {
	Registry    *registry.Registry
	Recommender *recommend.Recommender

	Cache    core.Store // 可选：推荐结果缓存
	CacheTTL int        // 缓存 TTL（秒），<=0 表示不过期

	// Popularity 可选：读取训练侧发布的簇级热门商品列表。
	Popularity core.KeyValueStore

	Rules       *filter.RuleFilter // 可选：排除规则
	TopNDefault int                // 调用方传 0 时的默认值，零值等价于 5

	Log zerolog.Logger
}

// Recommend 返回为客户推荐的商品 ID 有序列表。
// topN 传 0 使用配置默认值；负数返回 INVALID_INPUT。
func (s *RecommendService) Recommend(ctx context.Context, customerID string, topN int) ([]string, error) {
	if customerID == "" {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			"recommend: empty customer id")
	}
	if topN == 0 {
		topN = s.TopNDefault
		if topN == 0 {
			topN = 5
		}
	}

	snap := s.Registry.Active()
	if snap == nil {
		// 交给推荐器产出统一的 MODEL_UNAVAILABLE
		return s.Recommender.Recommend(nil, customerID, topN)
	}

	cacheKey := fmt.Sprintf("rec:%s:%s:%d", snap.Version(), customerID, topN)
	if s.Cache != nil {
		if data, err := s.Cache.Get(ctx, cacheKey); err == nil {
			var cached []string
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	// 有排除规则时预取额外候选，被剔除的名额由后续候选递补
	fetchN := topN
	if !s.Rules.Empty() {
		fetchN = topN * 2
	}
	result, err := s.Recommender.Recommend(snap, customerID, fetchN)
	if err != nil {
		return nil, err
	}

	if !s.Rules.Empty() {
		result = s.Rules.Apply(result, productAttrs(snap.Transactions))
		if len(result) > topN {
			result = result[:topN]
		}
		if len(result) == 0 {
			return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNoRecommendations,
				fmt.Sprintf("recommend: all candidates excluded by rules for customer %q", customerID))
		}
	}

	if s.Cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := s.Cache.Set(ctx, cacheKey, data, s.CacheTTL); err != nil {
				s.Log.Warn().Err(err).Str("store", s.Cache.Name()).Msg("cache write failed")
			}
		}
	}
	return result, nil
}

// HotProducts 返回指定簇的 TopN 热门商品（训练侧发布的有序集合）。
// 未配置 Popularity 存储时返回 NOT_SUPPORTED。
func (s *RecommendService) HotProducts(ctx context.Context, clusterLabel, topN int) ([]string, error) {
	if s.Popularity == nil {
		return nil, core.ErrStoreNotSupported
	}
	if topN < 1 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			fmt.Sprintf("recommend: top_n must be >= 1, got %d", topN))
	}
	return s.Popularity.ZRange(ctx, trainer.PopularityKey(clusterLabel), 0, int64(topN)-1)
}

// productAttrs 从交易表提取规则可见的商品属性（类目/仓库取首次出现值）。
func productAttrs(txs core.TransactionTable) map[string]filter.ProductAttrs {
	attrs := make(map[string]filter.ProductAttrs)
	for _, rec := range txs {
		if _, ok := attrs[rec.ProductID]; ok {
			continue
		}
		attrs[rec.ProductID] = filter.ProductAttrs{
			ID:        rec.ProductID,
			Category:  rec.Category,
			Warehouse: rec.WarehouseID,
		}
	}
	return attrs
}
