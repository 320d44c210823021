// Package clusterec 是一个基于客户聚类的商品推荐工具包（Cluster Recommender Kit）。
//
// 设计要点：
// - Snapshot-first: 推荐只读不可变的 ModelSnapshot（带簇标签的交易表 + 客户特征表）
// - 热更新: Registry 原子替换活跃快照，请求路径永远读到完整的一代模型
// - 后台再训练: Trainer 按时间/数据增量触发 特征构建 → 聚类 → 快照落盘 的完整周期
// - 外部协作方（API 层、数据源、KV 存储）通过 core 包的窄接口注入
package clusterec

import "github.com/rushteam/clusterec/service"

// 轻量 facade：便于用户直接 import "clusterec" 使用核心抽象。
type RecommendService = service.RecommendService
