package core

import "time"

// SnapshotVersionLayout 是快照版本号的时间戳格式（可按字典序排序）。
const SnapshotVersionLayout = "20060102_150405"

// ModelSnapshot 是推荐器消费的原子状态单元：
// 带簇标签的交易表 + 客户特征表，两半总是同一次训练产出，
// 不同版本之间永远不混读。
type ModelSnapshot struct {
	Transactions TransactionTable `json:"transactions"`
	Features     *FeatureTable    `json:"features"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Version 返回按创建时间生成的版本号，用于缓存 key 与备份文件名。
func (s *ModelSnapshot) Version() string {
	return s.CreatedAt.Format(SnapshotVersionLayout)
}

// Validate 校验快照两半的完整性：特征表形状、交易表簇标签。
func (s *ModelSnapshot) Validate() error {
	if s.Features == nil {
		return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "snapshot: missing feature table")
	}
	if err := s.Features.Validate(); err != nil {
		return err
	}
	if len(s.Transactions) == 0 {
		return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "snapshot: empty transaction table")
	}
	for _, rec := range s.Transactions {
		if rec.Cluster < 0 {
			return NewDomainError(ModuleSnapshot, ErrorCodeCorruptModel, "snapshot: transaction without cluster label")
		}
	}
	return nil
}
