package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），API 层据此映射为传输层错误
//
// 使用场景：
//   - 特征构建：EMPTY_INPUT, SCHEMA
//   - 聚类：CLUSTERING_FAILED
//   - 推荐：MODEL_UNAVAILABLE, CUSTOMER_NOT_FOUND, NO_PURCHASE_HISTORY, NO_RECOMMENDATIONS
//   - 快照存储：NOT_FOUND, CORRUPT_MODEL
//   - KV 存储：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "CUSTOMER_NOT_FOUND", "CORRUPT_MODEL"）
	Message string // 错误消息
	Module  string // 模块名称（如 "feature", "recommend", "snapshot"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*DomainError)
	return ok
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 模型生命周期错误代码
	ErrorCodeEmptyInput        = "EMPTY_INPUT"         // 输入交易表为空
	ErrorCodeSchema            = "SCHEMA"              // 必需列缺失或格式错误
	ErrorCodeClusteringFailed  = "CLUSTERING_FAILED"   // 所有候选 k 均无法评分
	ErrorCodeModelUnavailable  = "MODEL_UNAVAILABLE"   // 尚未加载任何快照
	ErrorCodeCorruptModel      = "CORRUPT_MODEL"       // 快照存在但形状/类型校验失败
	ErrorCodeCustomerNotFound  = "CUSTOMER_NOT_FOUND"  // 客户不在簇标签表中
	ErrorCodeNoPurchaseHistory = "NO_PURCHASE_HISTORY" // 客户在簇内无购买记录
	ErrorCodeNoRecommendations = "NO_RECOMMENDATIONS"  // 候选池耗尽，结果为空
)

// 模块名称常量
const (
	ModuleStore     = "store"     // KV 存储模块
	ModuleFeature   = "feature"   // 特征模块
	ModuleCluster   = "cluster"   // 聚类模块
	ModuleRecommend = "recommend" // 推荐模块
	ModuleSnapshot  = "snapshot"  // 快照持久化模块
	ModuleIngest    = "ingest"    // 数据接入模块
	ModuleTrainer   = "trainer"   // 再训练模块
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsEmptyInput 检查错误是否为 EMPTY_INPUT
func IsEmptyInput(err error) bool {
	return hasCode(err, ErrorCodeEmptyInput)
}

// IsSchema 检查错误是否为 SCHEMA
func IsSchema(err error) bool {
	return hasCode(err, ErrorCodeSchema)
}

// IsClusteringFailed 检查错误是否为 CLUSTERING_FAILED
func IsClusteringFailed(err error) bool {
	return hasCode(err, ErrorCodeClusteringFailed)
}

// IsModelUnavailable 检查错误是否为 MODEL_UNAVAILABLE
func IsModelUnavailable(err error) bool {
	return hasCode(err, ErrorCodeModelUnavailable)
}

// IsCorruptModel 检查错误是否为 CORRUPT_MODEL
func IsCorruptModel(err error) bool {
	return hasCode(err, ErrorCodeCorruptModel)
}

// IsCustomerNotFound 检查错误是否为 CUSTOMER_NOT_FOUND
func IsCustomerNotFound(err error) bool {
	return hasCode(err, ErrorCodeCustomerNotFound)
}

// IsNoPurchaseHistory 检查错误是否为 NO_PURCHASE_HISTORY
func IsNoPurchaseHistory(err error) bool {
	return hasCode(err, ErrorCodeNoPurchaseHistory)
}

// IsNoRecommendations 检查错误是否为 NO_RECOMMENDATIONS
func IsNoRecommendations(err error) bool {
	return hasCode(err, ErrorCodeNoRecommendations)
}
