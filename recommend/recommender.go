package recommend

import (
	"fmt"
	"sort"

	"github.com/rushteam/clusterec/core"
)

// Recommender 是簇内相似度推荐器。
//
// 算法流程（给定合法客户）：
//  1. 查客户簇标签，交易表限定到同簇子集
//  2. 在子集上构建 客户×商品 购买量矩阵
//  3. 计算目标客户与簇内所有其他客户的余弦相似度
//  4. 相似客户按相似度降序（排除自身），取前 SimilarWindow 个
//  5. 按相似序收集相似客户买过的商品作为候选池，统计出现频次
//  6. 频次降序排序（平分保持先出现者在前），剔除目标已购商品，截取 topN
//  7. 不足 topN 时用簇级热门商品（按总销量降序）补齐
//
// 所有排序都有确定的平分规则，同一快照下两次调用产出完全一致。
type Recommender struct {
	// SimilarWindow 参与候选收集的相似客户数上限，默认 99。
	SimilarWindow int
}

// Recommend 返回为客户推荐的商品 ID 有序列表，最多 topN 个。
//
// 失败语义（供 API 层映射传输错误）：
//   - 快照为空 → MODEL_UNAVAILABLE
//   - 客户不在簇标签表 → CUSTOMER_NOT_FOUND
//   - 客户在簇内无购买记录 → NO_PURCHASE_HISTORY
//   - 候选池与热门补齐后仍为空 → NO_RECOMMENDATIONS
func (r *Recommender) Recommend(snap *core.ModelSnapshot, customerID string, topN int) ([]string, error) {
	if snap == nil {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeModelUnavailable,
			"recommend: no active model snapshot")
	}
	if topN < 1 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			fmt.Sprintf("recommend: top_n must be >= 1, got %d", topN))
	}

	label, ok := snap.Features.ClusterOf(customerID)
	if !ok {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeCustomerNotFound,
			fmt.Sprintf("recommend: customer %q not found", customerID))
	}

	clusterTxs := snap.Transactions.FilterCluster(label)
	purchases := clusterTxs.PurchaseMatrix()
	targetRow, ok := purchases[customerID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNoPurchaseHistory,
			fmt.Sprintf("recommend: no purchase history for customer %q", customerID))
	}

	customers, products := matrixAxes(purchases)

	// 目标客户与簇内其他客户的相似度；自身恒为最大相似度，必须排除
	targetVec := vectorOf(targetRow, products)
	type customerSimilarity struct {
		customerID string
		similarity float64
	}
	similarities := make([]customerSimilarity, 0, len(customers))
	for _, id := range customers {
		if id == customerID {
			continue
		}
		similarities = append(similarities, customerSimilarity{
			customerID: id,
			similarity: cosineSimilarity(targetVec, vectorOf(purchases[id], products)),
		})
	}
	// 平分时保持客户 ID 字典序（customers 已排序，稳定排序保序）
	sort.SliceStable(similarities, func(i, j int) bool {
		return similarities[i].similarity > similarities[j].similarity
	})

	window := r.SimilarWindow
	if window <= 0 {
		window = 99
	}
	if len(similarities) > window {
		similarities = similarities[:window]
	}

	// 候选池：按相似序收集商品并统计频次；
	// 首次出现顺序保留，使频次平分时更相似客户贡献的商品排前
	alreadyBought := make(map[string]struct{}, len(targetRow))
	for pid, qty := range targetRow {
		if qty > 0 {
			alreadyBought[pid] = struct{}{}
		}
	}

	candidateOrder := make([]string, 0)
	candidateCount := make(map[string]int)
	for _, sim := range similarities {
		row := purchases[sim.customerID]
		for _, pid := range products {
			if row[pid] <= 0 {
				continue
			}
			if _, ok := candidateCount[pid]; !ok {
				candidateOrder = append(candidateOrder, pid)
			}
			candidateCount[pid]++
		}
	}
	sort.SliceStable(candidateOrder, func(i, j int) bool {
		return candidateCount[candidateOrder[i]] > candidateCount[candidateOrder[j]]
	})

	recommendations := make([]string, 0, topN)
	for _, pid := range candidateOrder {
		if _, owned := alreadyBought[pid]; owned {
			continue
		}
		recommendations = append(recommendations, pid)
		if len(recommendations) == topN {
			break
		}
	}

	// 热门补齐：簇内商品按总销量降序，仍排除已购与已选
	if len(recommendations) < topN {
		selected := make(map[string]struct{}, len(recommendations))
		for _, pid := range recommendations {
			selected[pid] = struct{}{}
		}
		for _, pid := range PopularProducts(clusterTxs) {
			if _, owned := alreadyBought[pid]; owned {
				continue
			}
			if _, ok := selected[pid]; ok {
				continue
			}
			recommendations = append(recommendations, pid)
			if len(recommendations) == topN {
				break
			}
		}
	}

	if len(recommendations) == 0 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNoRecommendations,
			fmt.Sprintf("recommend: no candidates left for customer %q", customerID))
	}
	return recommendations, nil
}

// PopularProducts 返回交易子集内按总销量降序的商品列表。
// 平分时保持商品 ID 字典序，保证结果确定。
func PopularProducts(txs core.TransactionTable) []string {
	totals := make(map[string]float64)
	for _, rec := range txs {
		totals[rec.ProductID] += rec.Quantity
	}
	products := make([]string, 0, len(totals))
	for pid := range totals {
		products = append(products, pid)
	}
	sort.Strings(products)
	sort.SliceStable(products, func(i, j int) bool {
		return totals[products[i]] > totals[products[j]]
	})
	return products
}

// PopularityTotals 返回交易子集内每个商品的总销量，供热门列表发布使用。
func PopularityTotals(txs core.TransactionTable) map[string]float64 {
	totals := make(map[string]float64, len(txs))
	for _, rec := range txs {
		totals[rec.ProductID] += rec.Quantity
	}
	return totals
}

// matrixAxes 返回购买矩阵的有序行轴（客户）与列轴（商品），均按字典序。
func matrixAxes(purchases map[string]map[string]float64) (customers, products []string) {
	productSet := make(map[string]struct{})
	for id, row := range purchases {
		customers = append(customers, id)
		for pid := range row {
			productSet[pid] = struct{}{}
		}
	}
	for pid := range productSet {
		products = append(products, pid)
	}
	sort.Strings(customers)
	sort.Strings(products)
	return customers, products
}

func vectorOf(row map[string]float64, products []string) []float64 {
	vec := make([]float64, len(products))
	for i, pid := range products {
		vec[i] = row[pid]
	}
	return vec
}
