package filter

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("product", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// ProductAttrs 是规则表达式可见的商品属性。
// 属性来自快照交易表（每个商品取首次出现的类目/仓库）。
type ProductAttrs struct {
	ID        string
	Category  string
	Warehouse string
}

// RuleFilter 对推荐结果做基于 CEL 表达式的排除。
//
// 表达式语法（CEL 标准语法），命中任一条即剔除该商品：
//   - `product.category == "restricted"`
//   - `product.warehouse == "WH-9" && product.category != "staple"`
//
// 表达式在构造时编译一次并复用；非法表达式让构造失败，
// 运行期求值错误只跳过该条规则，绝不误伤合法结果。
type RuleFilter struct {
	exprs    []string
	programs []cel.Program
}

// NewRuleFilter 编译规则表达式。exprs 为空时返回不过滤任何商品的过滤器。
func NewRuleFilter(exprs []string) (*RuleFilter, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	f := &RuleFilter{exprs: exprs}
	for _, expr := range exprs {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", expr, err)
		}
		f.programs = append(f.programs, prg)
	}
	return f, nil
}

// Empty 报告过滤器是否没有任何规则。
func (f *RuleFilter) Empty() bool {
	return f == nil || len(f.programs) == 0
}

// Excluded 报告商品是否命中任一排除规则。
func (f *RuleFilter) Excluded(attrs ProductAttrs) bool {
	if f.Empty() {
		return false
	}

	input := map[string]interface{}{
		"product": map[string]interface{}{
			"id":        attrs.ID,
			"category":  attrs.Category,
			"warehouse": attrs.Warehouse,
		},
	}
	for _, prg := range f.programs {
		out, _, err := prg.Eval(input)
		if err != nil {
			continue // 求值错误不应剔除合法结果
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return true
		}
	}
	return false
}

// Apply 返回剔除命中规则商品后的列表，保持原有顺序。
// attrs 缺失的商品按只有 ID 的空属性求值。
func (f *RuleFilter) Apply(products []string, attrs map[string]ProductAttrs) []string {
	if f.Empty() {
		return products
	}
	out := make([]string, 0, len(products))
	for _, pid := range products {
		a, ok := attrs[pid]
		if !ok {
			a = ProductAttrs{ID: pid}
		}
		if f.Excluded(a) {
			continue
		}
		out = append(out, pid)
	}
	return out
}
