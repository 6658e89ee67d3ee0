package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"quantforge/backtest"
)

// BuildKey 根据数据集标识、策略和参数生成缓存键。
// 参数按名称排序后拼接，同一组输入永远得到同一个键。
func BuildKey(dataset, strategy string, params map[string]float64, cost backtest.CostConfig) string {
	var b strings.Builder
	b.WriteString(dataset)
	b.WriteByte('|')
	b.WriteString(strategy)
	b.WriteByte('|')
	b.WriteString(formatFloat(cost.InitialCapital))
	b.WriteByte(',')
	b.WriteString(formatFloat(cost.Commission))
	b.WriteByte(',')
	b.WriteString(formatFloat(cost.Slippage))
	b.WriteByte(',')
	b.WriteString(formatFloat(cost.RiskFreeRate))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(formatFloat(params[name]))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// formatFloat 输出最短的精确表示，避免格式化误差造成键漂移
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
