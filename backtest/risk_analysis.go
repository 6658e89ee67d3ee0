package backtest

import (
	"math"
	"sort"
)

// RiskMetrics 尾部风险指标，以小数表示
type RiskMetrics struct {
	VaR95  float64 `json:"var_95"`  // 95% 置信度风险价值
	VaR99  float64 `json:"var_99"`  // 99% 置信度风险价值
	CVaR95 float64 `json:"cvar_95"` // 95% 置信度条件风险价值
	CVaR99 float64 `json:"cvar_99"` // 99% 置信度条件风险价值
}

// CalculateRiskMetrics 用历史模拟法计算权益曲线的尾部风险。
// 权益点不足两个时返回零值。
func CalculateRiskMetrics(equity []EquityPoint) RiskMetrics {
	if len(equity) < 2 {
		return RiskMetrics{}
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1].Equity > 0 {
			returns = append(returns, (equity[i].Equity-equity[i-1].Equity)/equity[i-1].Equity)
		}
	}
	if len(returns) == 0 {
		return RiskMetrics{}
	}

	sort.Float64s(returns)

	return RiskMetrics{
		VaR95:  historicalVaR(returns, 0.95),
		VaR99:  historicalVaR(returns, 0.99),
		CVaR95: expectedShortfall(returns, 0.95),
		CVaR99: expectedShortfall(returns, 0.99),
	}
}

// historicalVaR 给定置信度下的历史 VaR，入参必须已升序排序
func historicalVaR(sorted []float64, confidence float64) float64 {
	idx := tailIndex(len(sorted), confidence)
	return math.Abs(sorted[idx])
}

// expectedShortfall 超出 VaR 阈值部分的平均损失（CVaR）
func expectedShortfall(sorted []float64, confidence float64) float64 {
	idx := tailIndex(len(sorted), confidence)

	sum := 0.0
	for i := 0; i <= idx; i++ {
		sum += sorted[i]
	}
	return math.Abs(sum / float64(idx+1))
}

// tailIndex 左尾分位点的下标
func tailIndex(n int, confidence float64) int {
	idx := int(float64(n) * (1 - confidence))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
