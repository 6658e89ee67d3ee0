package backtest

import (
	"encoding/json"
	"math"
)

const (
	tradingDaysPerYear = 252.0
	millisPerDay       = 86_400_000.0
)

// Metrics 回测性能指标，所有比率类字段以小数表示
type Metrics struct {
	// 收益指标
	TotalReturn      float64 `json:"total_return"`      // 总收益率
	AnnualizedReturn float64 `json:"annualized_return"` // 年化收益率（CAGR）

	// 风险指标
	MaxDrawdown         float64 `json:"max_drawdown"`          // 最大回撤（峰谷跌幅）
	MaxDrawdownDuration int     `json:"max_drawdown_duration"` // 最大回撤持续天数
	Volatility          float64 `json:"volatility"`            // 年化波动率

	// 风险调整收益
	SharpeRatio  float64 `json:"sharpe_ratio"`  // 夏普比率
	SortinoRatio float64 `json:"sortino_ratio"` // 索提诺比率，无负收益时为 +Inf
	CalmarRatio  float64 `json:"calmar_ratio"`  // 卡玛比率

	// 交易指标
	TradeCount   int     `json:"trade_count"`   // 完整开平仓次数
	WinRate      float64 `json:"win_rate"`      // 胜率
	ProfitFactor float64 `json:"profit_factor"` // 利润因子，只赚不亏时为 +Inf
	AvgHoldDays  float64 `json:"avg_hold_days"` // 平均持仓天数
	AvgWin       float64 `json:"avg_win"`       // 平均单笔盈利
	AvgLoss      float64 `json:"avg_loss"`      // 平均单笔亏损（负值）
	LargestWin   float64 `json:"largest_win"`   // 最大单笔盈利
	LargestLoss  float64 `json:"largest_loss"`  // 最大单笔亏损（负值）

	// 连续性指标
	MaxConsecutiveWins   int `json:"max_consecutive_wins"`   // 最大连续盈利次数
	MaxConsecutiveLosses int `json:"max_consecutive_losses"` // 最大连续亏损次数
}

// MarshalJSON 把可能为 +Inf 的比率输出为 null。
// encoding/json 编不了非有限浮点数，而索提诺比率和利润因子
// 在没有亏损样本时就是 +Inf。
func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	return json.Marshal(struct {
		alias
		SortinoRatio interface{} `json:"sortino_ratio"`
		ProfitFactor interface{} `json:"profit_factor"`
	}{
		alias:        alias(m),
		SortinoRatio: FiniteOrNil(m.SortinoRatio),
		ProfitFactor: FiniteOrNil(m.ProfitFactor),
	})
}

// FiniteOrNil 有限值原样返回，±Inf/NaN 返回 nil
func FiniteOrNil(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// CalculateMetrics 由权益曲线和成交明细计算全部性能指标。
// 计算是纯函数，同样的输入总是得到同样的输出；
// 零笔交易时交易类指标保持零值，其余指标照常计算。
func CalculateMetrics(equity []EquityPoint, trades []Trade, riskFreeRate float64) (Metrics, error) {
	if err := ValidateEquityCurve(equity); err != nil {
		return Metrics{}, err
	}
	for i, t := range trades {
		if !isFinite(t.PnL) {
			return Metrics{}, &NonFiniteError{Field: "pnl", Index: i}
		}
	}

	returns, err := calculateDailyReturns(equity)
	if err != nil {
		return Metrics{}, err
	}

	first := equity[0].Equity
	if first <= 0 {
		return Metrics{}, &DivisionGuardedError{Operation: "total_return"}
	}
	last := equity[len(equity)-1].Equity
	totalReturn := (last - first) / first

	days := len(equity) - 1
	annualized := calculateAnnualizedReturn(totalReturn, days)
	volatility := calculateVolatility(returns)
	maxDD, ddDuration := calculateMaxDrawdown(equity)

	calmar := 0.0
	if maxDD > 0 {
		calmar = annualized / maxDD
	}

	m := Metrics{
		TotalReturn:         totalReturn,
		AnnualizedReturn:    annualized,
		MaxDrawdown:         maxDD,
		MaxDrawdownDuration: ddDuration,
		Volatility:          volatility,
		SharpeRatio:         calculateSharpeRatio(returns, riskFreeRate, volatility),
		SortinoRatio:        calculateSortinoRatio(returns, riskFreeRate),
		CalmarRatio:         calmar,
		TradeCount:          len(trades),
	}
	fillTradeStats(&m, trades)

	return m, nil
}

// MaxDrawdown 返回权益曲线的最大回撤（峰谷跌幅，小数表示）
func MaxDrawdown(equity []EquityPoint) float64 {
	dd, _ := calculateMaxDrawdown(equity)
	return dd
}

// calculateDailyReturns 计算相邻权益点之间的简单收益率
func calculateDailyReturns(equity []EquityPoint) ([]float64, error) {
	if len(equity) < 2 {
		return nil, nil
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			return nil, &DivisionGuardedError{Operation: "daily_return"}
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	return returns, nil
}

// calculateAnnualizedReturn 按 252 个交易日将总收益率折算为复合年增长率
func calculateAnnualizedReturn(totalReturn float64, days int) float64 {
	if days == 0 {
		return 0
	}
	return math.Pow(1+totalReturn, tradingDaysPerYear/float64(days)) - 1
}

// calculateVolatility 计算年化波动率（样本标准差）
func calculateVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := meanOf(returns)
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// calculateSharpeRatio 夏普比率 = (年化平均收益 - 无风险利率) / 年化波动率
func calculateSharpeRatio(returns []float64, riskFreeRate, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}

	mean := 0.0
	if len(returns) > 0 {
		mean = meanOf(returns)
	}
	return (mean*tradingDaysPerYear - riskFreeRate) / volatility
}

// calculateSortinoRatio 索提诺比率，分母只取下行波动。
// 没有任何负收益时返回 +Inf。
func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	mean := meanOf(returns)
	downSum := 0.0
	downCount := 0
	for _, r := range returns {
		if r < 0 {
			downSum += (r - mean) * (r - mean)
			downCount++
		}
	}
	if downCount == 0 {
		return math.Inf(1)
	}

	downsideDeviation := math.Sqrt(downSum/float64(downCount)) * math.Sqrt(tradingDaysPerYear)
	if downsideDeviation == 0 {
		return 0
	}

	annualized := math.Pow(1+mean, tradingDaysPerYear) - 1
	return (annualized - riskFreeRate) / downsideDeviation
}

// calculateMaxDrawdown 峰谷法计算最大回撤及其持续天数。
// 持续时间取「创新高时点到尚未收复新高的最远时点」的最大间隔，
// 回测结束仍未收复时计到最后一个权益点。
func calculateMaxDrawdown(equity []EquityPoint) (float64, int) {
	if len(equity) == 0 {
		return 0, 0
	}

	peak := equity[0].Equity
	peakTs := equity[0].Timestamp
	maxDD := 0.0
	var maxDuration int64

	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
			peakTs = p.Timestamp
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
		if p.Equity < peak {
			if d := p.Timestamp - peakTs; d > maxDuration {
				maxDuration = d
			}
		}
	}

	return maxDD, int(float64(maxDuration) / millisPerDay)
}

// fillTradeStats 汇总成交明细类指标，trades 为空时全部保持零值
func fillTradeStats(m *Metrics, trades []Trade) {
	if len(trades) == 0 {
		return
	}

	var (
		wins, losses             int
		grossProfit, grossLoss   float64
		largestWin, largestLoss  float64
		holdMillis               float64
		consecWins, consecLosses int
	)

	for _, t := range trades {
		holdMillis += float64(t.ExitTimestamp - t.EntryTimestamp)

		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
			if t.PnL > largestWin {
				largestWin = t.PnL
			}
			consecWins++
			consecLosses = 0
			if consecWins > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = consecWins
			}
		} else {
			losses++
			grossLoss += -t.PnL
			if t.PnL < largestLoss {
				largestLoss = t.PnL
			}
			consecLosses++
			consecWins = 0
			if consecLosses > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = consecLosses
			}
		}
	}

	m.WinRate = float64(wins) / float64(len(trades))
	m.AvgHoldDays = holdMillis / millisPerDay / float64(len(trades))
	m.LargestWin = largestWin
	m.LargestLoss = largestLoss
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = -grossLoss / float64(losses)
	}

	if grossLoss == 0 {
		if grossProfit > 0 {
			m.ProfitFactor = math.Inf(1)
		}
	} else {
		m.ProfitFactor = grossProfit / grossLoss
	}
}

// meanOf 算术平均值，调用方保证切片非空
func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
