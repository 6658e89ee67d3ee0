// Package backtest 实现基于信号序列的单标的回测引擎，
// 以及配套的性能指标、风险指标与报告生成。
//
// 引擎以收盘价撮合，逐根K线单趟推进，最多持有一个多头仓位，
// 同一时间戳的多个信号按到达顺序依次生效，回测结束时不强制平仓，
// 未平仓头寸以市值计入最终权益。
package backtest

import (
	"sort"
	"time"

	"quantforge/indicators"
	"quantforge/logger"
)

// SignalKind 信号方向
type SignalKind int

const (
	Hold SignalKind = iota // 观望，不做任何操作
	Buy                    // 买入开仓
	Sell                   // 卖出平仓
)

// String 返回信号方向的可读名称
func (k SignalKind) String() string {
	switch k {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Signal 交易信号，时间戳为毫秒
type Signal struct {
	Timestamp int64      `json:"timestamp"`
	Kind      SignalKind `json:"kind"`
	PriceHint float64    `json:"price_hint"` // 信号参考价，撮合仍以收盘价为准
	Strength  float64    `json:"strength"`   // 信号强度 [0,1]
}

// Trade 一次完整的开平仓记录
type Trade struct {
	ID             int     `json:"id"`
	EntryTimestamp int64   `json:"entry_ts"`
	ExitTimestamp  int64   `json:"exit_ts"`
	EntryPrice     float64 `json:"entry_price"` // 含滑点的实际成交价
	ExitPrice      float64 `json:"exit_price"`  // 含滑点的实际成交价
	Quantity       float64 `json:"quantity"`
	PnL            float64 `json:"pnl"` // 扣除双边手续费后的净盈亏
	Commission     float64 `json:"commission_total"`
}

// EquityPoint 权益曲线上的一个点
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// CostConfig 资金与交易成本配置
type CostConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"` // 初始资金
	Commission     float64 `json:"commission" yaml:"commission"`           // 手续费率
	Slippage       float64 `json:"slippage" yaml:"slippage"`               // 滑点率
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`   // 年化无风险利率
}

// DefaultCostConfig 返回默认成本配置
func DefaultCostConfig() CostConfig {
	return CostConfig{
		InitialCapital: 100000,
		Commission:     0.001,
		Slippage:       0.0005,
		RiskFreeRate:   0.02,
	}
}

// Validate 校验成本配置
func (c CostConfig) Validate() error {
	if !isFinite(c.InitialCapital) || c.InitialCapital <= 0 {
		return &ValidationError{Field: "initial_capital", Reason: "初始资金必须为正数"}
	}
	if !isFinite(c.Commission) || c.Commission < 0 || c.Commission > 0.1 {
		return &ValidationError{Field: "commission", Reason: "手续费率必须在 [0, 0.1] 区间内"}
	}
	if !isFinite(c.Slippage) || c.Slippage < 0 || c.Slippage > 0.1 {
		return &ValidationError{Field: "slippage", Reason: "滑点率必须在 [0, 0.1] 区间内"}
	}
	if !isFinite(c.RiskFreeRate) || c.RiskFreeRate < 0 {
		return &ValidationError{Field: "risk_free_rate", Reason: "无风险利率不能为负"}
	}
	return nil
}

// Result 一次回测的完整输出
type Result struct {
	Config      CostConfig    `json:"config"`
	Metrics     Metrics       `json:"metrics"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	FinalValue  float64       `json:"final_value"`
	ElapsedNs   int64         `json:"execution_time_ns"`
}

// RunSignalBacktest 对给定K线序列执行显式信号回测。
//
// 每根K线先按「初始资金 + 持仓数量 x (收盘价 - 开仓价)」记录权益，
// 再应用时间戳与该K线相同的信号。空仓时权益恒等于初始资金，
// 已实现盈亏只记录在成交明细中，不滚入后续仓位的本金。
// 买入按当前权益的 95% 建仓，开仓价含滑点；卖出按收盘价减滑点成交，
// 双边手续费一并计入该笔交易的净盈亏。时间戳未落在任何K线上的信号被丢弃。
func RunSignalBacktest(candles []indicators.Candle, signals []Signal, cost CostConfig) (*Result, error) {
	start := time.Now()

	if err := cost.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCandles(candles); err != nil {
		return nil, err
	}

	logger.Debug("🚀 开始回测: %d 根K线, %d 个信号, 初始资金 %.2f", len(candles), len(signals), cost.InitialCapital)

	// 按时间戳稳定排序，同一时间戳的信号保持调用方给出的先后顺序
	sorted := make([]Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	equity := make([]EquityPoint, 0, len(candles))
	trades := make([]Trade, 0)

	var (
		holding    bool
		quantity   float64
		entryPrice float64
		entryTime  int64
		entryComm  float64
	)

	si := 0
	for _, c := range candles {
		bar := cost.InitialCapital
		if holding {
			bar = cost.InitialCapital + quantity*(c.Close-entryPrice)
		}
		equity = append(equity, EquityPoint{Timestamp: c.Time, Equity: bar})

		// 落在两根K线之间的信号没有撮合对象，直接丢弃
		for si < len(sorted) && sorted[si].Timestamp < c.Time {
			si++
		}
		for si < len(sorted) && sorted[si].Timestamp == c.Time {
			sig := sorted[si]
			si++

			switch sig.Kind {
			case Buy:
				if holding {
					continue
				}
				price := c.Close * (1 + cost.Slippage)
				if price <= 0 {
					return nil, &DivisionGuardedError{Operation: "buy_quantity"}
				}
				quantity = bar * 0.95 / price
				entryPrice = price
				entryComm = quantity * price * cost.Commission
				entryTime = c.Time
				holding = true
				logger.Debug("📈 买入: ts=%d 价格=%.4f 数量=%.6f", c.Time, price, quantity)
			case Sell:
				if !holding {
					continue
				}
				exitPrice := c.Close * (1 - cost.Slippage)
				proceeds := quantity * exitPrice
				exitComm := proceeds * cost.Commission
				pnl := proceeds - quantity*entryPrice - entryComm - exitComm
				trades = append(trades, Trade{
					ID:             len(trades),
					EntryTimestamp: entryTime,
					ExitTimestamp:  c.Time,
					EntryPrice:     entryPrice,
					ExitPrice:      exitPrice,
					Quantity:       quantity,
					PnL:            pnl,
					Commission:     entryComm + exitComm,
				})
				logger.Debug("📉 卖出: ts=%d 价格=%.4f 盈亏=%.2f", c.Time, exitPrice, pnl)
				holding = false
				quantity = 0
				entryPrice = 0
				entryComm = 0
			}
		}
	}

	if len(equity) != len(candles) {
		return nil, &ValidationError{Field: "equity_curve", Reason: "权益曲线长度与K线数量不一致"}
	}
	if !holding && quantity != 0 {
		return nil, &ValidationError{Field: "position", Reason: "空仓状态下持仓数量不为零"}
	}

	finalValue := equity[len(equity)-1].Equity

	metrics, err := CalculateMetrics(equity, trades, cost.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	logger.Debug("✅ 回测完成: %d 笔交易, 最终权益 %.2f, 耗时 %v", len(trades), finalValue, elapsed)

	return &Result{
		Config:      cost,
		Metrics:     metrics,
		Trades:      trades,
		EquityCurve: equity,
		FinalValue:  finalValue,
		ElapsedNs:   elapsed.Nanoseconds(),
	}, nil
}
