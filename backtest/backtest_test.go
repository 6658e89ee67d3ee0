package backtest

import (
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"quantforge/indicators"
)

const (
	testDayMs  = int64(86_400_000)
	testBaseTs = int64(1_600_000_000_000)
)

// candlesFromCloses 按收盘价序列构造日线K线，开高低收取同一价格
func candlesFromCloses(closes ...float64) []indicators.Candle {
	candles := make([]indicators.Candle, len(closes))
	for i, c := range closes {
		candles[i] = indicators.Candle{
			Time:   testBaseTs + int64(i)*testDayMs,
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return candles
}

// rangeCloses 生成 from 到 to 步长为 1 的收盘价序列
func rangeCloses(from, to float64) []float64 {
	n := int(to-from) + 1
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + float64(i)
	}
	return closes
}

// zeroCost 无手续费无滑点的成本配置
func zeroCost() CostConfig {
	return CostConfig{InitialCapital: 100000, Commission: 0, Slippage: 0, RiskFreeRate: 0}
}

// TestStraightLineRally 测试单边上涨行情的完整回测
func TestStraightLineRally(t *testing.T) {
	t.Log("测试单边上涨行情回测...")

	candles := candlesFromCloses(rangeCloses(100, 110)...)
	signals := []Signal{
		{Timestamp: candles[0].Time, Kind: Buy, PriceHint: 100},
		{Timestamp: candles[10].Time, Kind: Sell, PriceHint: 110},
	}

	result, err := RunSignalBacktest(candles, signals, zeroCost())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if len(result.EquityCurve) != len(candles) {
		t.Errorf("权益曲线长度 %d, 期望与K线数量一致 %d", len(result.EquityCurve), len(candles))
	}
	if result.Metrics.TradeCount != 1 {
		t.Fatalf("交易次数 %d, 期望 1", result.Metrics.TradeCount)
	}

	trade := result.Trades[0]
	wantPnL := trade.Quantity * 10
	if math.Abs(trade.PnL-wantPnL) > 1e-6 {
		t.Errorf("单笔盈亏 %.6f, 期望 %.6f", trade.PnL, wantPnL)
	}
	if trade.ExitTimestamp <= trade.EntryTimestamp {
		t.Error("平仓时间应晚于开仓时间")
	}
	if !isFinite(trade.PnL) {
		t.Error("盈亏必须为有限值")
	}
	if result.Metrics.TotalReturn <= 0 {
		t.Errorf("总收益率应为正, 实际 %.6f", result.Metrics.TotalReturn)
	}
	if result.Metrics.MaxDrawdown != 0 {
		t.Errorf("单边上涨时最大回撤应为 0, 实际 %.6f", result.Metrics.MaxDrawdown)
	}
	if result.Metrics.WinRate != 1 {
		t.Errorf("胜率应为 1, 实际 %.4f", result.Metrics.WinRate)
	}
	if !math.IsInf(result.Metrics.ProfitFactor, 1) {
		t.Errorf("只赚不亏时利润因子应为 +Inf, 实际 %.4f", result.Metrics.ProfitFactor)
	}
	if math.Abs(result.Metrics.AvgHoldDays-10) > 1e-9 {
		t.Errorf("平均持仓天数 %.4f, 期望 10", result.Metrics.AvgHoldDays)
	}
	if math.Abs(result.FinalValue-109500) > 1e-6 {
		t.Errorf("最终权益 %.2f, 期望 109500.00", result.FinalValue)
	}

	t.Logf("✅ 单边上涨回测通过")
	t.Logf("   总收益率: %.2f%%", result.Metrics.TotalReturn*100)
	t.Logf("   单笔盈亏: %.2f", trade.PnL)
}

// TestVShapeDrawdown 测试V型行情的回撤计量
func TestVShapeDrawdown(t *testing.T) {
	t.Log("测试V型行情回测...")

	candles := candlesFromCloses(100, 90, 80, 90, 100)
	signals := []Signal{
		{Timestamp: candles[0].Time, Kind: Buy},
		{Timestamp: candles[4].Time, Kind: Sell},
	}

	result, err := RunSignalBacktest(candles, signals, zeroCost())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if result.Metrics.TradeCount != 1 {
		t.Fatalf("交易次数 %d, 期望 1", result.Metrics.TradeCount)
	}
	if math.Abs(result.Trades[0].PnL) > 1e-9 {
		t.Errorf("同价开平仓盈亏应为 0, 实际 %.9f", result.Trades[0].PnL)
	}
	// 95% 仓位下 100 -> 80 的下跌对应 19% 的权益回撤
	if math.Abs(result.Metrics.MaxDrawdown-0.19) > 1e-9 {
		t.Errorf("最大回撤 %.6f, 期望 0.19", result.Metrics.MaxDrawdown)
	}
	if result.Metrics.MaxDrawdown < 0 || result.Metrics.MaxDrawdown > 1 {
		t.Error("最大回撤必须在 [0, 1] 区间内")
	}

	t.Logf("✅ V型行情回测通过, 最大回撤 %.2f%%", result.Metrics.MaxDrawdown*100)
}

// TestEmptySignals 测试无信号时的平坦权益
func TestEmptySignals(t *testing.T) {
	t.Log("测试空信号列表回测...")

	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	candles := candlesFromCloses(closes...)

	cost := DefaultCostConfig()
	result, err := RunSignalBacktest(candles, nil, cost)
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if result.Metrics.TradeCount != 0 {
		t.Errorf("交易次数 %d, 期望 0", result.Metrics.TradeCount)
	}
	if result.FinalValue != cost.InitialCapital {
		t.Errorf("最终权益 %.2f, 期望等于初始资金 %.2f", result.FinalValue, cost.InitialCapital)
	}
	if result.Metrics.TotalReturn != 0 {
		t.Errorf("平坦权益的总收益率应为 0, 实际 %.6f", result.Metrics.TotalReturn)
	}
	if result.Metrics.Volatility != 0 {
		t.Errorf("平坦权益的波动率应为 0, 实际 %.6f", result.Metrics.Volatility)
	}
	if result.Metrics.SharpeRatio != 0 {
		t.Errorf("波动率为 0 时夏普比率应为 0, 实际 %.6f", result.Metrics.SharpeRatio)
	}
	if result.Metrics.WinRate != 0 || result.Metrics.ProfitFactor != 0 {
		t.Error("零交易时胜率和利润因子应保持零值")
	}

	t.Logf("✅ 空信号回测通过, 最终权益 %.2f", result.FinalValue)
}

// TestInvalidBarRejected 测试非法K线被整体拒绝
func TestInvalidBarRejected(t *testing.T) {
	t.Log("测试非法K线校验...")

	candles := candlesFromCloses(100, 100, 100)
	candles[1].High = 90
	candles[1].Low = 95

	result, err := RunSignalBacktest(candles, nil, zeroCost())
	if result != nil {
		t.Error("校验失败时不应返回部分结果")
	}

	var invalidBar *InvalidBarError
	if !errors.As(err, &invalidBar) {
		t.Fatalf("期望 InvalidBarError, 实际 %v", err)
	}
	if invalidBar.Index != 1 {
		t.Errorf("违规下标 %d, 期望 1", invalidBar.Index)
	}

	t.Logf("✅ 非法K线校验通过: %v", err)
}

// TestValidateCandlesFirstViolation 测试校验返回首个违规位置
func TestValidateCandlesFirstViolation(t *testing.T) {
	candles := candlesFromCloses(100, 100, 100, 100)
	candles[1].Volume = -5
	candles[3].Close = math.NaN()

	err := ValidateCandles(candles)
	var invalidBar *InvalidBarError
	if !errors.As(err, &invalidBar) {
		t.Fatalf("期望 InvalidBarError, 实际 %v", err)
	}
	if invalidBar.Index != 1 {
		t.Errorf("应报告首个违规下标 1, 实际 %d", invalidBar.Index)
	}

	// 时间戳回退
	candles2 := candlesFromCloses(100, 100, 100)
	candles2[2].Time = candles2[1].Time
	if err := ValidateCandles(candles2); err == nil {
		t.Error("重复时间戳应校验失败")
	}

	// 合法序列应通过
	if err := ValidateCandles(candlesFromCloses(rangeCloses(1, 50)...)); err != nil {
		t.Errorf("合法K线序列不应报错: %v", err)
	}

	t.Logf("✅ K线校验测试通过")
}

// TestCostConfigValidation 测试成本配置校验
func TestCostConfigValidation(t *testing.T) {
	candles := candlesFromCloses(100, 101, 102)

	cases := []struct {
		name   string
		mutate func(*CostConfig)
		field  string
	}{
		{"零初始资金", func(c *CostConfig) { c.InitialCapital = 0 }, "initial_capital"},
		{"手续费率过高", func(c *CostConfig) { c.Commission = 0.5 }, "commission"},
		{"负滑点", func(c *CostConfig) { c.Slippage = -0.01 }, "slippage"},
		{"负无风险利率", func(c *CostConfig) { c.RiskFreeRate = -1 }, "risk_free_rate"},
	}

	for _, tc := range cases {
		cfg := DefaultCostConfig()
		tc.mutate(&cfg)

		_, err := RunSignalBacktest(candles, nil, cfg)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("%s: 期望 ValidationError, 实际 %v", tc.name, err)
			continue
		}
		if vErr.Field != tc.field {
			t.Errorf("%s: 违规字段 %s, 期望 %s", tc.name, vErr.Field, tc.field)
		}
	}

	t.Logf("✅ 成本配置校验测试通过")
}

// TestNoAutoCloseAtEnd 测试回测结束不强制平仓
func TestNoAutoCloseAtEnd(t *testing.T) {
	candles := candlesFromCloses(rangeCloses(100, 110)...)
	signals := []Signal{{Timestamp: candles[0].Time, Kind: Buy}}

	result, err := RunSignalBacktest(candles, signals, zeroCost())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if result.Metrics.TradeCount != 0 {
		t.Errorf("未平仓头寸不应计入成交明细, 实际 %d 笔", result.Metrics.TradeCount)
	}
	// 持仓市值计入最终权益: 100000 + 950 x (110 - 100)
	if math.Abs(result.FinalValue-109500) > 1e-6 {
		t.Errorf("最终权益 %.2f, 期望 109500.00", result.FinalValue)
	}

	t.Logf("✅ 不强制平仓测试通过, 最终权益 %.2f", result.FinalValue)
}

// TestSameTimestampSignals 测试同一时间戳的信号按顺序生效
func TestSameTimestampSignals(t *testing.T) {
	candles := candlesFromCloses(100, 100, 100)
	signals := []Signal{
		{Timestamp: candles[1].Time, Kind: Buy},
		{Timestamp: candles[1].Time, Kind: Sell},
	}

	result, err := RunSignalBacktest(candles, signals, zeroCost())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if result.Metrics.TradeCount != 1 {
		t.Fatalf("同时间戳先买后卖应产生 1 笔交易, 实际 %d", result.Metrics.TradeCount)
	}
	if math.Abs(result.Trades[0].PnL) > 1e-9 {
		t.Errorf("同价开平仓盈亏应为 0, 实际 %.9f", result.Trades[0].PnL)
	}
	if result.FinalValue != 100000 {
		t.Errorf("最终权益 %.2f, 期望 100000.00", result.FinalValue)
	}

	t.Logf("✅ 同时间戳信号测试通过")
}

// TestUnmatchedSignalsIgnored 测试未落在K线上的信号被丢弃
func TestUnmatchedSignalsIgnored(t *testing.T) {
	candles := candlesFromCloses(100, 101, 102)
	signals := []Signal{
		{Timestamp: candles[0].Time - testDayMs, Kind: Buy},
		{Timestamp: candles[1].Time + 1000, Kind: Buy},
		{Timestamp: candles[2].Time + testDayMs, Kind: Buy},
	}

	result, err := RunSignalBacktest(candles, signals, zeroCost())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if result.Metrics.TradeCount != 0 || result.FinalValue != 100000 {
		t.Errorf("无效时间戳信号不应产生交易, 交易 %d 笔, 最终权益 %.2f", result.Metrics.TradeCount, result.FinalValue)
	}

	t.Logf("✅ 无效时间戳信号测试通过")
}

// TestRepeatedBuyIgnored 测试持仓期间重复买入被忽略
func TestRepeatedBuyIgnored(t *testing.T) {
	candles := candlesFromCloses(100, 105, 110)
	signals := []Signal{
		{Timestamp: candles[0].Time, Kind: Buy},
		{Timestamp: candles[1].Time, Kind: Buy},
		{Timestamp: candles[2].Time, Kind: Sell},
	}

	result, err := RunSignalBacktest(candles, signals, zeroCost())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if result.Metrics.TradeCount != 1 {
		t.Fatalf("交易次数 %d, 期望 1", result.Metrics.TradeCount)
	}
	trade := result.Trades[0]
	if trade.EntryTimestamp != candles[0].Time {
		t.Error("开仓时间应来自第一个买入信号")
	}
	// 100000 x 0.95 / 100 = 950
	if math.Abs(trade.Quantity-950) > 1e-9 {
		t.Errorf("持仓数量 %.6f, 期望 950", trade.Quantity)
	}
	if math.Abs(trade.PnL-9500) > 1e-6 {
		t.Errorf("盈亏 %.2f, 期望 9500.00", trade.PnL)
	}

	t.Logf("✅ 重复买入忽略测试通过")
}

// TestGenerateMACrossSignalsMonotone 测试单边上涨只产生一个金叉
func TestGenerateMACrossSignalsMonotone(t *testing.T) {
	t.Log("测试均线交叉信号生成...")

	candles := candlesFromCloses(rangeCloses(1, 100)...)
	signals, err := GenerateMACrossSignals(candles, 3, 10)
	if err != nil {
		t.Fatalf("信号生成失败: %v", err)
	}

	if len(signals) != 1 {
		t.Fatalf("信号数量 %d, 期望恰好 1 个", len(signals))
	}
	if signals[0].Kind != Buy {
		t.Errorf("信号方向 %v, 期望 buy", signals[0].Kind)
	}
	if signals[0].Timestamp != candles[10].Time {
		t.Errorf("信号时间戳 %d, 期望慢线窗口填满后的第一根K线 %d", signals[0].Timestamp, candles[10].Time)
	}

	t.Logf("✅ 单边上涨金叉测试通过")
}

// TestGenerateMACrossSignalsAlternate 测试同向交叉不重复发出
func TestGenerateMACrossSignalsAlternate(t *testing.T) {
	// 三角波行情，周期 40
	closes := make([]float64, 120)
	for i := range closes {
		phase := i % 40
		if phase < 20 {
			closes[i] = 100 + float64(phase)
		} else {
			closes[i] = 100 + float64(40-phase)
		}
	}
	candles := candlesFromCloses(closes...)

	signals, err := GenerateMACrossSignals(candles, 3, 10)
	if err != nil {
		t.Fatalf("信号生成失败: %v", err)
	}
	if len(signals) < 2 {
		t.Fatalf("震荡行情应产生多个信号, 实际 %d 个", len(signals))
	}

	for i := 1; i < len(signals); i++ {
		if signals[i].Kind == signals[i-1].Kind {
			t.Errorf("第 %d 个信号与前一个同向: %v", i, signals[i].Kind)
		}
	}

	t.Logf("✅ 信号交替测试通过, 共 %d 个信号", len(signals))
}

// TestGenerateMACrossSignalsValidation 测试信号生成的参数校验
func TestGenerateMACrossSignalsValidation(t *testing.T) {
	candles := candlesFromCloses(rangeCloses(1, 20)...)

	if _, err := GenerateMACrossSignals(candles, 10, 3); err == nil {
		t.Error("快线周期大于慢线周期应报错")
	}
	if _, err := GenerateMACrossSignals(candles, 0, 10); err == nil {
		t.Error("零周期应报错")
	}

	_, err := GenerateMACrossSignals(candles, 3, 50)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("期望 InsufficientDataError, 实际 %v", err)
	}
	if insufficient.Needed != 50 || insufficient.Have != 20 {
		t.Errorf("数据不足错误字段 needed=%d have=%d, 期望 50/20", insufficient.Needed, insufficient.Have)
	}

	t.Logf("✅ 信号生成参数校验通过")
}

// TestCalculateMetricsKnownCurve 测试已知权益曲线的指标数值
func TestCalculateMetricsKnownCurve(t *testing.T) {
	values := []float64{100000, 110000, 105000, 95000, 105000, 90000}
	equity := make([]EquityPoint, len(values))
	for i, v := range values {
		equity[i] = EquityPoint{Timestamp: testBaseTs + int64(i)*testDayMs, Equity: v}
	}

	m, err := CalculateMetrics(equity, nil, 0)
	if err != nil {
		t.Fatalf("指标计算失败: %v", err)
	}

	if math.Abs(m.TotalReturn-(-0.1)) > 1e-12 {
		t.Errorf("总收益率 %.6f, 期望 -0.10", m.TotalReturn)
	}
	if math.Abs(m.MaxDrawdown-(20000.0/110000.0)) > 1e-12 {
		t.Errorf("最大回撤 %.6f, 期望 %.6f", m.MaxDrawdown, 20000.0/110000.0)
	}
	if m.Volatility <= 0 {
		t.Errorf("存在波动时波动率应为正, 实际 %.6f", m.Volatility)
	}
	if !isFinite(m.SharpeRatio) {
		t.Error("波动率为正时夏普比率必须有限")
	}
	if !isFinite(m.SortinoRatio) {
		t.Error("存在负收益时索提诺比率必须有限")
	}

	// 幂等性: 相同输入必须得到完全相同的输出
	m2, err := CalculateMetrics(equity, nil, 0)
	if err != nil {
		t.Fatalf("二次计算失败: %v", err)
	}
	if m != m2 {
		t.Error("相同输入的两次计算结果不一致")
	}

	t.Logf("✅ 已知曲线指标测试通过")
	t.Logf("   总收益率: %.2f%%", m.TotalReturn*100)
	t.Logf("   最大回撤: %.2f%%", m.MaxDrawdown*100)
	t.Logf("   夏普比率: %.4f", m.SharpeRatio)
}

// TestCalculateMetricsTradeStats 测试成交明细类指标
func TestCalculateMetricsTradeStats(t *testing.T) {
	equity := []EquityPoint{
		{Timestamp: testBaseTs, Equity: 100000},
		{Timestamp: testBaseTs + testDayMs, Equity: 100900},
	}
	trades := []Trade{
		{ID: 0, EntryTimestamp: testBaseTs, ExitTimestamp: testBaseTs + 4*testDayMs, PnL: 500},
		{ID: 1, EntryTimestamp: testBaseTs, ExitTimestamp: testBaseTs + 5*testDayMs, PnL: 1000},
		{ID: 2, EntryTimestamp: testBaseTs, ExitTimestamp: testBaseTs + 10*testDayMs, PnL: -400},
		{ID: 3, EntryTimestamp: testBaseTs, ExitTimestamp: testBaseTs + 4*testDayMs, PnL: -200},
	}

	m, err := CalculateMetrics(equity, trades, 0)
	if err != nil {
		t.Fatalf("指标计算失败: %v", err)
	}

	if m.TradeCount != 4 {
		t.Errorf("交易次数 %d, 期望 4", m.TradeCount)
	}
	if math.Abs(m.WinRate-0.5) > 1e-12 {
		t.Errorf("胜率 %.4f, 期望 0.5", m.WinRate)
	}
	if math.Abs(m.ProfitFactor-2.5) > 1e-12 {
		t.Errorf("利润因子 %.4f, 期望 2.5 (1500/600)", m.ProfitFactor)
	}
	if math.Abs(m.AvgHoldDays-5.75) > 1e-9 {
		t.Errorf("平均持仓天数 %.4f, 期望 5.75", m.AvgHoldDays)
	}
	if m.LargestWin != 1000 || m.LargestLoss != -400 {
		t.Errorf("最大盈亏 %.0f/%.0f, 期望 1000/-400", m.LargestWin, m.LargestLoss)
	}
	if m.MaxConsecutiveWins != 2 || m.MaxConsecutiveLosses != 2 {
		t.Errorf("最大连续盈亏 %d/%d, 期望 2/2", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	}
	if math.Abs(m.AvgWin-750) > 1e-9 {
		t.Errorf("平均盈利 %.2f, 期望 750", m.AvgWin)
	}
	if math.Abs(m.AvgLoss-(-300)) > 1e-9 {
		t.Errorf("平均亏损 %.2f, 期望 -300", m.AvgLoss)
	}

	t.Logf("✅ 成交明细指标测试通过")
}

// TestCalculateMetricsGuards 测试指标计算的防护分支
func TestCalculateMetricsGuards(t *testing.T) {
	// 非正权益点
	equity := []EquityPoint{
		{Timestamp: testBaseTs, Equity: 100000},
		{Timestamp: testBaseTs + testDayMs, Equity: 0},
		{Timestamp: testBaseTs + 2*testDayMs, Equity: 100},
	}
	_, err := CalculateMetrics(equity, nil, 0)
	var guard *DivisionGuardedError
	if !errors.As(err, &guard) {
		t.Fatalf("非正权益点应触发除零保护, 实际 %v", err)
	}

	// NaN 权益点
	equity2 := []EquityPoint{
		{Timestamp: testBaseTs, Equity: 100000},
		{Timestamp: testBaseTs + testDayMs, Equity: math.NaN()},
	}
	_, err = CalculateMetrics(equity2, nil, 0)
	var nonFinite *NonFiniteError
	if !errors.As(err, &nonFinite) {
		t.Fatalf("NaN 权益应报 NonFiniteError, 实际 %v", err)
	}
	if nonFinite.Index != 1 {
		t.Errorf("NaN 位置 %d, 期望 1", nonFinite.Index)
	}

	// 空权益曲线
	_, err = CalculateMetrics(nil, nil, 0)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("空权益曲线应报 InsufficientDataError, 实际 %v", err)
	}

	t.Logf("✅ 指标防护分支测试通过")
}

// TestMaxDrawdown 测试最大回撤工具函数
func TestMaxDrawdown(t *testing.T) {
	equity := make([]EquityPoint, 0, 6)
	for i, v := range []float64{100000, 110000, 105000, 95000, 105000, 90000} {
		equity = append(equity, EquityPoint{Timestamp: testBaseTs + int64(i)*testDayMs, Equity: v})
	}

	dd := MaxDrawdown(equity)
	if math.Abs(dd-0.18181818) > 1e-6 {
		t.Errorf("最大回撤 %.6f, 期望约 0.181818", dd)
	}
	if dd < 0 || dd > 1 {
		t.Error("最大回撤必须在 [0, 1] 区间内")
	}

	if MaxDrawdown(nil) != 0 {
		t.Error("空曲线的最大回撤应为 0")
	}

	t.Logf("✅ 最大回撤测试通过: %.4f", dd)
}

// TestCalculateRiskMetrics 测试尾部风险指标
func TestCalculateRiskMetrics(t *testing.T) {
	equity := make([]EquityPoint, 0, 5)
	for i, v := range []float64{100000, 95000, 90000, 95000, 100000} {
		equity = append(equity, EquityPoint{Timestamp: testBaseTs + int64(i)*testDayMs, Equity: v})
	}

	risk := CalculateRiskMetrics(equity)
	if risk.VaR95 <= 0 {
		t.Errorf("存在亏损日时 VaR95 应为正, 实际 %.6f", risk.VaR95)
	}
	if risk.CVaR95 < risk.VaR95-1e-12 {
		t.Errorf("CVaR95 %.6f 不应小于 VaR95 %.6f", risk.CVaR95, risk.VaR95)
	}
	if risk.VaR99 < risk.VaR95-1e-12 {
		t.Errorf("VaR99 %.6f 不应小于 VaR95 %.6f", risk.VaR99, risk.VaR95)
	}

	// 单点曲线返回零值
	if got := CalculateRiskMetrics(equity[:1]); got != (RiskMetrics{}) {
		t.Error("权益点不足时应返回零值")
	}

	t.Logf("✅ 尾部风险指标测试通过: VaR95=%.4f CVaR95=%.4f", risk.VaR95, risk.CVaR95)
}

// TestReportGeneration 测试报告与图表文件生成
func TestReportGeneration(t *testing.T) {
	t.Log("测试报告生成...")

	candles := candlesFromCloses(rangeCloses(100, 120)...)
	signals := []Signal{
		{Timestamp: candles[0].Time, Kind: Buy},
		{Timestamp: candles[20].Time, Kind: Sell},
	}
	result, err := RunSignalBacktest(candles, signals, DefaultCostConfig())
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	meta := ReportMeta{Strategy: "ma_cross", Symbol: "BTCUSDT", OutDir: t.TempDir()}

	reportPath, err := GenerateReport(result, meta)
	if err != nil {
		t.Fatalf("生成报告失败: %v", err)
	}
	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	if !strings.Contains(string(content), "策略回测报告") || !strings.Contains(string(content), "BTCUSDT") {
		t.Error("报告内容缺少关键字段")
	}
	t.Logf("✅ 报告已生成: %s", reportPath)

	csvPath, err := SaveEquityCurveCSV(result, meta)
	if err != nil {
		t.Fatalf("保存权益曲线失败: %v", err)
	}
	csvContent, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("读取 CSV 失败: %v", err)
	}
	if !strings.HasPrefix(string(csvContent), "timestamp,equity\n") {
		t.Error("CSV 表头不正确")
	}
	t.Logf("✅ 权益曲线已保存: %s", csvPath)

	htmlPath, err := SaveEquityChartHTML(result, meta)
	if err != nil {
		t.Fatalf("生成图表失败: %v", err)
	}
	info, err := os.Stat(htmlPath)
	if err != nil || info.Size() == 0 {
		t.Error("图表文件为空")
	}
	t.Logf("✅ 权益图表已生成: %s", htmlPath)
}
