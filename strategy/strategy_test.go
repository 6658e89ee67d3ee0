package strategy

import (
	"errors"
	"math"
	"testing"

	"quantforge/backtest"
	"quantforge/indicators"
)

const (
	testDayMs  = int64(86_400_000)
	testBaseTs = int64(1_600_000_000_000)
)

// candlesFromCloses 按收盘价序列构造日线K线
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

// triangleCloses 生成周期 40 的三角波收盘价
func triangleCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		phase := i % 40
		if phase < 20 {
			closes[i] = 100 + float64(phase)
		} else {
			closes[i] = 100 + float64(40-phase)
		}
	}
	return closes
}

// TestCatalogue 测试策略目录完整性
func TestCatalogue(t *testing.T) {
	t.Log("测试策略目录...")

	kinds := Kinds()
	if len(kinds) != 11 {
		t.Fatalf("目录包含 %d 个策略, 期望 11 个", len(kinds))
	}

	candles := candlesFromCloses(triangleCloses(200)...)

	for _, kind := range kinds {
		v, err := FromParams(kind, nil)
		if err != nil {
			t.Errorf("%s: 默认参数构造失败: %v", kind, err)
			continue
		}
		if v.Name() != kind {
			t.Errorf("%s: Name() 返回 %s", kind, v.Name())
		}
		if v.MinBars() < 1 {
			t.Errorf("%s: MinBars() = %d, 期望为正", kind, v.MinBars())
		}

		signals := v.Signals(candles)
		if len(signals) != len(candles) {
			t.Errorf("%s: 信号向量长度 %d != 输入长度 %d", kind, len(signals), len(candles))
			continue
		}
		for i, s := range signals {
			if s < -1 || s > 1 {
				t.Errorf("%s: 信号越界 signals[%d] = %d", kind, i, s)
				break
			}
		}
	}

	entries := Catalogue()
	if len(entries) != len(kinds) {
		t.Errorf("目录条目数 %d != 策略数 %d", len(entries), len(kinds))
	}
	for _, e := range entries {
		if len(e.Params) == 0 {
			t.Errorf("%s: 参数表为空", e.Kind)
		}
	}

	t.Logf("✅ 目录中 %d 个策略全部通过检查", len(kinds))
}

// TestFromParamsOverrides 测试参数覆盖与取整
func TestFromParamsOverrides(t *testing.T) {
	v, err := FromParams(KindMACross, map[string]float64{"fast_period": 5.4, "slow_period": 20})
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}

	mc, ok := v.(*MovingAverageCross)
	if !ok {
		t.Fatalf("变体类型 %T, 期望 *MovingAverageCross", v)
	}
	if mc.FastPeriod != 5 || mc.SlowPeriod != 20 {
		t.Errorf("参数 %d/%d, 期望 5/20", mc.FastPeriod, mc.SlowPeriod)
	}

	// 未知参数名被忽略，缺失参数用默认值
	v2, err := FromParams(KindRSI, map[string]float64{"no_such_param": 1})
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}
	rsi := v2.(*RSIReversion)
	if rsi.Period != 14 || rsi.Oversold != 30 || rsi.Overbought != 70 {
		t.Errorf("默认参数 %d/%.0f/%.0f, 期望 14/30/70", rsi.Period, rsi.Oversold, rsi.Overbought)
	}

	t.Logf("✅ 参数覆盖测试通过")
}

// TestFromParamsValidation 测试非法参数被拒绝
func TestFromParamsValidation(t *testing.T) {
	cases := []struct {
		name   string
		kind   string
		params map[string]float64
	}{
		{"未知策略", "no_such_strategy", nil},
		{"快线不小于慢线", KindMACross, map[string]float64{"fast_period": 30, "slow_period": 10}},
		{"零周期", KindRSI, map[string]float64{"period": 0}},
		{"超卖不小于超买", KindRSI, map[string]float64{"oversold": 80, "overbought": 20}},
		{"加速因子起始值过大", KindParabolicSAR, map[string]float64{"af_start": 0.5, "af_max": 0.2}},
		{"负的波幅倍数", KindATR, map[string]float64{"multiplier": -1}},
		{"阈值越界", KindADX, map[string]float64{"threshold": 150}},
	}

	for _, tc := range cases {
		_, err := FromParams(tc.kind, tc.params)
		var vErr *backtest.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("%s: 期望 ValidationError, 实际 %v", tc.name, err)
		}
	}

	t.Logf("✅ 非法参数校验通过")
}

// TestResolve 测试信号向量到信号流的翻译
func TestResolve(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	candles := candlesFromCloses(closes...)

	v := &MovingAverageCross{FastPeriod: 3, SlowPeriod: 10}
	signals := Resolve(v, candles)

	if len(signals) != 1 {
		t.Fatalf("信号数量 %d, 期望 1", len(signals))
	}
	sig := signals[0]
	if sig.Kind != backtest.Buy {
		t.Errorf("信号方向 %v, 期望 buy", sig.Kind)
	}
	if sig.Timestamp != candles[10].Time {
		t.Errorf("信号时间戳 %d, 期望 %d", sig.Timestamp, candles[10].Time)
	}
	if sig.PriceHint != candles[10].Close {
		t.Errorf("参考价 %.2f, 期望收盘价 %.2f", sig.PriceHint, candles[10].Close)
	}

	t.Logf("✅ 信号翻译测试通过")
}

// TestRunStrategyBacktest 测试策略回测入口
func TestRunStrategyBacktest(t *testing.T) {
	t.Log("测试策略回测...")

	candles := candlesFromCloses(triangleCloses(120)...)
	v := &MovingAverageCross{FastPeriod: 3, SlowPeriod: 10}
	cost := backtest.DefaultCostConfig()

	result, err := RunStrategyBacktest(candles, v, cost)
	if err != nil {
		t.Fatalf("回测失败: %v", err)
	}

	if len(result.EquityCurve) != len(candles) {
		t.Errorf("权益曲线长度 %d, 期望 %d", len(result.EquityCurve), len(candles))
	}
	if result.Metrics.TradeCount < 1 {
		t.Error("震荡行情应产生至少一笔完整交易")
	}
	for _, trade := range result.Trades {
		if trade.ExitTimestamp <= trade.EntryTimestamp {
			t.Errorf("交易 %d 平仓时间未晚于开仓时间", trade.ID)
		}
		if math.IsNaN(trade.PnL) || math.IsInf(trade.PnL, 0) {
			t.Errorf("交易 %d 盈亏非有限值", trade.ID)
		}
	}

	t.Logf("✅ 策略回测通过")
	t.Logf("   交易次数: %d", result.Metrics.TradeCount)
	t.Logf("   总收益率: %.2f%%", result.Metrics.TotalReturn*100)
	t.Logf("   最大回撤: %.2f%%", result.Metrics.MaxDrawdown*100)
}

// TestRunStrategyBacktestGuards 测试入口的参数与数据量校验
func TestRunStrategyBacktestGuards(t *testing.T) {
	candles := candlesFromCloses(triangleCloses(5)...)
	cost := backtest.DefaultCostConfig()

	// 数据不足
	v := &MovingAverageCross{FastPeriod: 10, SlowPeriod: 30}
	_, err := RunStrategyBacktest(candles, v, cost)
	var insufficient *backtest.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("期望 InsufficientDataError, 实际 %v", err)
	}
	if insufficient.Needed != v.MinBars() || insufficient.Have != 5 {
		t.Errorf("数据不足错误字段 needed=%d have=%d, 期望 %d/5", insufficient.Needed, insufficient.Have, v.MinBars())
	}

	// 非法参数在触碰数据前被拒绝
	bad := &MovingAverageCross{FastPeriod: 30, SlowPeriod: 10}
	_, err = RunStrategyBacktest(nil, bad, cost)
	var vErr *backtest.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("期望 ValidationError, 实际 %v", err)
	}

	t.Logf("✅ 入口校验测试通过")
}

// TestRSIReversionSignals 测试 RSI 策略在急跌行情中给出买入
func TestRSIReversionSignals(t *testing.T) {
	// 先涨 20 根再每根跌 5，RSI 从高位跌破超卖线
	closes := make([]float64, 30)
	for i := 0; i < 20; i++ {
		closes[i] = 100 + float64(i)
	}
	for i := 20; i < 30; i++ {
		closes[i] = closes[19] - 5*float64(i-19)
	}
	candles := candlesFromCloses(closes...)

	v := &RSIReversion{Period: 14, Oversold: 30, Overbought: 70}
	signals := v.Signals(candles)

	hasBuy := false
	for i, s := range signals {
		if s == 1 {
			hasBuy = true
			if i < 20 {
				t.Errorf("上涨阶段不应出现买入信号, 位置 %d", i)
			}
		}
	}
	if !hasBuy {
		t.Error("急跌行情应触发超卖买入信号")
	}

	t.Logf("✅ RSI 超卖信号测试通过")
}
