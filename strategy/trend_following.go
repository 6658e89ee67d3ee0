package strategy

import (
	"quantforge/backtest"
	"quantforge/indicators"
)

// ========== 趋势类策略 ==========

// MovingAverageCross 双均线交叉策略
// 快线上穿慢线买入，下穿卖出，慢线窗口填满前不产生信号。
type MovingAverageCross struct {
	FastPeriod int `json:"fast_period" yaml:"fast_period"`
	SlowPeriod int `json:"slow_period" yaml:"slow_period"`
}

// Name 策略名称
func (s *MovingAverageCross) Name() string {
	return KindMACross
}

// Validate 校验参数
func (s *MovingAverageCross) Validate() error {
	if s.FastPeriod < 1 {
		return &backtest.ValidationError{Field: "fast_period", Reason: "快线周期必须为正整数"}
	}
	if s.SlowPeriod <= s.FastPeriod {
		return &backtest.ValidationError{Field: "slow_period", Reason: "慢线周期必须大于快线周期"}
	}
	return nil
}

// MinBars 最少K线数
func (s *MovingAverageCross) MinBars() int {
	return s.SlowPeriod + 1
}

// Signals 逐K线信号
// 同向交叉只发出一次，与显式信号生成器保持同一套语义。
func (s *MovingAverageCross) Signals(candles []indicators.Candle) []int {
	signals := make([]int, len(candles))
	if len(candles) < s.MinBars() {
		return signals
	}

	closes := indicators.ClosePrices(candles)
	fast := indicators.SMA(closes, s.FastPeriod)
	slow := indicators.SMA(closes, s.SlowPeriod)

	last := 0
	for i := s.SlowPeriod; i < len(candles); i++ {
		if indicators.CrossOverAt(fast, slow, i) && last != 1 {
			signals[i] = 1
			last = 1
		} else if indicators.CrossUnderAt(fast, slow, i) && last != -1 {
			signals[i] = -1
			last = -1
		}
	}

	return signals
}

// MACDCross MACD 线与信号线交叉策略
type MACDCross struct {
	FastPeriod   int `json:"fast_period" yaml:"fast_period"`
	SlowPeriod   int `json:"slow_period" yaml:"slow_period"`
	SignalPeriod int `json:"signal_period" yaml:"signal_period"`
}

// Name 策略名称
func (s *MACDCross) Name() string {
	return KindMACD
}

// Validate 校验参数
func (s *MACDCross) Validate() error {
	if s.FastPeriod < 1 {
		return &backtest.ValidationError{Field: "fast_period", Reason: "快线周期必须为正整数"}
	}
	if s.SlowPeriod <= s.FastPeriod {
		return &backtest.ValidationError{Field: "slow_period", Reason: "慢线周期必须大于快线周期"}
	}
	if s.SignalPeriod < 1 {
		return &backtest.ValidationError{Field: "signal_period", Reason: "信号线周期必须为正整数"}
	}
	return nil
}

// MinBars 最少K线数
func (s *MACDCross) MinBars() int {
	return s.SlowPeriod + s.SignalPeriod
}

// Signals 逐K线信号
func (s *MACDCross) Signals(candles []indicators.Candle) []int {
	return indicators.NewMACD(s.FastPeriod, s.SlowPeriod, s.SignalPeriod).SignalSeries(candles)
}

// ADXTrend ADX 趋势强度策略
// ADX 高于阈值时按 DI 方向持续给出信号。
type ADXTrend struct {
	Period    int     `json:"period" yaml:"period"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Name 策略名称
func (s *ADXTrend) Name() string {
	return KindADX
}

// Validate 校验参数
func (s *ADXTrend) Validate() error {
	if s.Period < 1 {
		return &backtest.ValidationError{Field: "period", Reason: "周期必须为正整数"}
	}
	if s.Threshold <= 0 || s.Threshold >= 100 {
		return &backtest.ValidationError{Field: "threshold", Reason: "趋势强度阈值必须在 (0, 100) 区间内"}
	}
	return nil
}

// MinBars 最少K线数
func (s *ADXTrend) MinBars() int {
	return s.Period*2 - 1
}

// Signals 逐K线信号
func (s *ADXTrend) Signals(candles []indicators.Candle) []int {
	ind := indicators.NewADX(s.Period)
	ind.Threshold = s.Threshold
	return ind.SignalSeries(candles)
}

// IchimokuTrend 一目均衡表策略
// 转换线在基准线上方且价格站上云层买入，全部反向则卖出。
type IchimokuTrend struct {
	ConvPeriod int `json:"conv" yaml:"conv"`
	BasePeriod int `json:"base" yaml:"base"`
	Lag        int `json:"lag" yaml:"lag"`
}

// Name 策略名称
func (s *IchimokuTrend) Name() string {
	return KindIchimoku
}

// Validate 校验参数
func (s *IchimokuTrend) Validate() error {
	if s.ConvPeriod < 1 {
		return &backtest.ValidationError{Field: "conv", Reason: "转换线周期必须为正整数"}
	}
	if s.BasePeriod < 1 {
		return &backtest.ValidationError{Field: "base", Reason: "基准线周期必须为正整数"}
	}
	if s.Lag < 1 {
		return &backtest.ValidationError{Field: "lag", Reason: "位移必须为正整数"}
	}
	return nil
}

// MinBars 最少K线数
func (s *IchimokuTrend) MinBars() int {
	min := s.Lag * 2
	if s.BasePeriod+1 > min {
		min = s.BasePeriod + 1
	}
	return min
}

// Signals 逐K线信号
func (s *IchimokuTrend) Signals(candles []indicators.Candle) []int {
	return indicators.NewIchimoku(s.ConvPeriod, s.BasePeriod, s.Lag).SignalSeries(candles)
}

// ParabolicSARTrend 抛物线转向策略
// 收盘价上穿 SAR 买入，下穿卖出。
type ParabolicSARTrend struct {
	AFStart float64 `json:"af_start" yaml:"af_start"`
	AFMax   float64 `json:"af_max" yaml:"af_max"`
}

// Name 策略名称
func (s *ParabolicSARTrend) Name() string {
	return KindParabolicSAR
}

// Validate 校验参数
func (s *ParabolicSARTrend) Validate() error {
	if s.AFStart <= 0 || s.AFStart > 1 {
		return &backtest.ValidationError{Field: "af_start", Reason: "加速因子起始值必须在 (0, 1] 区间内"}
	}
	if s.AFMax <= 0 || s.AFMax > 1 {
		return &backtest.ValidationError{Field: "af_max", Reason: "加速因子最大值必须在 (0, 1] 区间内"}
	}
	if s.AFStart >= s.AFMax {
		return &backtest.ValidationError{Field: "af_start", Reason: "加速因子起始值必须小于最大值"}
	}
	return nil
}

// MinBars 最少K线数
func (s *ParabolicSARTrend) MinBars() int {
	return 2
}

// Signals 逐K线信号
func (s *ParabolicSARTrend) Signals(candles []indicators.Candle) []int {
	return indicators.NewParabolicSAR(s.AFStart, s.AFMax).SignalSeries(candles)
}
