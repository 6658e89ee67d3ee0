package strategy

import (
	"quantforge/backtest"
	"quantforge/indicators"
)

// ========== 动量类策略 ==========

// ATRBreakout ATR 突破策略
// 收盘价突破前收盘 ± Multiplier*ATR 时给出信号。
type ATRBreakout struct {
	Period     int     `json:"period" yaml:"period"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// Name 策略名称
func (s *ATRBreakout) Name() string {
	return KindATR
}

// Validate 校验参数
func (s *ATRBreakout) Validate() error {
	if s.Period < 1 {
		return &backtest.ValidationError{Field: "period", Reason: "周期必须为正整数"}
	}
	if s.Multiplier <= 0 {
		return &backtest.ValidationError{Field: "multiplier", Reason: "波幅倍数必须为正数"}
	}
	return nil
}

// MinBars 最少K线数
func (s *ATRBreakout) MinBars() int {
	return s.Period + 1
}

// Signals 逐K线信号
func (s *ATRBreakout) Signals(candles []indicators.Candle) []int {
	ind := indicators.NewATR(s.Period)
	ind.Multiplier = s.Multiplier
	return ind.SignalSeries(candles)
}

// OBVCross 能量潮策略
// OBV 上穿其均线买入，下穿卖出。
type OBVCross struct {
	Period int `json:"period" yaml:"period"`
}

// Name 策略名称
func (s *OBVCross) Name() string {
	return KindOBV
}

// Validate 校验参数
func (s *OBVCross) Validate() error {
	if s.Period < 1 {
		return &backtest.ValidationError{Field: "period", Reason: "周期必须为正整数"}
	}
	return nil
}

// MinBars 最少K线数
func (s *OBVCross) MinBars() int {
	return s.Period + 1
}

// Signals 逐K线信号
func (s *OBVCross) Signals(candles []indicators.Candle) []int {
	return indicators.NewOBV(s.Period).SignalSeries(candles)
}
