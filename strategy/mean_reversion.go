package strategy

import (
	"quantforge/backtest"
	"quantforge/indicators"
)

// ========== 均值回归类策略 ==========

// RSIReversion RSI 超买超卖策略
// RSI 下穿超卖阈值买入，上穿超买阈值卖出。
type RSIReversion struct {
	Period     int     `json:"period" yaml:"period"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
}

// Name 策略名称
func (s *RSIReversion) Name() string {
	return KindRSI
}

// Validate 校验参数
func (s *RSIReversion) Validate() error {
	if s.Period < 1 {
		return &backtest.ValidationError{Field: "period", Reason: "周期必须为正整数"}
	}
	if s.Oversold < 0 || s.Overbought > 100 {
		return &backtest.ValidationError{Field: "oversold", Reason: "阈值必须在 [0, 100] 区间内"}
	}
	if s.Oversold >= s.Overbought {
		return &backtest.ValidationError{Field: "oversold", Reason: "超卖阈值必须小于超买阈值"}
	}
	return nil
}

// MinBars 最少K线数
func (s *RSIReversion) MinBars() int {
	return s.Period + 2
}

// Signals 逐K线信号
func (s *RSIReversion) Signals(candles []indicators.Candle) []int {
	ind := indicators.NewRSI(s.Period)
	ind.Oversold = s.Oversold
	ind.Overbought = s.Overbought
	return ind.SignalSeries(candles)
}

// BollingerReversion 布林带回归策略
// 收盘价跌破下轨买入，突破上轨卖出。
type BollingerReversion struct {
	Period  int     `json:"period" yaml:"period"`
	StdDevK float64 `json:"std_dev_k" yaml:"std_dev_k"`
}

// Name 策略名称
func (s *BollingerReversion) Name() string {
	return KindBollinger
}

// Validate 校验参数
func (s *BollingerReversion) Validate() error {
	if s.Period < 2 {
		return &backtest.ValidationError{Field: "period", Reason: "周期必须不小于 2"}
	}
	if s.StdDevK <= 0 {
		return &backtest.ValidationError{Field: "std_dev_k", Reason: "标准差倍数必须为正数"}
	}
	return nil
}

// MinBars 最少K线数
func (s *BollingerReversion) MinBars() int {
	return s.Period + 1
}

// Signals 逐K线信号
func (s *BollingerReversion) Signals(candles []indicators.Candle) []int {
	return indicators.NewBollingerBands(s.Period, s.StdDevK).SignalSeries(candles)
}

// KDJReversion KDJ 随机指标策略
// 超卖区金叉买入，超买区死叉卖出。
type KDJReversion struct {
	KPeriod    int     `json:"k_period" yaml:"k_period"`
	DPeriod    int     `json:"d_period" yaml:"d_period"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
}

// Name 策略名称
func (s *KDJReversion) Name() string {
	return KindKDJ
}

// Validate 校验参数
func (s *KDJReversion) Validate() error {
	if s.KPeriod < 1 {
		return &backtest.ValidationError{Field: "k_period", Reason: "K 周期必须为正整数"}
	}
	if s.DPeriod < 1 {
		return &backtest.ValidationError{Field: "d_period", Reason: "D 周期必须为正整数"}
	}
	if s.Oversold < 0 || s.Overbought > 100 {
		return &backtest.ValidationError{Field: "oversold", Reason: "阈值必须在 [0, 100] 区间内"}
	}
	if s.Oversold >= s.Overbought {
		return &backtest.ValidationError{Field: "oversold", Reason: "超卖阈值必须小于超买阈值"}
	}
	return nil
}

// MinBars 最少K线数
func (s *KDJReversion) MinBars() int {
	return s.KPeriod + s.DPeriod
}

// Signals 逐K线信号
func (s *KDJReversion) Signals(candles []indicators.Candle) []int {
	ind := indicators.NewKDJ(s.KPeriod, s.DPeriod)
	ind.Oversold = s.Oversold
	ind.Overbought = s.Overbought
	return ind.SignalSeries(candles)
}

// CCIReversion CCI 通道策略
// CCI 下穿 -阈值买入，上穿 +阈值卖出。
type CCIReversion struct {
	Period    int     `json:"period" yaml:"period"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Name 策略名称
func (s *CCIReversion) Name() string {
	return KindCCI
}

// Validate 校验参数
func (s *CCIReversion) Validate() error {
	if s.Period < 2 {
		return &backtest.ValidationError{Field: "period", Reason: "周期必须不小于 2"}
	}
	if s.Threshold <= 0 {
		return &backtest.ValidationError{Field: "threshold", Reason: "阈值必须为正数"}
	}
	return nil
}

// MinBars 最少K线数
func (s *CCIReversion) MinBars() int {
	return s.Period + 1
}

// Signals 逐K线信号
func (s *CCIReversion) Signals(candles []indicators.Candle) []int {
	ind := indicators.NewCCI(s.Period)
	ind.Threshold = s.Threshold
	return ind.SignalSeries(candles)
}
