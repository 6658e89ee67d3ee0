// Package strategy 提供参数化的策略目录。
// 每个变体把自己的指标信号向量翻译成回测引擎可消费的信号流，
// 目录是封闭的：优化器和 Web 层只通过名称与参数表构造变体。
package strategy

import (
	"math"
	"sort"

	"quantforge/backtest"
	"quantforge/indicators"
	"quantforge/logger"
)

// 策略名称
const (
	KindMACross      = "ma_cross"
	KindRSI          = "rsi"
	KindMACD         = "macd"
	KindBollinger    = "bollinger"
	KindKDJ          = "kdj"
	KindCCI          = "cci"
	KindADX          = "adx"
	KindATR          = "atr"
	KindOBV          = "obv"
	KindIchimoku     = "ichimoku"
	KindParabolicSAR = "parabolic_sar"
)

// Variant 参数化策略变体
type Variant interface {
	// Name 返回策略名称（目录键）
	Name() string
	// Validate 校验参数的结构性约束
	Validate() error
	// MinBars 返回产生有效信号所需的最少K线数
	MinBars() int
	// Signals 返回与输入等长的 {-1, 0, +1} 信号向量
	Signals(candles []indicators.Candle) []int
}

// Resolve 把变体的信号向量翻译成引擎信号流。
// 零值K线被略过，时间戳取所在K线，参考价取收盘价。
func Resolve(v Variant, candles []indicators.Candle) []backtest.Signal {
	series := v.Signals(candles)
	signals := make([]backtest.Signal, 0)

	for i, s := range series {
		if s == 0 {
			continue
		}
		kind := backtest.Buy
		if s < 0 {
			kind = backtest.Sell
		}
		signals = append(signals, backtest.Signal{
			Timestamp: candles[i].Time,
			Kind:      kind,
			PriceHint: candles[i].Close,
			Strength:  1,
		})
	}

	return signals
}

// RunStrategyBacktest 校验参数与数据量后解析信号并委托给引擎
func RunStrategyBacktest(candles []indicators.Candle, v Variant, cost backtest.CostConfig) (*backtest.Result, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(candles) < v.MinBars() {
		return nil, &backtest.InsufficientDataError{Needed: v.MinBars(), Have: len(candles)}
	}

	logger.Debug("🎯 策略回测: %s, %d 根K线", v.Name(), len(candles))
	return backtest.RunSignalBacktest(candles, Resolve(v, candles), cost)
}

// ParamSpec 单个参数的名称与默认值
type ParamSpec struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
}

// CatalogueEntry 目录中一个策略的参数表
type CatalogueEntry struct {
	Kind   string      `json:"kind"`
	Params []ParamSpec `json:"params"`
}

// variantFactory 按参数表构造变体
type variantFactory struct {
	specs []ParamSpec
	build func(params map[string]float64) Variant
}

var factories = map[string]variantFactory{
	KindMACross: {
		specs: []ParamSpec{{"fast_period", 10}, {"slow_period", 30}},
		build: func(p map[string]float64) Variant {
			return &MovingAverageCross{
				FastPeriod: paramInt(p, "fast_period", 10),
				SlowPeriod: paramInt(p, "slow_period", 30),
			}
		},
	},
	KindRSI: {
		specs: []ParamSpec{{"period", 14}, {"oversold", 30}, {"overbought", 70}},
		build: func(p map[string]float64) Variant {
			return &RSIReversion{
				Period:     paramInt(p, "period", 14),
				Oversold:   paramFloat(p, "oversold", 30),
				Overbought: paramFloat(p, "overbought", 70),
			}
		},
	},
	KindMACD: {
		specs: []ParamSpec{{"fast_period", 12}, {"slow_period", 26}, {"signal_period", 9}},
		build: func(p map[string]float64) Variant {
			return &MACDCross{
				FastPeriod:   paramInt(p, "fast_period", 12),
				SlowPeriod:   paramInt(p, "slow_period", 26),
				SignalPeriod: paramInt(p, "signal_period", 9),
			}
		},
	},
	KindBollinger: {
		specs: []ParamSpec{{"period", 20}, {"std_dev_k", 2}},
		build: func(p map[string]float64) Variant {
			return &BollingerReversion{
				Period:  paramInt(p, "period", 20),
				StdDevK: paramFloat(p, "std_dev_k", 2),
			}
		},
	},
	KindKDJ: {
		specs: []ParamSpec{{"k_period", 9}, {"d_period", 3}, {"oversold", 20}, {"overbought", 80}},
		build: func(p map[string]float64) Variant {
			return &KDJReversion{
				KPeriod:    paramInt(p, "k_period", 9),
				DPeriod:    paramInt(p, "d_period", 3),
				Oversold:   paramFloat(p, "oversold", 20),
				Overbought: paramFloat(p, "overbought", 80),
			}
		},
	},
	KindCCI: {
		specs: []ParamSpec{{"period", 20}, {"threshold", 100}},
		build: func(p map[string]float64) Variant {
			return &CCIReversion{
				Period:    paramInt(p, "period", 20),
				Threshold: paramFloat(p, "threshold", 100),
			}
		},
	},
	KindADX: {
		specs: []ParamSpec{{"period", 14}, {"threshold", 25}},
		build: func(p map[string]float64) Variant {
			return &ADXTrend{
				Period:    paramInt(p, "period", 14),
				Threshold: paramFloat(p, "threshold", 25),
			}
		},
	},
	KindATR: {
		specs: []ParamSpec{{"period", 14}, {"multiplier", 2}},
		build: func(p map[string]float64) Variant {
			return &ATRBreakout{
				Period:     paramInt(p, "period", 14),
				Multiplier: paramFloat(p, "multiplier", 2),
			}
		},
	},
	KindOBV: {
		specs: []ParamSpec{{"period", 20}},
		build: func(p map[string]float64) Variant {
			return &OBVCross{Period: paramInt(p, "period", 20)}
		},
	},
	KindIchimoku: {
		specs: []ParamSpec{{"conv", 9}, {"base", 26}, {"lag", 26}},
		build: func(p map[string]float64) Variant {
			return &IchimokuTrend{
				ConvPeriod: paramInt(p, "conv", 9),
				BasePeriod: paramInt(p, "base", 26),
				Lag:        paramInt(p, "lag", 26),
			}
		},
	},
	KindParabolicSAR: {
		specs: []ParamSpec{{"af_start", 0.02}, {"af_max", 0.2}},
		build: func(p map[string]float64) Variant {
			return &ParabolicSARTrend{
				AFStart: paramFloat(p, "af_start", 0.02),
				AFMax:   paramFloat(p, "af_max", 0.2),
			}
		},
	},
}

// FromParams 按名称与参数表构造变体并校验参数。
// 缺失的参数使用默认值，未知的参数名被忽略。
func FromParams(kind string, params map[string]float64) (Variant, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, &backtest.ValidationError{Field: "strategy", Reason: "未知的策略名称: " + kind}
	}

	v := factory.build(params)
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Kinds 返回目录中所有策略名称，字典序
func Kinds() []string {
	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Catalogue 返回完整的策略目录（名称 + 参数表），字典序
func Catalogue() []CatalogueEntry {
	entries := make([]CatalogueEntry, 0, len(factories))
	for _, kind := range Kinds() {
		entries = append(entries, CatalogueEntry{Kind: kind, Params: factories[kind].specs})
	}
	return entries
}

// paramInt 取整数参数，缺失用默认值，浮点值四舍五入
func paramInt(params map[string]float64, name string, def int) int {
	if v, ok := params[name]; ok {
		return int(math.Round(v))
	}
	return def
}

// paramFloat 取浮点参数，缺失用默认值
func paramFloat(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}
