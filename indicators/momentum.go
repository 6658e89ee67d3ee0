package indicators

import (
	"math"
)

// ========== 动量指标 ==========

// RSI 相对强弱指数
// Wilder 平滑，预热区填充中性值 50。
type RSI struct {
	period     int
	Oversold   float64 // 超卖阈值
	Overbought float64 // 超买阈值
}

// NewRSI 创建 RSI 指标
func NewRSI(period int) *RSI {
	return &RSI{
		period:     period,
		Oversold:   30,
		Overbought: 70,
	}
}

// Name 指标名称
func (r *RSI) Name() string {
	return "RSI"
}

// Period 所需周期数
func (r *RSI) Period() int {
	return r.period + 1
}

// Calculate 计算 RSI
func (r *RSI) Calculate(candles []Candle) []float64 {
	n := len(candles)
	result := make([]float64, n)
	p := r.period
	if p < 1 || n == 0 {
		return result
	}

	for i := 0; i < n && i < p; i++ {
		result[i] = 50
	}
	if n <= p {
		return result
	}

	closes := ClosePrices(candles)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// 种子：前 p 个涨跌幅的算术平均
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= p; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	result[p] = 100 - 100/(1+avgGain/(avgLoss+epsilon))

	// Wilder 递推
	for i := p + 1; i < n; i++ {
		avgGain = (avgGain*float64(p-1) + gains[i]) / float64(p)
		avgLoss = (avgLoss*float64(p-1) + losses[i]) / float64(p)
		result[i] = 100 - 100/(1+avgGain/(avgLoss+epsilon))
	}

	return result
}

// SignalSeries 逐K线信号
// 下穿超卖阈值买入，上穿超买阈值卖出，比较的两个读数都须出自预热区之后。
func (r *RSI) SignalSeries(candles []Candle) []int {
	rsi := r.Calculate(candles)
	signals := make([]int, len(candles))

	start := r.period + 1
	if start < 1 {
		start = 1
	}
	for i := start; i < len(rsi); i++ {
		if rsi[i-1] > r.Oversold && rsi[i] <= r.Oversold {
			signals[i] = 1
		} else if rsi[i-1] < r.Overbought && rsi[i] >= r.Overbought {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (r *RSI) Signal(candles []Candle) int {
	signals := r.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// KDJ 随机指标
// K、D、J 三线，预热区为中性值 50。
type KDJ struct {
	KPeriod    int
	DPeriod    int
	Oversold   float64 // 超卖阈值
	Overbought float64 // 超买阈值
}

// NewKDJ 创建 KDJ 指标
func NewKDJ(kPeriod, dPeriod int) *KDJ {
	return &KDJ{
		KPeriod:    kPeriod,
		DPeriod:    dPeriod,
		Oversold:   20,
		Overbought: 80,
	}
}

// Name 指标名称
func (kdj *KDJ) Name() string {
	return "KDJ"
}

// Period 所需周期数
func (kdj *KDJ) Period() int {
	return kdj.KPeriod + kdj.DPeriod
}

// Calculate 计算 K 线
func (kdj *KDJ) Calculate(candles []Candle) []float64 {
	return kdj.CalculateMulti(candles)["k"]
}

// CalculateMulti 计算 K、D、J
// RSV = (C - LLV) / (HHV - LLV) * 100
// K = (RSV + (k_p-1)*K_prev) / k_p，种子 50
// D = K 的滚动均值，J = 3K - 2D
func (kdj *KDJ) CalculateMulti(candles []Candle) map[string][]float64 {
	n := len(candles)
	k := make([]float64, n)
	d := make([]float64, n)
	j := make([]float64, n)

	kp := kdj.KPeriod
	if n == 0 || kp < 1 {
		return map[string][]float64{"k": k, "d": d, "j": j}
	}

	for i := 0; i < n; i++ {
		if i < kp-1 {
			k[i] = 50
			continue
		}

		hh := candles[i-kp+1].High
		ll := candles[i-kp+1].Low
		for m := i - kp + 2; m <= i; m++ {
			if candles[m].High > hh {
				hh = candles[m].High
			}
			if candles[m].Low < ll {
				ll = candles[m].Low
			}
		}

		rsv := (candles[i].Close - ll) / (hh - ll + epsilon) * 100
		prev := 50.0
		if i > 0 {
			prev = k[i-1]
		}
		k[i] = (rsv + float64(kp-1)*prev) / float64(kp)
	}

	// D：K 的滚动均值（窗口含当前根，起始阶段为扩张窗口）
	dp := kdj.DPeriod
	if dp < 1 {
		dp = 1
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += k[i]
		if i >= dp {
			sum -= k[i-dp]
		}
		width := dp
		if i+1 < dp {
			width = i + 1
		}
		d[i] = sum / float64(width)
	}

	for i := 0; i < n; i++ {
		j[i] = 3*k[i] - 2*d[i]
	}

	return map[string][]float64{"k": k, "d": d, "j": j}
}

// SignalSeries 逐K线信号
// 超卖区金叉买入，超买区死叉卖出。
func (kdj *KDJ) SignalSeries(candles []Candle) []int {
	result := kdj.CalculateMulti(candles)
	k := result["k"]
	d := result["d"]
	signals := make([]int, len(candles))

	for i := 1; i < len(candles); i++ {
		if CrossOverAt(k, d, i) && k[i] < kdj.Oversold {
			signals[i] = 1
		} else if CrossUnderAt(k, d, i) && k[i] > kdj.Overbought {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (kdj *KDJ) Signal(candles []Candle) int {
	signals := kdj.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// CCI 商品通道指数
// 预热区为 0。
type CCI struct {
	period    int
	Threshold float64 // 超买超卖阈值（对称）
}

// NewCCI 创建 CCI 指标
func NewCCI(period int) *CCI {
	return &CCI{
		period:    period,
		Threshold: 100,
	}
}

// Name 指标名称
func (c *CCI) Name() string {
	return "CCI"
}

// Period 所需周期数
func (c *CCI) Period() int {
	return c.period
}

// Calculate 计算 CCI
// CCI = (TP - SMA(TP)) / (0.015 * MAD(TP))，窗口含当前根。
func (c *CCI) Calculate(candles []Candle) []float64 {
	n := len(candles)
	result := make([]float64, n)
	p := c.period
	if p < 1 {
		return result
	}

	tp := TypicalPrice(candles)
	for i := p - 1; i < n; i++ {
		mean := 0.0
		for m := i - p + 1; m <= i; m++ {
			mean += tp[m]
		}
		mean /= float64(p)

		mad := 0.0
		for m := i - p + 1; m <= i; m++ {
			mad += math.Abs(tp[m] - mean)
		}
		mad /= float64(p)

		if mad > 0 {
			result[i] = (tp[i] - mean) / (0.015 * mad)
		}
	}

	return result
}

// SignalSeries 逐K线信号
// 下穿 -阈值买入，上穿 +阈值卖出，比较的两个读数都须出自预热区之后。
func (c *CCI) SignalSeries(candles []Candle) []int {
	cci := c.Calculate(candles)
	signals := make([]int, len(candles))

	start := c.period
	if start < 1 {
		start = 1
	}
	for i := start; i < len(cci); i++ {
		if cci[i-1] > -c.Threshold && cci[i] <= -c.Threshold {
			signals[i] = 1
		} else if cci[i-1] < c.Threshold && cci[i] >= c.Threshold {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (c *CCI) Signal(candles []Candle) int {
	signals := c.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// WilliamsR 威廉指标
// 预热区填充中性值 -50。
type WilliamsR struct {
	period int
}

// NewWilliamsR 创建威廉指标
func NewWilliamsR(period int) *WilliamsR {
	return &WilliamsR{period: period}
}

// Name 指标名称
func (w *WilliamsR) Name() string {
	return "WilliamsR"
}

// Period 所需周期数
func (w *WilliamsR) Period() int {
	return w.period
}

// Calculate 计算威廉指标
func (w *WilliamsR) Calculate(candles []Candle) []float64 {
	n := len(candles)
	result := make([]float64, n)
	p := w.period
	if p < 1 {
		return result
	}

	for i := 0; i < n; i++ {
		if i < p-1 {
			result[i] = -50
			continue
		}

		high := candles[i-p+1].High
		low := candles[i-p+1].Low
		for m := i - p + 2; m <= i; m++ {
			if candles[m].High > high {
				high = candles[m].High
			}
			if candles[m].Low < low {
				low = candles[m].Low
			}
		}

		if high > low {
			result[i] = (high - candles[i].Close) / (high - low) * -100
		} else {
			result[i] = -50
		}
	}

	return result
}

// Signal 交易信号
func (w *WilliamsR) Signal(candles []Candle) int {
	wr := w.Calculate(candles)
	if len(wr) == 0 {
		return 0
	}

	current := wr[len(wr)-1]

	// %R < -80: 超卖
	if current < -80 {
		return 1
	}
	// %R > -20: 超买
	if current > -20 {
		return -1
	}

	return 0
}

// ROC 变化率
type ROC struct {
	period int
}

// NewROC 创建 ROC 指标
func NewROC(period int) *ROC {
	return &ROC{period: period}
}

// Name 指标名称
func (r *ROC) Name() string {
	return "ROC"
}

// Period 所需周期数
func (r *ROC) Period() int {
	return r.period + 1
}

// Calculate 计算 ROC
func (r *ROC) Calculate(candles []Candle) []float64 {
	closes := ClosePrices(candles)
	return RateOfChange(closes, r.period)
}

// 注册动量指标
func init() {
	RegisterIndicator("RSI", func(params map[string]interface{}) Indicator {
		r := NewRSI(getIntParam(params, "period", 14))
		r.Oversold = getFloatParam(params, "oversold", 30)
		r.Overbought = getFloatParam(params, "overbought", 70)
		return r
	})

	RegisterIndicator("KDJ", func(params map[string]interface{}) Indicator {
		kdj := NewKDJ(
			getIntParam(params, "k_period", 9),
			getIntParam(params, "d_period", 3),
		)
		kdj.Oversold = getFloatParam(params, "oversold", 20)
		kdj.Overbought = getFloatParam(params, "overbought", 80)
		return kdj
	})

	RegisterIndicator("CCI", func(params map[string]interface{}) Indicator {
		c := NewCCI(getIntParam(params, "period", 20))
		c.Threshold = getFloatParam(params, "threshold", 100)
		return c
	})

	RegisterIndicator("WilliamsR", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 14)
		return NewWilliamsR(period)
	})

	RegisterIndicator("ROC", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 12)
		return NewROC(period)
	})
}
