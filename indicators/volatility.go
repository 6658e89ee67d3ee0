package indicators

// ========== 波动率指标 ==========

// ATR 平均真实波幅
// 真实波幅的滚动均值（窗口含当前根），预热区为 0。
type ATR struct {
	period     int
	Multiplier float64 // 突破信号的波幅倍数
}

// NewATR 创建 ATR 指标
func NewATR(period int) *ATR {
	return &ATR{
		period:     period,
		Multiplier: 2,
	}
}

// Name 指标名称
func (a *ATR) Name() string {
	return "ATR"
}

// Period 所需周期数
func (a *ATR) Period() int {
	return a.period
}

// Calculate 计算 ATR
func (a *ATR) Calculate(candles []Candle) []float64 {
	n := len(candles)
	result := make([]float64, n)
	p := a.period
	if p < 1 {
		return result
	}

	tr := TrueRangeSeries(candles)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= p {
			sum -= tr[i-p]
		}
		if i >= p-1 {
			result[i] = sum / float64(p)
		}
	}

	return result
}

// CurrentATR 获取当前 ATR 值
func (a *ATR) CurrentATR(candles []Candle) float64 {
	atr := a.Calculate(candles)
	if len(atr) == 0 {
		return 0
	}
	return atr[len(atr)-1]
}

// SignalSeries 逐K线信号
// 收盘价突破前收盘 ± Multiplier*ATR 时给出信号，ATR 预热期内不触发。
func (a *ATR) SignalSeries(candles []Candle) []int {
	atr := a.Calculate(candles)
	signals := make([]int, len(candles))

	for i := 1; i < len(candles); i++ {
		if atr[i] <= 0 {
			continue
		}
		band := a.Multiplier * atr[i]
		if candles[i].Close > candles[i-1].Close+band {
			signals[i] = 1
		} else if candles[i].Close < candles[i-1].Close-band {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (a *ATR) Signal(candles []Candle) int {
	signals := a.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// BollingerBands 布林带
// 中轨为 SMA（预热区填充输入值），上下轨在预热区为 0。
type BollingerBands struct {
	period     int
	multiplier float64
}

// NewBollingerBands 创建布林带指标
func NewBollingerBands(period int, multiplier float64) *BollingerBands {
	return &BollingerBands{
		period:     period,
		multiplier: multiplier,
	}
}

// Name 指标名称
func (bb *BollingerBands) Name() string {
	return "BollingerBands"
}

// Period 所需周期数
func (bb *BollingerBands) Period() int {
	return bb.period
}

// Calculate 计算中轨
func (bb *BollingerBands) Calculate(candles []Candle) []float64 {
	return bb.CalculateMulti(candles)["middle"]
}

// CalculateMulti 计算上轨、中轨、下轨
func (bb *BollingerBands) CalculateMulti(candles []Candle) map[string][]float64 {
	closes := ClosePrices(candles)
	n := len(closes)

	middle := SMA(closes, bb.period)
	stdDev := RollingStd(closes, bb.period)

	upper := make([]float64, n)
	lower := make([]float64, n)
	width := make([]float64, n)
	percentB := make([]float64, n)

	for i := bb.period; i < n; i++ {
		band := bb.multiplier * stdDev[i]
		upper[i] = middle[i] + band
		lower[i] = middle[i] - band
		if middle[i] != 0 {
			width[i] = (upper[i] - lower[i]) / middle[i] * 100
		}
		if upper[i] != lower[i] {
			percentB[i] = (closes[i] - lower[i]) / (upper[i] - lower[i])
		}
	}

	return map[string][]float64{
		"upper":     upper,
		"middle":    middle,
		"lower":     lower,
		"width":     width,
		"percent_b": percentB,
	}
}

// SignalSeries 逐K线信号
// 收盘价跌破下轨买入，突破上轨卖出。
func (bb *BollingerBands) SignalSeries(candles []Candle) []int {
	result := bb.CalculateMulti(candles)
	upper := result["upper"]
	lower := result["lower"]
	signals := make([]int, len(candles))

	for i := 1; i < len(candles); i++ {
		if candles[i].Close < lower[i] && candles[i-1].Close >= lower[i-1] {
			signals[i] = 1
		} else if candles[i].Close > upper[i] && candles[i-1].Close <= upper[i-1] {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (bb *BollingerBands) Signal(candles []Candle) int {
	signals := bb.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// KeltnerChannel 肯特纳通道
type KeltnerChannel struct {
	EMAPeriod  int
	ATRPeriod  int
	Multiplier float64
}

// NewKeltnerChannel 创建肯特纳通道指标
func NewKeltnerChannel(emaPeriod, atrPeriod int, multiplier float64) *KeltnerChannel {
	return &KeltnerChannel{
		EMAPeriod:  emaPeriod,
		ATRPeriod:  atrPeriod,
		Multiplier: multiplier,
	}
}

// Name 指标名称
func (kc *KeltnerChannel) Name() string {
	return "KeltnerChannel"
}

// Period 所需周期数
func (kc *KeltnerChannel) Period() int {
	if kc.EMAPeriod > kc.ATRPeriod {
		return kc.EMAPeriod
	}
	return kc.ATRPeriod
}

// Calculate 计算中轨
func (kc *KeltnerChannel) Calculate(candles []Candle) []float64 {
	return kc.CalculateMulti(candles)["middle"]
}

// CalculateMulti 计算上轨、中轨、下轨
func (kc *KeltnerChannel) CalculateMulti(candles []Candle) map[string][]float64 {
	closes := ClosePrices(candles)
	n := len(closes)

	middle := EMA(closes, kc.EMAPeriod)
	atrValues := NewATR(kc.ATRPeriod).Calculate(candles)

	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := 0; i < n; i++ {
		band := kc.Multiplier * atrValues[i]
		upper[i] = middle[i] + band
		lower[i] = middle[i] - band
	}

	return map[string][]float64{
		"upper":  upper,
		"middle": middle,
		"lower":  lower,
	}
}

// DonchianChannel 唐奇安通道
// 预热区用扩张窗口的极值。
type DonchianChannel struct {
	period int
}

// NewDonchianChannel 创建唐奇安通道指标
func NewDonchianChannel(period int) *DonchianChannel {
	return &DonchianChannel{period: period}
}

// Name 指标名称
func (dc *DonchianChannel) Name() string {
	return "DonchianChannel"
}

// Period 所需周期数
func (dc *DonchianChannel) Period() int {
	return dc.period
}

// Calculate 计算中轨
func (dc *DonchianChannel) Calculate(candles []Candle) []float64 {
	return dc.CalculateMulti(candles)["middle"]
}

// CalculateMulti 计算上轨、中轨、下轨
func (dc *DonchianChannel) CalculateMulti(candles []Candle) map[string][]float64 {
	n := len(candles)
	upper := make([]float64, n)
	lower := make([]float64, n)
	middle := make([]float64, n)

	for i := 0; i < n; i++ {
		start := i - dc.period + 1
		if start < 0 {
			start = 0
		}
		high := candles[start].High
		low := candles[start].Low
		for m := start + 1; m <= i; m++ {
			if candles[m].High > high {
				high = candles[m].High
			}
			if candles[m].Low < low {
				low = candles[m].Low
			}
		}
		upper[i] = high
		lower[i] = low
		middle[i] = (high + low) / 2
	}

	return map[string][]float64{
		"upper":  upper,
		"middle": middle,
		"lower":  lower,
	}
}

// Signal 交易信号（突破买入/卖出）
func (dc *DonchianChannel) Signal(candles []Candle) int {
	if len(candles) < 2 {
		return 0
	}

	result := dc.CalculateMulti(candles)
	upper := result["upper"]
	lower := result["lower"]
	n := len(candles) - 1

	// 新高突破
	if candles[n].High > upper[n-1] {
		return 1
	}
	// 新低突破
	if candles[n].Low < lower[n-1] {
		return -1
	}

	return 0
}

// StandardDeviation 标准差
type StandardDeviation struct {
	period int
}

// NewStandardDeviation 创建标准差指标
func NewStandardDeviation(period int) *StandardDeviation {
	return &StandardDeviation{period: period}
}

// Name 指标名称
func (sd *StandardDeviation) Name() string {
	return "StandardDeviation"
}

// Period 所需周期数
func (sd *StandardDeviation) Period() int {
	return sd.period
}

// Calculate 计算标准差
func (sd *StandardDeviation) Calculate(candles []Candle) []float64 {
	closes := ClosePrices(candles)
	return RollingStd(closes, sd.period)
}

// NATR 标准化 ATR（百分比形式）
type NATR struct {
	period int
}

// NewNATR 创建 NATR 指标
func NewNATR(period int) *NATR {
	return &NATR{period: period}
}

// Name 指标名称
func (n *NATR) Name() string {
	return "NATR"
}

// Period 所需周期数
func (n *NATR) Period() int {
	return n.period
}

// Calculate 计算 NATR
func (n *NATR) Calculate(candles []Candle) []float64 {
	atrValues := NewATR(n.period).Calculate(candles)

	result := make([]float64, len(candles))
	for i, c := range candles {
		if c.Close != 0 {
			result[i] = atrValues[i] / c.Close * 100
		}
	}

	return result
}

// 注册波动率指标
func init() {
	RegisterIndicator("ATR", func(params map[string]interface{}) Indicator {
		a := NewATR(getIntParam(params, "period", 14))
		a.Multiplier = getFloatParam(params, "multiplier", 2)
		return a
	})

	RegisterIndicator("BollingerBands", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 20)
		multiplier := getFloatParam(params, "multiplier", 2.0)
		return NewBollingerBands(period, multiplier)
	})

	RegisterIndicator("KeltnerChannel", func(params map[string]interface{}) Indicator {
		emaPeriod := getIntParam(params, "ema_period", 20)
		atrPeriod := getIntParam(params, "atr_period", 10)
		multiplier := getFloatParam(params, "multiplier", 2.0)
		return NewKeltnerChannel(emaPeriod, atrPeriod, multiplier)
	})

	RegisterIndicator("DonchianChannel", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 20)
		return NewDonchianChannel(period)
	})

	RegisterIndicator("StandardDeviation", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 20)
		return NewStandardDeviation(period)
	})

	RegisterIndicator("NATR", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 14)
		return NewNATR(period)
	})
}
