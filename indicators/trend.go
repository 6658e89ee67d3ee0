package indicators

import (
	"math"
)

// ========== 趋势指标 ==========

// MovingAverage 移动平均线指标
// Kind 取值 SMA/EMA/WMA/VWMA。
type MovingAverage struct {
	Kind   string
	period int
}

// NewMovingAverage 创建移动平均线指标
func NewMovingAverage(kind string, period int) *MovingAverage {
	return &MovingAverage{
		Kind:   kind,
		period: period,
	}
}

// NewSMA 创建简单移动平均线
func NewSMA(period int) *MovingAverage {
	return NewMovingAverage("SMA", period)
}

// NewEMA 创建指数移动平均线
func NewEMA(period int) *MovingAverage {
	return NewMovingAverage("EMA", period)
}

// NewWMA 创建加权移动平均线
func NewWMA(period int) *MovingAverage {
	return NewMovingAverage("WMA", period)
}

// NewVWMA 创建成交量加权移动平均线
func NewVWMA(period int) *MovingAverage {
	return NewMovingAverage("VWMA", period)
}

// Name 指标名称
func (ma *MovingAverage) Name() string {
	return ma.Kind
}

// Period 所需周期数
func (ma *MovingAverage) Period() int {
	return ma.period
}

// Calculate 计算移动平均线
func (ma *MovingAverage) Calculate(candles []Candle) []float64 {
	closes := ClosePrices(candles)
	switch ma.Kind {
	case "EMA":
		return EMA(closes, ma.period)
	case "WMA":
		return WMA(closes, ma.period)
	case "VWMA":
		return VWMA(closes, Volumes(candles), ma.period)
	default:
		return SMA(closes, ma.period)
	}
}

// MACD 指数平滑异同移动平均线
type MACD struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// NewMACD 创建 MACD 指标
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		FastPeriod:   fast,
		SlowPeriod:   slow,
		SignalPeriod: signal,
	}
}

// Name 指标名称
func (m *MACD) Name() string {
	return "MACD"
}

// Period 所需周期数
func (m *MACD) Period() int {
	return m.SlowPeriod + m.SignalPeriod
}

// Calculate 计算 MACD 线
func (m *MACD) Calculate(candles []Candle) []float64 {
	return m.CalculateMulti(candles)["macd"]
}

// CalculateMulti 计算所有 MACD 组件
func (m *MACD) CalculateMulti(candles []Candle) map[string][]float64 {
	closes := ClosePrices(candles)

	fastEMA := EMA(closes, m.FastPeriod)
	slowEMA := EMA(closes, m.SlowPeriod)

	macdLine := make([]float64, len(closes))
	for i := range macdLine {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := EMA(macdLine, m.SignalPeriod)

	histogram := make([]float64, len(closes))
	for i := range histogram {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return map[string][]float64{
		"macd":      macdLine,
		"signal":    signalLine,
		"histogram": histogram,
	}
}

// SignalSeries 逐K线信号
// MACD 线上穿信号线买入，下穿卖出。
func (m *MACD) SignalSeries(candles []Candle) []int {
	result := m.CalculateMulti(candles)
	macd := result["macd"]
	signal := result["signal"]
	signals := make([]int, len(candles))

	for i := 1; i < len(candles); i++ {
		if CrossOverAt(macd, signal, i) {
			signals[i] = 1
		} else if CrossUnderAt(macd, signal, i) {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (m *MACD) Signal(candles []Candle) int {
	signals := m.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// ADX 平均趋向指数
// +DM/-DM 按 Wilder 规则，先用滚动均值平滑得到 DI 与 DX，
// 再对 DX 做 Wilder 递推得到 ADX，预热区为 0。
type ADX struct {
	period    int
	Threshold float64 // 趋势强度阈值
}

// NewADX 创建 ADX 指标
func NewADX(period int) *ADX {
	return &ADX{
		period:    period,
		Threshold: 25,
	}
}

// Name 指标名称
func (a *ADX) Name() string {
	return "ADX"
}

// Period 所需周期数
func (a *ADX) Period() int {
	return a.period*2 - 1
}

// Calculate 计算 ADX
func (a *ADX) Calculate(candles []Candle) []float64 {
	return a.CalculateMulti(candles)["adx"]
}

// CalculateMulti 计算 ADX 及 +DI/-DI
func (a *ADX) CalculateMulti(candles []Candle) map[string][]float64 {
	n := len(candles)
	adx := make([]float64, n)
	plusDI := make([]float64, n)
	minusDI := make([]float64, n)

	p := a.period
	if n == 0 || p < 1 {
		return map[string][]float64{"adx": adx, "plus_di": plusDI, "minus_di": minusDI}
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := TrueRangeSeries(candles)
	for i := 1; i < n; i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// 滚动均值平滑（窗口含当前根）计算 DI 和 DX
	dx := make([]float64, n)
	for i := p - 1; i < n; i++ {
		sumPlus, sumMinus, sumTR := 0.0, 0.0, 0.0
		for m := i - p + 1; m <= i; m++ {
			sumPlus += plusDM[m]
			sumMinus += minusDM[m]
			sumTR += tr[m]
		}

		if sumTR > 0 {
			plusDI[i] = 100 * sumPlus / sumTR
			minusDI[i] = 100 * sumMinus / sumTR
		}
		diSum := plusDI[i] + minusDI[i]
		if diSum > 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
		}
	}

	// ADX：Wilder 递推，种子为前 p 个 DX 的均值
	start := 2*p - 2
	if start < n {
		seed := 0.0
		for m := p - 1; m <= start; m++ {
			seed += dx[m]
		}
		adx[start] = seed / float64(p)
		for i := start + 1; i < n; i++ {
			adx[i] = (adx[i-1]*float64(p-1) + dx[i]) / float64(p)
		}
	}

	return map[string][]float64{
		"adx":      adx,
		"plus_di":  plusDI,
		"minus_di": minusDI,
	}
}

// SignalSeries 逐K线信号
// ADX 高于阈值时按 DI 方向给出信号。
func (a *ADX) SignalSeries(candles []Candle) []int {
	result := a.CalculateMulti(candles)
	adx := result["adx"]
	plusDI := result["plus_di"]
	minusDI := result["minus_di"]
	signals := make([]int, len(candles))

	for i := range signals {
		if adx[i] > a.Threshold {
			if plusDI[i] > minusDI[i] {
				signals[i] = 1
			} else if plusDI[i] < minusDI[i] {
				signals[i] = -1
			}
		}
	}

	return signals
}

// Signal 交易信号
func (a *ADX) Signal(candles []Candle) int {
	signals := a.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// Ichimoku 一目均衡表
// 先行带 B 的窗口为 2*Lag，迟行带为收盘价前移 Lag。
type Ichimoku struct {
	ConvPeriod int // 转换线周期
	BasePeriod int // 基准线周期
	Lag        int // 位移
}

// NewIchimoku 创建一目均衡表指标
func NewIchimoku(conv, base, lag int) *Ichimoku {
	return &Ichimoku{
		ConvPeriod: conv,
		BasePeriod: base,
		Lag:        lag,
	}
}

// Name 指标名称
func (ich *Ichimoku) Name() string {
	return "Ichimoku"
}

// Period 所需周期数
func (ich *Ichimoku) Period() int {
	return ich.Lag * 2
}

// Calculate 计算转换线
func (ich *Ichimoku) Calculate(candles []Candle) []float64 {
	return ich.CalculateMulti(candles)["tenkan"]
}

// CalculateMulti 计算所有组件
func (ich *Ichimoku) CalculateMulti(candles []Candle) map[string][]float64 {
	n := len(candles)

	tenkan := ich.middleLine(candles, ich.ConvPeriod)
	kijun := ich.middleLine(candles, ich.BasePeriod)

	senkouA := make([]float64, n)
	for i := range senkouA {
		senkouA[i] = (tenkan[i] + kijun[i]) / 2
	}

	senkouB := ich.middleLine(candles, ich.Lag*2)

	// 迟行带：收盘价前移 Lag，末端用当前收盘价填充
	chikou := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+ich.Lag < n {
			chikou[i] = candles[i+ich.Lag].Close
		} else {
			chikou[i] = candles[i].Close
		}
	}

	return map[string][]float64{
		"tenkan":   tenkan,
		"kijun":    kijun,
		"senkou_a": senkouA,
		"senkou_b": senkouB,
		"chikou":   chikou,
	}
}

// middleLine 计算中线 (最高 + 最低) / 2
// 窗口含当前根，窗口不足时用当前根的 (H+L)/2 填充。
func (ich *Ichimoku) middleLine(candles []Candle, period int) []float64 {
	result := make([]float64, len(candles))
	for i := range candles {
		if period < 1 || i < period-1 {
			result[i] = (candles[i].High + candles[i].Low) / 2
			continue
		}

		high := candles[i-period+1].High
		low := candles[i-period+1].Low
		for m := i - period + 2; m <= i; m++ {
			if candles[m].High > high {
				high = candles[m].High
			}
			if candles[m].Low < low {
				low = candles[m].Low
			}
		}
		result[i] = (high + low) / 2
	}

	return result
}

// SignalSeries 逐K线信号
// 转换线在基准线上方且价格站上云层买入，全部反向则卖出，
// 云层各分量的窗口都填满后才给信号。
func (ich *Ichimoku) SignalSeries(candles []Candle) []int {
	result := ich.CalculateMulti(candles)
	tenkan := result["tenkan"]
	kijun := result["kijun"]
	senkouA := result["senkou_a"]
	senkouB := result["senkou_b"]
	signals := make([]int, len(candles))

	start := ich.Lag*2 - 1
	if ich.BasePeriod > start {
		start = ich.BasePeriod
	}
	if start < 1 {
		start = 1
	}
	for i := start; i < len(candles); i++ {
		close := candles[i].Close
		if tenkan[i] > kijun[i] && close > senkouA[i] && close > senkouB[i] {
			signals[i] = 1
		} else if tenkan[i] < kijun[i] && close < senkouA[i] && close < senkouB[i] {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (ich *Ichimoku) Signal(candles []Candle) int {
	signals := ich.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// ParabolicSAR 抛物线转向指标
// 加速因子从 AFStart 起步，每创新极值加一个 AFStart，上限 AFMax。
type ParabolicSAR struct {
	AFStart float64 // 加速因子起始值
	AFMax   float64 // 加速因子最大值
}

// NewParabolicSAR 创建 Parabolic SAR 指标
func NewParabolicSAR(afStart, afMax float64) *ParabolicSAR {
	return &ParabolicSAR{
		AFStart: afStart,
		AFMax:   afMax,
	}
}

// Name 指标名称
func (p *ParabolicSAR) Name() string {
	return "ParabolicSAR"
}

// Period 所需周期数
func (p *ParabolicSAR) Period() int {
	return 2
}

// Calculate 计算 Parabolic SAR
func (p *ParabolicSAR) Calculate(candles []Candle) []float64 {
	n := len(candles)
	sar := make([]float64, n)
	if n == 0 {
		return sar
	}

	sar[0] = candles[0].Low
	trend := 1
	ep := candles[0].High
	af := p.AFStart

	for i := 1; i < n; i++ {
		sar[i] = sar[i-1] + af*(ep-sar[i-1])

		if trend == 1 {
			if candles[i].Low <= sar[i] {
				// 转为下跌趋势
				trend = -1
				sar[i] = ep
				ep = candles[i].Low
				af = p.AFStart
			} else if candles[i].High > ep {
				ep = candles[i].High
				af = math.Min(af+p.AFStart, p.AFMax)
			}
		} else {
			if candles[i].High >= sar[i] {
				// 转为上涨趋势
				trend = 1
				sar[i] = ep
				ep = candles[i].High
				af = p.AFStart
			} else if candles[i].Low < ep {
				ep = candles[i].Low
				af = math.Min(af+p.AFStart, p.AFMax)
			}
		}
	}

	return sar
}

// SignalSeries 逐K线信号
// 收盘价上穿 SAR 买入，下穿卖出。
func (p *ParabolicSAR) SignalSeries(candles []Candle) []int {
	sar := p.Calculate(candles)
	signals := make([]int, len(candles))

	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close < sar[i-1] && candles[i].Close > sar[i] {
			signals[i] = 1
		} else if candles[i-1].Close > sar[i-1] && candles[i].Close < sar[i] {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (p *ParabolicSAR) Signal(candles []Candle) int {
	signals := p.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// Aroon 阿隆指标
// 预热区为 0。
type Aroon struct {
	period int
}

// NewAroon 创建阿隆指标
func NewAroon(period int) *Aroon {
	return &Aroon{period: period}
}

// Name 指标名称
func (a *Aroon) Name() string {
	return "Aroon"
}

// Period 所需周期数
func (a *Aroon) Period() int {
	return a.period + 1
}

// Calculate 计算 Aroon 振荡器
func (a *Aroon) Calculate(candles []Candle) []float64 {
	return a.CalculateMulti(candles)["oscillator"]
}

// CalculateMulti 计算 Aroon Up, Down 和振荡器
func (a *Aroon) CalculateMulti(candles []Candle) map[string][]float64 {
	n := len(candles)
	aroonUp := make([]float64, n)
	aroonDown := make([]float64, n)
	oscillator := make([]float64, n)

	p := a.period
	if p < 1 {
		return map[string][]float64{"aroon_up": aroonUp, "aroon_down": aroonDown, "oscillator": oscillator}
	}

	for i := p; i < n; i++ {
		highIdx := 0
		lowIdx := 0
		high := candles[i-p].High
		low := candles[i-p].Low

		for m := 1; m <= p; m++ {
			idx := i - p + m
			if candles[idx].High >= high {
				high = candles[idx].High
				highIdx = m
			}
			if candles[idx].Low <= low {
				low = candles[idx].Low
				lowIdx = m
			}
		}

		aroonUp[i] = float64(highIdx) / float64(p) * 100
		aroonDown[i] = float64(lowIdx) / float64(p) * 100
		oscillator[i] = aroonUp[i] - aroonDown[i]
	}

	return map[string][]float64{
		"aroon_up":   aroonUp,
		"aroon_down": aroonDown,
		"oscillator": oscillator,
	}
}

// Signal 交易信号
func (a *Aroon) Signal(candles []Candle) int {
	result := a.CalculateMulti(candles)
	up := result["aroon_up"]
	down := result["aroon_down"]
	if len(up) == 0 {
		return 0
	}

	n := len(up) - 1
	// Aroon Up > 70 且 Aroon Down < 30
	if up[n] > 70 && down[n] < 30 {
		return 1
	}
	// Aroon Down > 70 且 Aroon Up < 30
	if down[n] > 70 && up[n] < 30 {
		return -1
	}

	return 0
}

// SuperTrend 超级趋势指标
type SuperTrend struct {
	period     int
	multiplier float64
}

// NewSuperTrend 创建超级趋势指标
func NewSuperTrend(period int, multiplier float64) *SuperTrend {
	return &SuperTrend{
		period:     period,
		multiplier: multiplier,
	}
}

// Name 指标名称
func (st *SuperTrend) Name() string {
	return "SuperTrend"
}

// Period 所需周期数
func (st *SuperTrend) Period() int {
	return st.period + 1
}

// Calculate 计算 SuperTrend
func (st *SuperTrend) Calculate(candles []Candle) []float64 {
	return st.CalculateMulti(candles)["supertrend"]
}

// CalculateMulti 计算 SuperTrend 及趋势方向
func (st *SuperTrend) CalculateMulti(candles []Candle) map[string][]float64 {
	n := len(candles)
	upperBand := make([]float64, n)
	lowerBand := make([]float64, n)
	supertrend := make([]float64, n)
	direction := make([]float64, n) // 1=上涨，-1=下跌

	if n == 0 {
		return map[string][]float64{
			"supertrend": supertrend,
			"direction":  direction,
			"upper_band": upperBand,
			"lower_band": lowerBand,
		}
	}

	atrValues := NewATR(st.period).Calculate(candles)
	hl2 := HL2(candles)

	for i := 0; i < n; i++ {
		basicUpper := hl2[i] + st.multiplier*atrValues[i]
		basicLower := hl2[i] - st.multiplier*atrValues[i]

		if i == 0 {
			upperBand[i] = basicUpper
			lowerBand[i] = basicLower
			direction[i] = 1
			supertrend[i] = lowerBand[i]
			continue
		}

		// 上轨
		if basicUpper < upperBand[i-1] || candles[i-1].Close > upperBand[i-1] {
			upperBand[i] = basicUpper
		} else {
			upperBand[i] = upperBand[i-1]
		}

		// 下轨
		if basicLower > lowerBand[i-1] || candles[i-1].Close < lowerBand[i-1] {
			lowerBand[i] = basicLower
		} else {
			lowerBand[i] = lowerBand[i-1]
		}

		// 趋势方向
		if direction[i-1] == 1 {
			if candles[i].Close < lowerBand[i] {
				direction[i] = -1
			} else {
				direction[i] = 1
			}
		} else {
			if candles[i].Close > upperBand[i] {
				direction[i] = 1
			} else {
				direction[i] = -1
			}
		}

		if direction[i] == 1 {
			supertrend[i] = lowerBand[i]
		} else {
			supertrend[i] = upperBand[i]
		}
	}

	return map[string][]float64{
		"supertrend": supertrend,
		"direction":  direction,
		"upper_band": upperBand,
		"lower_band": lowerBand,
	}
}

// Signal 交易信号
func (st *SuperTrend) Signal(candles []Candle) int {
	direction := st.CalculateMulti(candles)["direction"]
	if len(direction) < 2 {
		return 0
	}

	n := len(direction) - 1
	if direction[n-1] == -1 && direction[n] == 1 {
		return 1 // 转为上涨
	}
	if direction[n-1] == 1 && direction[n] == -1 {
		return -1 // 转为下跌
	}

	return 0
}

// 注册趋势指标
func init() {
	RegisterIndicator("SMA", func(params map[string]interface{}) Indicator {
		return NewSMA(getIntParam(params, "period", 20))
	})

	RegisterIndicator("EMA", func(params map[string]interface{}) Indicator {
		return NewEMA(getIntParam(params, "period", 20))
	})

	RegisterIndicator("WMA", func(params map[string]interface{}) Indicator {
		return NewWMA(getIntParam(params, "period", 20))
	})

	RegisterIndicator("VWMA", func(params map[string]interface{}) Indicator {
		return NewVWMA(getIntParam(params, "period", 20))
	})

	RegisterIndicator("MACD", func(params map[string]interface{}) Indicator {
		fast := getIntParam(params, "fast", 12)
		slow := getIntParam(params, "slow", 26)
		signal := getIntParam(params, "signal", 9)
		return NewMACD(fast, slow, signal)
	})

	RegisterIndicator("ADX", func(params map[string]interface{}) Indicator {
		a := NewADX(getIntParam(params, "period", 14))
		a.Threshold = getFloatParam(params, "threshold", 25)
		return a
	})

	RegisterIndicator("Ichimoku", func(params map[string]interface{}) Indicator {
		conv := getIntParam(params, "conv", 9)
		base := getIntParam(params, "base", 26)
		lag := getIntParam(params, "lag", 26)
		return NewIchimoku(conv, base, lag)
	})

	RegisterIndicator("ParabolicSAR", func(params map[string]interface{}) Indicator {
		afStart := getFloatParam(params, "af_start", 0.02)
		afMax := getFloatParam(params, "af_max", 0.2)
		return NewParabolicSAR(afStart, afMax)
	})

	RegisterIndicator("Aroon", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 25)
		return NewAroon(period)
	})

	RegisterIndicator("SuperTrend", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 10)
		multiplier := getFloatParam(params, "multiplier", 3.0)
		return NewSuperTrend(period, multiplier)
	})
}

// 辅助函数
func getIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case float64:
			return int(val)
		}
	}
	return defaultVal
}

func getFloatParam(params map[string]interface{}, key string, defaultVal float64) float64 {
	if v, ok := params[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		}
	}
	return defaultVal
}
