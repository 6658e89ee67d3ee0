package indicators

// ========== 成交量指标 ==========

// OBV 能量潮
// 以首根成交量为种子的累积量，信号用 OBV 与其均线的交叉。
type OBV struct {
	SignalPeriod int // 信号均线周期
}

// NewOBV 创建 OBV 指标
func NewOBV(signalPeriod int) *OBV {
	return &OBV{SignalPeriod: signalPeriod}
}

// Name 指标名称
func (o *OBV) Name() string {
	return "OBV"
}

// Period 所需周期数
func (o *OBV) Period() int {
	return o.SignalPeriod
}

// Calculate 计算 OBV
func (o *OBV) Calculate(candles []Candle) []float64 {
	n := len(candles)
	result := make([]float64, n)
	if n == 0 {
		return result
	}

	result[0] = candles[0].Volume
	for i := 1; i < n; i++ {
		if candles[i].Close > candles[i-1].Close {
			result[i] = result[i-1] + candles[i].Volume
		} else if candles[i].Close < candles[i-1].Close {
			result[i] = result[i-1] - candles[i].Volume
		} else {
			result[i] = result[i-1]
		}
	}

	return result
}

// SignalSeries 逐K线信号
// OBV 上穿其均线买入，下穿卖出，均线窗口填满后才比较。
func (o *OBV) SignalSeries(candles []Candle) []int {
	obv := o.Calculate(candles)
	obvMA := SMA(obv, o.SignalPeriod)
	signals := make([]int, len(candles))

	start := o.SignalPeriod
	if start < 1 {
		start = 1
	}
	for i := start; i < len(candles); i++ {
		if CrossOverAt(obv, obvMA, i) {
			signals[i] = 1
		} else if CrossUnderAt(obv, obvMA, i) {
			signals[i] = -1
		}
	}

	return signals
}

// Signal 交易信号
func (o *OBV) Signal(candles []Candle) int {
	signals := o.SignalSeries(candles)
	if len(signals) == 0 {
		return 0
	}
	return signals[len(signals)-1]
}

// VWAP 成交量加权平均价格
type VWAP struct{}

// NewVWAP 创建 VWAP 指标
func NewVWAP() *VWAP {
	return &VWAP{}
}

// Name 指标名称
func (v *VWAP) Name() string {
	return "VWAP"
}

// Period 所需周期数
func (v *VWAP) Period() int {
	return 1
}

// Calculate 计算 VWAP（从序列起点累积）
func (v *VWAP) Calculate(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	cumVolume := 0.0
	cumVolumePrice := 0.0

	for i, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		cumVolume += c.Volume
		cumVolumePrice += tp * c.Volume

		if cumVolume != 0 {
			result[i] = cumVolumePrice / cumVolume
		} else {
			result[i] = tp
		}
	}

	return result
}

// Signal 交易信号
func (v *VWAP) Signal(candles []Candle) int {
	vwap := v.Calculate(candles)
	if len(vwap) == 0 {
		return 0
	}

	n := len(vwap) - 1
	close := candles[n].Close

	// 价格在 VWAP 上方：看涨
	if close > vwap[n] {
		return 1
	}
	// 价格在 VWAP 下方：看跌
	if close < vwap[n] {
		return -1
	}

	return 0
}

// CMF Chaikin 资金流量
// 预热区为 0。
type CMF struct {
	period int
}

// NewCMF 创建 CMF 指标
func NewCMF(period int) *CMF {
	return &CMF{period: period}
}

// Name 指标名称
func (c *CMF) Name() string {
	return "CMF"
}

// Period 所需周期数
func (c *CMF) Period() int {
	return c.period
}

// Calculate 计算 CMF
func (c *CMF) Calculate(candles []Candle) []float64 {
	n := len(candles)
	result := make([]float64, n)
	p := c.period
	if p < 1 {
		return result
	}

	mfv := make([]float64, n)
	for i, candle := range candles {
		hlRange := candle.High - candle.Low
		if hlRange != 0 {
			mfm := ((candle.Close - candle.Low) - (candle.High - candle.Close)) / hlRange
			mfv[i] = mfm * candle.Volume
		}
	}

	for i := p - 1; i < n; i++ {
		sumMFV := 0.0
		sumVolume := 0.0
		for m := i - p + 1; m <= i; m++ {
			sumMFV += mfv[m]
			sumVolume += candles[m].Volume
		}
		if sumVolume != 0 {
			result[i] = sumMFV / sumVolume
		}
	}

	return result
}

// Signal 交易信号
func (c *CMF) Signal(candles []Candle) int {
	cmf := c.Calculate(candles)
	if len(cmf) == 0 {
		return 0
	}

	current := cmf[len(cmf)-1]

	// CMF > 0.05: 资金流入
	if current > 0.05 {
		return 1
	}
	// CMF < -0.05: 资金流出
	if current < -0.05 {
		return -1
	}

	return 0
}

// ADL 累积派发线
type ADL struct{}

// NewADL 创建 ADL 指标
func NewADL() *ADL {
	return &ADL{}
}

// Name 指标名称
func (a *ADL) Name() string {
	return "ADL"
}

// Period 所需周期数
func (a *ADL) Period() int {
	return 1
}

// Calculate 计算 ADL
func (a *ADL) Calculate(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	adl := 0.0

	for i, c := range candles {
		hlRange := c.High - c.Low
		if hlRange != 0 {
			mfm := ((c.Close - c.Low) - (c.High - c.Close)) / hlRange
			adl += mfm * c.Volume
		}
		result[i] = adl
	}

	return result
}

// ForceIndex 力度指数
type ForceIndex struct {
	period int
}

// NewForceIndex 创建力度指数
func NewForceIndex(period int) *ForceIndex {
	return &ForceIndex{period: period}
}

// Name 指标名称
func (fi *ForceIndex) Name() string {
	return "ForceIndex"
}

// Period 所需周期数
func (fi *ForceIndex) Period() int {
	return fi.period + 1
}

// Calculate 计算力度指数
func (fi *ForceIndex) Calculate(candles []Candle) []float64 {
	n := len(candles)
	raw := make([]float64, n)
	for i := 1; i < n; i++ {
		raw[i] = (candles[i].Close - candles[i-1].Close) * candles[i].Volume
	}

	return EMA(raw, fi.period)
}

// Signal 交易信号
func (fi *ForceIndex) Signal(candles []Candle) int {
	values := fi.Calculate(candles)
	if len(values) < 2 {
		return 0
	}

	n := len(values) - 1
	// 从负转正
	if values[n-1] < 0 && values[n] > 0 {
		return 1
	}
	// 从正转负
	if values[n-1] > 0 && values[n] < 0 {
		return -1
	}

	return 0
}

// VolumeRateOfChange 成交量变化率
type VolumeRateOfChange struct {
	period int
}

// NewVolumeRateOfChange 创建成交量变化率指标
func NewVolumeRateOfChange(period int) *VolumeRateOfChange {
	return &VolumeRateOfChange{period: period}
}

// Name 指标名称
func (vroc *VolumeRateOfChange) Name() string {
	return "VolumeROC"
}

// Period 所需周期数
func (vroc *VolumeRateOfChange) Period() int {
	return vroc.period + 1
}

// Calculate 计算 VROC
func (vroc *VolumeRateOfChange) Calculate(candles []Candle) []float64 {
	volumes := Volumes(candles)
	return RateOfChange(volumes, vroc.period)
}

// 注册成交量指标
func init() {
	RegisterIndicator("OBV", func(params map[string]interface{}) Indicator {
		return NewOBV(getIntParam(params, "period", 20))
	})

	RegisterIndicator("VWAP", func(params map[string]interface{}) Indicator {
		return NewVWAP()
	})

	RegisterIndicator("CMF", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 20)
		return NewCMF(period)
	})

	RegisterIndicator("ADL", func(params map[string]interface{}) Indicator {
		return NewADL()
	})

	RegisterIndicator("ForceIndex", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 13)
		return NewForceIndex(period)
	})

	RegisterIndicator("VolumeROC", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 12)
		return NewVolumeRateOfChange(period)
	})
}
