package indicators

import (
	"math"
	"sort"
)

// epsilon 除零保护
const epsilon = 1e-10

// ========== 基础计算工具 ==========
// 所有序列工具的输出长度与输入长度一致。

// SMA 简单移动平均
// 窗口为前 period 根（不含当前值），位置 i < period 时用输入值填充。
func SMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if period <= 0 {
		copy(result, values)
		return result
	}

	sum := 0.0
	for i, v := range values {
		if i >= period {
			result[i] = sum / float64(period)
		} else {
			result[i] = v
		}
		// 滑动窗口：先加当前值，再移出窗口外的值
		sum += v
		if i-period >= 0 {
			sum -= values[i-period]
		}
	}

	return result
}

// EMA 指数移动平均
// 以首个值作为种子，multiplier = 2/(period+1)。
func EMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 {
		return result
	}

	multiplier := 2.0 / (float64(period) + 1.0)
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = values[i]*multiplier + result[i-1]*(1-multiplier)
	}

	return result
}

// WMA 加权移动平均
// 窗口为前 period 根（不含当前值），最新一根权重最大，预热区用输入值填充。
func WMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if period <= 0 {
		copy(result, values)
		return result
	}

	weightSum := float64(period) * float64(period+1) / 2
	for i := range values {
		if i < period {
			result[i] = values[i]
			continue
		}
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += values[i-period+j] * float64(j+1)
		}
		result[i] = sum / weightSum
	}

	return result
}

// VWMA 成交量加权移动平均
// 窗口同 SMA，窗口内成交量为零时退化为输入值。
func VWMA(prices, volumes []float64, period int) []float64 {
	result := make([]float64, len(prices))
	if period <= 0 {
		copy(result, prices)
		return result
	}

	for i := range prices {
		if i < period {
			result[i] = prices[i]
			continue
		}
		pv, vol := 0.0, 0.0
		for j := i - period; j < i; j++ {
			pv += prices[j] * volumes[j]
			vol += volumes[j]
		}
		if vol > 0 {
			result[i] = pv / vol
		} else {
			result[i] = prices[i]
		}
	}

	return result
}

// DEMA 双指数移动平均 DEMA = 2*EMA - EMA(EMA)
func DEMA(values []float64, period int) []float64 {
	ema1 := EMA(values, period)
	ema2 := EMA(ema1, period)

	result := make([]float64, len(values))
	for i := range result {
		result[i] = 2*ema1[i] - ema2[i]
	}

	return result
}

// TEMA 三重指数移动平均 TEMA = 3*EMA - 3*EMA(EMA) + EMA(EMA(EMA))
func TEMA(values []float64, period int) []float64 {
	ema1 := EMA(values, period)
	ema2 := EMA(ema1, period)
	ema3 := EMA(ema2, period)

	result := make([]float64, len(values))
	for i := range result {
		result[i] = 3*ema1[i] - 3*ema2[i] + ema3[i]
	}

	return result
}

// RollingStd 滚动标准差（总体标准差）
// 窗口与 SMA 一致（前 period 根，不含当前值），位置 i < period 时为 0。
func RollingStd(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if period <= 0 {
		return result
	}

	for i := period; i < len(values); i++ {
		mean := 0.0
		for j := i - period; j < i; j++ {
			mean += values[j]
		}
		mean /= float64(period)

		variance := 0.0
		for j := i - period; j < i; j++ {
			diff := values[j] - mean
			variance += diff * diff
		}
		result[i] = math.Sqrt(variance / float64(period))
	}

	return result
}

// Mean 平均值
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Max 最大值
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Min 最小值
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Sum 求和
func Sum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// Median 中位数
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile 百分位数
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || p < 0 || p > 100 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// TrueRange 真实波幅
func TrueRange(high, low, prevClose float64) float64 {
	tr1 := high - low
	tr2 := math.Abs(high - prevClose)
	tr3 := math.Abs(low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}

// TrueRangeSeries 真实波幅序列
// 首根没有前收盘价，取 High-Low。
func TrueRangeSeries(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	if len(candles) == 0 {
		return result
	}

	result[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		result[i] = TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
	}

	return result
}

// ClosePrices 提取收盘价序列
func ClosePrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Close
	}
	return result
}

// HighPrices 提取最高价序列
func HighPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.High
	}
	return result
}

// LowPrices 提取最低价序列
func LowPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Low
	}
	return result
}

// OpenPrices 提取开盘价序列
func OpenPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Open
	}
	return result
}

// Volumes 提取成交量序列
func Volumes(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Volume
	}
	return result
}

// TypicalPrice 典型价格 (H+L+C)/3
func TypicalPrice(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = (c.High + c.Low + c.Close) / 3
	}
	return result
}

// HL2 (H+L)/2
func HL2(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = (c.High + c.Low) / 2
	}
	return result
}

// OHLC4 (O+H+L+C)/4
func OHLC4(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = (c.Open + c.High + c.Low + c.Close) / 4
	}
	return result
}

// CrossOver 判断最新位置是否金叉（line1 上穿 line2）
func CrossOver(line1, line2 []float64) bool {
	if len(line1) < 2 || len(line2) < 2 {
		return false
	}
	n := len(line1)
	return line1[n-2] <= line2[n-2] && line1[n-1] > line2[n-1]
}

// CrossUnder 判断最新位置是否死叉（line1 下穿 line2）
func CrossUnder(line1, line2 []float64) bool {
	if len(line1) < 2 || len(line2) < 2 {
		return false
	}
	n := len(line1)
	return line1[n-2] >= line2[n-2] && line1[n-1] < line2[n-1]
}

// CrossOverAt 判断位置 i 是否金叉（line1 上穿 line2）
func CrossOverAt(line1, line2 []float64, i int) bool {
	if i < 1 || i >= len(line1) || i >= len(line2) {
		return false
	}
	return line1[i-1] <= line2[i-1] && line1[i] > line2[i]
}

// CrossUnderAt 判断位置 i 是否死叉（line1 下穿 line2）
func CrossUnderAt(line1, line2 []float64, i int) bool {
	if i < 1 || i >= len(line1) || i >= len(line2) {
		return false
	}
	return line1[i-1] >= line2[i-1] && line1[i] < line2[i]
}

// RateOfChange 变化率（百分比），预热区为 0
func RateOfChange(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if period <= 0 {
		return result
	}

	for i := period; i < len(values); i++ {
		if values[i-period] != 0 {
			result[i] = (values[i] - values[i-period]) / values[i-period] * 100
		}
	}

	return result
}
