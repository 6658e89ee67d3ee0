package indicators

import (
	"math"
	"testing"
)

// almostEqual 浮点数近似比较
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestSMA 测试简单移动平均
func TestSMA(t *testing.T) {
	t.Log("测试 SMA 计算...")

	values := []float64{1, 2, 3, 4, 5}
	result := SMA(values, 3)

	if len(result) != len(values) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(values))
	}

	// 预热区填充输入值
	for i := 0; i < 3; i++ {
		if !almostEqual(result[i], values[i]) {
			t.Errorf("预热区 result[%d] = %f, 期望 %f", i, result[i], values[i])
		}
	}

	// 窗口为前 3 根（不含当前值）
	if !almostEqual(result[3], 2) {
		t.Errorf("result[3] = %f, 期望 2", result[3])
	}
	if !almostEqual(result[4], 3) {
		t.Errorf("result[4] = %f, 期望 3", result[4])
	}

	t.Logf("✅ SMA 计算正确: %v", result)
}

// TestEMA 测试指数移动平均
func TestEMA(t *testing.T) {
	t.Log("测试 EMA 计算...")

	values := []float64{10, 10, 10, 10, 10}
	result := EMA(values, 3)

	if len(result) != len(values) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(values))
	}

	// 常数序列的 EMA 恒等于该常数
	for i, v := range result {
		if !almostEqual(v, 10) {
			t.Errorf("result[%d] = %f, 期望 10", i, v)
		}
	}

	// 首值为种子
	values2 := []float64{5, 8}
	result2 := EMA(values2, 3)
	if !almostEqual(result2[0], 5) {
		t.Errorf("种子 result[0] = %f, 期望 5", result2[0])
	}
	// alpha = 2/(3+1) = 0.5
	if !almostEqual(result2[1], 6.5) {
		t.Errorf("result[1] = %f, 期望 6.5", result2[1])
	}

	t.Log("✅ EMA 计算正确")
}

// TestWMA 测试加权移动平均
func TestWMA(t *testing.T) {
	t.Log("测试 WMA 计算...")

	values := []float64{1, 2, 3, 4}
	result := WMA(values, 3)

	if len(result) != len(values) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(values))
	}

	// 预热区填充输入值
	for i := 0; i < 3; i++ {
		if !almostEqual(result[i], values[i]) {
			t.Errorf("预热区 result[%d] = %f, 期望 %f", i, result[i], values[i])
		}
	}

	// (1*1 + 2*2 + 3*3) / 6 = 14/6
	if !almostEqual(result[3], 14.0/6.0) {
		t.Errorf("result[3] = %f, 期望 %f", result[3], 14.0/6.0)
	}

	t.Log("✅ WMA 计算正确")
}

// TestVWMA 测试成交量加权移动平均
func TestVWMA(t *testing.T) {
	t.Log("测试 VWMA 计算...")

	prices := []float64{1, 2, 3, 4, 5}
	volumes := []float64{100, 100, 100, 100, 100}

	// 等量成交时 VWMA 退化为 SMA
	vwma := VWMA(prices, volumes, 3)
	sma := SMA(prices, 3)

	for i := range prices {
		if !almostEqual(vwma[i], sma[i]) {
			t.Errorf("等量成交 vwma[%d] = %f != sma[%d] = %f", i, vwma[i], i, sma[i])
		}
	}

	t.Log("✅ VWMA 计算正确")
}

// TestRSI 测试 RSI
func TestRSI(t *testing.T) {
	t.Log("测试 RSI 计算...")

	// 单边上涨行情
	candles := make([]Candle, 30)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = Candle{
			Time:   int64(i) * 3600000,
			Open:   price,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: 1000,
		}
	}

	rsi := NewRSI(14)
	result := rsi.Calculate(candles)

	if len(result) != len(candles) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(candles))
	}

	// 预热区为中性值 50
	for i := 0; i < 14; i++ {
		if !almostEqual(result[i], 50) {
			t.Errorf("预热区 result[%d] = %f, 期望 50", i, result[i])
		}
	}

	// 只涨不跌时 RSI 接近 100
	if result[len(result)-1] < 99 {
		t.Errorf("单边上涨 RSI = %f, 期望接近 100", result[len(result)-1])
	}

	t.Logf("✅ RSI 计算正确，末值 %.2f", result[len(result)-1])
}

// TestMACD 测试 MACD
func TestMACD(t *testing.T) {
	t.Log("测试 MACD 计算...")

	// 常数序列的 MACD 各分量均为 0
	candles := make([]Candle, 60)
	for i := range candles {
		candles[i] = Candle{Time: int64(i) * 3600000, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000}
	}

	macd := NewMACD(12, 26, 9)
	result := macd.CalculateMulti(candles)

	for _, key := range []string{"macd", "signal", "histogram"} {
		series := result[key]
		if len(series) != len(candles) {
			t.Fatalf("%s 长度 %d != 输入长度 %d", key, len(series), len(candles))
		}
		for i, v := range series {
			if !almostEqual(v, 0) {
				t.Errorf("常数序列 %s[%d] = %f, 期望 0", key, i, v)
			}
		}
	}

	t.Log("✅ MACD 计算正确")
}

// TestBollingerBands 测试布林带
func TestBollingerBands(t *testing.T) {
	t.Log("测试布林带计算...")

	candles := make([]Candle, 40)
	for i := range candles {
		candles[i] = Candle{Time: int64(i) * 3600000, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000}
	}

	bb := NewBollingerBands(20, 2.0)
	result := bb.CalculateMulti(candles)

	upper := result["upper"]
	middle := result["middle"]
	lower := result["lower"]

	if len(upper) != len(candles) || len(middle) != len(candles) || len(lower) != len(candles) {
		t.Fatal("布林带输出长度与输入不一致")
	}

	// 预热区上下轨为 0
	for i := 0; i < 20; i++ {
		if upper[i] != 0 || lower[i] != 0 {
			t.Errorf("预热区 upper[%d]=%f lower[%d]=%f, 期望 0", i, upper[i], i, lower[i])
		}
	}

	// 常数序列标准差为 0，上下轨与中轨重合
	for i := 20; i < len(candles); i++ {
		if !almostEqual(upper[i], 100) || !almostEqual(middle[i], 100) || !almostEqual(lower[i], 100) {
			t.Errorf("位置 %d: upper=%f middle=%f lower=%f, 期望均为 100", i, upper[i], middle[i], lower[i])
		}
	}

	t.Log("✅ 布林带计算正确")
}

// TestKDJ 测试 KDJ
func TestKDJ(t *testing.T) {
	t.Log("测试 KDJ 计算...")

	candles := generateMockCandles(100, 30000, 0.02)

	kdj := NewKDJ(9, 3)
	result := kdj.CalculateMulti(candles)

	k := result["k"]
	d := result["d"]
	j := result["j"]

	if len(k) != len(candles) || len(d) != len(candles) || len(j) != len(candles) {
		t.Fatal("KDJ 输出长度与输入不一致")
	}

	// 预热区 K = D = 50
	for i := 0; i < 8; i++ {
		if !almostEqual(k[i], 50) {
			t.Errorf("预热区 k[%d] = %f, 期望 50", i, k[i])
		}
		if !almostEqual(d[i], 50) {
			t.Errorf("预热区 d[%d] = %f, 期望 50", i, d[i])
		}
	}

	// J = 3K - 2D 恒等式
	for i := range k {
		if !almostEqual(j[i], 3*k[i]-2*d[i]) {
			t.Errorf("位置 %d: j = %f, 期望 3K-2D = %f", i, j[i], 3*k[i]-2*d[i])
		}
	}

	t.Log("✅ KDJ 计算正确")
}

// TestCCI 测试 CCI
func TestCCI(t *testing.T) {
	t.Log("测试 CCI 计算...")

	// 上涨行情中末端 CCI 为正
	candles := generateTrendingCandles(60, 100, 0.01)

	cci := NewCCI(20)
	result := cci.Calculate(candles)

	if len(result) != len(candles) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(candles))
	}

	// 预热区为 0
	for i := 0; i < 19; i++ {
		if result[i] != 0 {
			t.Errorf("预热区 result[%d] = %f, 期望 0", i, result[i])
		}
	}

	if result[len(result)-1] <= 0 {
		t.Errorf("上涨行情末端 CCI = %f, 期望为正", result[len(result)-1])
	}

	t.Logf("✅ CCI 计算正确，末值 %.2f", result[len(result)-1])
}

// TestATR 测试 ATR
func TestATR(t *testing.T) {
	t.Log("测试 ATR 计算...")

	// 每根K线波幅固定为 2
	candles := make([]Candle, 30)
	for i := range candles {
		candles[i] = Candle{Time: int64(i) * 3600000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	}

	atr := NewATR(14)
	result := atr.Calculate(candles)

	if len(result) != len(candles) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(candles))
	}

	// 预热区为 0
	for i := 0; i < 13; i++ {
		if result[i] != 0 {
			t.Errorf("预热区 result[%d] = %f, 期望 0", i, result[i])
		}
	}

	// 固定波幅的 ATR 等于波幅
	for i := 13; i < len(result); i++ {
		if !almostEqual(result[i], 2) {
			t.Errorf("result[%d] = %f, 期望 2", i, result[i])
		}
	}

	t.Log("✅ ATR 计算正确")
}

// TestADX 测试 ADX
func TestADX(t *testing.T) {
	t.Log("测试 ADX 计算...")

	// 持续上涨行情
	candles := generateTrendingCandles(100, 100, 0.005)

	adx := NewADX(14)
	result := adx.CalculateMulti(candles)

	adxLine := result["adx"]
	plusDI := result["plus_di"]
	minusDI := result["minus_di"]

	if len(adxLine) != len(candles) || len(plusDI) != len(candles) || len(minusDI) != len(candles) {
		t.Fatal("ADX 输出长度与输入不一致")
	}

	// 预热区为 0
	for i := 0; i < 26; i++ {
		if adxLine[i] != 0 {
			t.Errorf("预热区 adx[%d] = %f, 期望 0", i, adxLine[i])
		}
	}

	n := len(candles) - 1
	if plusDI[n] <= minusDI[n] {
		t.Errorf("上涨行情 +DI(%.2f) 应大于 -DI(%.2f)", plusDI[n], minusDI[n])
	}
	if adxLine[n] < 90 {
		t.Errorf("单边上涨 ADX = %f, 期望接近 100", adxLine[n])
	}

	t.Logf("✅ ADX 计算正确，末值 %.2f", adxLine[n])
}

// TestOBV 测试 OBV
func TestOBV(t *testing.T) {
	t.Log("测试 OBV 计算...")

	candles := []Candle{
		{Time: 0, Open: 1, High: 1.1, Low: 0.9, Close: 1, Volume: 10},
		{Time: 1, Open: 1, High: 2.1, Low: 1, Close: 2, Volume: 20},
		{Time: 2, Open: 2, High: 2, Low: 0.9, Close: 1, Volume: 30},
		{Time: 3, Open: 1, High: 1.2, Low: 0.8, Close: 1, Volume: 40},
	}

	obv := NewOBV(20)
	result := obv.Calculate(candles)

	expected := []float64{10, 30, 0, 0}
	for i := range expected {
		if !almostEqual(result[i], expected[i]) {
			t.Errorf("obv[%d] = %f, 期望 %f", i, result[i], expected[i])
		}
	}

	t.Logf("✅ OBV 计算正确: %v", result)
}

// TestIchimoku 测试一目均衡表
func TestIchimoku(t *testing.T) {
	t.Log("测试一目均衡表计算...")

	candles := generateMockCandles(120, 30000, 0.02)

	ich := NewIchimoku(9, 26, 26)
	result := ich.CalculateMulti(candles)

	for _, key := range []string{"tenkan", "kijun", "senkou_a", "senkou_b", "chikou"} {
		series := result[key]
		if len(series) != len(candles) {
			t.Fatalf("%s 长度 %d != 输入长度 %d", key, len(series), len(candles))
		}
		for i, v := range series {
			if v <= 0 {
				t.Errorf("%s[%d] = %f, 期望为正", key, i, v)
			}
		}
	}

	// 窗口不足时用当前根的 (H+L)/2 填充
	tenkan := result["tenkan"]
	expected := (candles[0].High + candles[0].Low) / 2
	if !almostEqual(tenkan[0], expected) {
		t.Errorf("tenkan[0] = %f, 期望 %f", tenkan[0], expected)
	}

	t.Log("✅ 一目均衡表计算正确")
}

// TestParabolicSAR 测试抛物线转向
func TestParabolicSAR(t *testing.T) {
	t.Log("测试 Parabolic SAR 计算...")

	candles := generateTrendingCandles(60, 100, 0.01)

	sar := NewParabolicSAR(0.02, 0.2)
	result := sar.Calculate(candles)

	if len(result) != len(candles) {
		t.Fatalf("输出长度 %d != 输入长度 %d", len(result), len(candles))
	}

	// 种子为首根最低价
	if !almostEqual(result[0], candles[0].Low) {
		t.Errorf("result[0] = %f, 期望 %f", result[0], candles[0].Low)
	}

	// 上涨初期 SAR 向极值靠拢
	if result[1] <= result[0] {
		t.Errorf("result[1] = %f 应大于 result[0] = %f", result[1], result[0])
	}

	t.Log("✅ Parabolic SAR 计算正确")
}

// TestSignalSeries 测试逐K线信号
func TestSignalSeries(t *testing.T) {
	t.Log("测试逐K线信号...")

	candles := generateMockCandles(200, 30000, 0.02)

	signalers := []SeriesSignaler{
		NewRSI(14),
		NewMACD(12, 26, 9),
		NewBollingerBands(20, 2.0),
		NewKDJ(9, 3),
		NewCCI(20),
		NewADX(14),
		NewATR(14),
		NewOBV(20),
		NewIchimoku(9, 26, 26),
		NewParabolicSAR(0.02, 0.2),
	}

	for _, s := range signalers {
		signals := s.SignalSeries(candles)
		if len(signals) != len(candles) {
			t.Errorf("%s 信号长度 %d != 输入长度 %d", s.Name(), len(signals), len(candles))
			continue
		}
		if signals[0] != 0 {
			t.Errorf("%s 信号首位 = %d, 期望 0", s.Name(), signals[0])
		}
		for i, sig := range signals {
			if sig < -1 || sig > 1 {
				t.Errorf("%s 信号越界 signals[%d] = %d", s.Name(), i, sig)
			}
		}
		t.Logf("✅ %s 信号向量合法", s.Name())
	}
}

// TestIndicatorRegistry 测试指标注册表
// 所有注册指标的输出长度必须与输入一致。
func TestIndicatorRegistry(t *testing.T) {
	t.Log("测试指标注册表...")

	names := ListIndicators()
	if len(names) == 0 {
		t.Fatal("注册表为空")
	}

	candles := generateMockCandles(200, 30000, 0.02)

	for _, name := range names {
		ind := GetIndicator(name, map[string]interface{}{})
		if ind == nil {
			t.Errorf("获取指标 %s 失败", name)
			continue
		}

		values := ind.Calculate(candles)
		if len(values) != len(candles) {
			t.Errorf("%s 输出长度 %d != 输入长度 %d", name, len(values), len(candles))
		}

		if mv, ok := ind.(MultiValueIndicator); ok {
			for key, series := range mv.CalculateMulti(candles) {
				if len(series) != len(candles) {
					t.Errorf("%s.%s 输出长度 %d != 输入长度 %d", name, key, len(series), len(candles))
				}
			}
		}

		if ss, ok := ind.(SeriesSignaler); ok {
			signals := ss.SignalSeries(candles)
			if len(signals) != len(candles) {
				t.Errorf("%s 信号长度 %d != 输入长度 %d", name, len(signals), len(candles))
			}
		}
	}

	t.Logf("✅ 注册表中 %d 个指标全部通过长度检查", len(names))
}

// TestEmptyInput 测试空输入
func TestEmptyInput(t *testing.T) {
	t.Log("测试空输入...")

	var candles []Candle

	for _, name := range ListIndicators() {
		ind := GetIndicator(name, map[string]interface{}{})
		values := ind.Calculate(candles)
		if len(values) != 0 {
			t.Errorf("%s 空输入输出长度 = %d, 期望 0", name, len(values))
		}
	}

	t.Log("✅ 空输入全部返回空输出")
}

// generateMockCandles 生成模拟K线数据（震荡行情）
func generateMockCandles(count int, basePrice float64, volatility float64) []Candle {
	candles := make([]Candle, count)
	currentPrice := basePrice

	for i := 0; i < count; i++ {
		// 确定性波动
		change := (float64(i%10) - 5) * volatility * basePrice * 0.1
		currentPrice += change

		if currentPrice < basePrice*0.8 {
			currentPrice = basePrice * 0.8
		}
		if currentPrice > basePrice*1.2 {
			currentPrice = basePrice * 1.2
		}

		open := currentPrice
		high := currentPrice * (1 + volatility)
		low := currentPrice * (1 - volatility)
		close := currentPrice * (1 + (float64(i%3)-1)*volatility*0.5)

		candles[i] = Candle{
			Time:   int64(i) * 3600000, // 每小时一根K线
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1000 + float64(i%100)*10,
		}
	}

	return candles
}

// generateTrendingCandles 生成趋势行情数据
func generateTrendingCandles(count int, basePrice float64, trendRate float64) []Candle {
	candles := make([]Candle, count)
	currentPrice := basePrice

	for i := 0; i < count; i++ {
		// 趋势上涨
		currentPrice *= (1 + trendRate)

		open := currentPrice
		high := currentPrice * 1.01
		low := currentPrice * 0.99
		close := currentPrice * (1 + trendRate*0.5)

		candles[i] = Candle{
			Time:   int64(i) * 3600000,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1000 + float64(i%100)*10,
		}
	}

	return candles
}
