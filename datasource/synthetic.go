package datasource

import (
	"math"
	"math/rand"
	"time"

	"quantforge/indicators"
)

// SyntheticConfig 合成K线生成配置
type SyntheticConfig struct {
	Bars       int           `yaml:"bars" json:"bars"`
	StartTime  int64         `yaml:"start_time" json:"start_time"` // 毫秒时间戳
	Interval   time.Duration `yaml:"interval" json:"interval"`
	StartPrice float64       `yaml:"start_price" json:"start_price"`
	Drift      float64       `yaml:"drift" json:"drift"`           // 每根K线的对数收益漂移
	Volatility float64       `yaml:"volatility" json:"volatility"` // 每根K线的对数收益波动
	BaseVolume float64       `yaml:"base_volume" json:"base_volume"`
	Seed       int64         `yaml:"seed" json:"seed"`
}

// DefaultSyntheticConfig 返回一份适合演示的生成配置
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Bars:       1000,
		StartTime:  1_600_000_000_000,
		Interval:   time.Hour,
		StartPrice: 100,
		Drift:      0.0002,
		Volatility: 0.01,
		BaseVolume: 1000,
		Seed:       42,
	}
}

// GenerateSynthetic 生成一段几何随机游走的K线序列。
// 同一份配置（含种子）生成的序列完全相同，适合做可复现的演示和测试数据。
func GenerateSynthetic(cfg SyntheticConfig) []indicators.Candle {
	if cfg.Bars <= 0 {
		return nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Volatility < 0 {
		cfg.Volatility = 0
	}
	if cfg.BaseVolume <= 0 {
		cfg.BaseVolume = 1000
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	intervalMs := cfg.Interval.Milliseconds()

	candles := make([]indicators.Candle, cfg.Bars)
	prevClose := cfg.StartPrice

	for i := 0; i < cfg.Bars; i++ {
		ret := cfg.Drift + cfg.Volatility*rng.NormFloat64()
		closePrice := prevClose * math.Exp(ret)
		open := prevClose

		// 影线幅度取当根波动的一部分
		wick := cfg.Volatility * 0.5 * math.Abs(rng.NormFloat64())
		high := math.Max(open, closePrice) * (1 + wick)
		low := math.Min(open, closePrice) * (1 - wick)
		if low < 0 {
			low = 0
		}

		volume := cfg.BaseVolume * (1 + 10*math.Abs(ret))

		candles[i] = indicators.Candle{
			Time:   cfg.StartTime + int64(i)*intervalMs,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		}
		prevClose = closePrice
	}

	return candles
}
