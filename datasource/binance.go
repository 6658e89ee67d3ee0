package datasource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"quantforge/indicators"
	"quantforge/logger"
)

// binanceBatchLimit 币安单次请求的最大K线数量
const binanceBatchLimit = 1000

// BinanceConfig 币安数据源配置。历史K线是公开接口，密钥可以留空。
type BinanceConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Testnet   bool   `yaml:"testnet" json:"testnet"`
}

// BinanceSource 从币安合约接口分批拉取历史K线
type BinanceSource struct {
	client  *futures.Client
	limiter *rate.Limiter
}

// NewBinanceSource 创建币安数据源
func NewBinanceSource(cfg *BinanceConfig) *BinanceSource {
	if cfg == nil {
		cfg = &BinanceConfig{}
	}

	futures.UseTestnet = cfg.Testnet
	if cfg.Testnet {
		logger.Info("🌐 [Binance] 使用测试网模式")
	}

	return &BinanceSource{
		client: futures.NewClient(cfg.APIKey, cfg.SecretKey),
		// 限制请求频率，避免触发币安限流
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}
}

// Name 数据源名称
func (b *BinanceSource) Name() string {
	return "binance"
}

// FetchCandles 拉取 [startTime, endTime] 范围内的K线，时间为毫秒时间戳。
// 单次最多1000根，超过范围自动分批。
func (b *BinanceSource) FetchCandles(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]indicators.Candle, error) {
	if _, err := IntervalDuration(interval); err != nil {
		return nil, err
	}
	if startTime > endTime {
		return nil, fmt.Errorf("时间范围不合法: start=%d > end=%d", startTime, endTime)
	}

	logger.Info("⬇️ 从 Binance 下载: %s %s (%s 至 %s)",
		symbol, interval,
		time.UnixMilli(startTime).UTC().Format("2006-01-02"),
		time.UnixMilli(endTime).UTC().Format("2006-01-02"))

	var all []indicators.Candle
	current := startTime
	batchNum := 0

	for current <= endTime {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batchNum++
		klines, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(current).
			EndTime(endTime).
			Limit(binanceBatchLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("获取第 %d 批K线失败: %w", batchNum, err)
		}

		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			candle, err := parseKline(k)
			if err != nil {
				return nil, fmt.Errorf("解析K线失败 (ts=%d): %w", k.OpenTime, err)
			}
			all = append(all, candle)
		}

		last := klines[len(klines)-1].OpenTime
		if last < current {
			// 服务端没有前进，防止死循环
			break
		}
		current = last + 1

		logger.Info("📊 下载进度: %s %s 已获取 %d 根K线", symbol, interval, len(all))

		if len(klines) < binanceBatchLimit {
			break
		}
	}

	logger.Info("✅ 下载完成: %s %s 共 %d 根K线", symbol, interval, len(all))
	return normalizeCandles(all), nil
}

// parseKline 把币安K线转换成内部格式
func parseKline(k *futures.Kline) (indicators.Candle, error) {
	var c indicators.Candle

	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return c, fmt.Errorf("解析 open 失败: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return c, fmt.Errorf("解析 high 失败: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return c, fmt.Errorf("解析 low 失败: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return c, fmt.Errorf("解析 close 失败: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return c, fmt.Errorf("解析 volume 失败: %w", err)
	}

	c.Time = k.OpenTime
	c.Open = open
	c.High = high
	c.Low = low
	c.Close = closePrice
	c.Volume = volume
	return c, nil
}

// IntervalDuration 返回K线周期对应的时长
func IntervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "3m":
		return 3 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "2h":
		return 2 * time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "6h":
		return 6 * time.Hour, nil
	case "8h":
		return 8 * time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "3d":
		return 3 * 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("不支持的K线周期: %s", interval)
	}
}
