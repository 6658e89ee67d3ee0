package datasource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"quantforge/indicators"
)

// candleRecord Parquet 磁盘格式
type candleRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// LoadParquet 从 Parquet 文件加载K线，返回结果已按时间升序排列并去重
func LoadParquet(path string) ([]indicators.Candle, error) {
	records, err := parquet.ReadFile[candleRecord](path)
	if err != nil {
		return nil, fmt.Errorf("读取 Parquet 文件失败: %w", err)
	}

	candles := make([]indicators.Candle, 0, len(records))
	for _, r := range records {
		candles = append(candles, indicators.Candle{
			Time:   r.Timestamp,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}

	return normalizeCandles(candles), nil
}

// WriteParquet 把K线写成 Parquet 文件
func WriteParquet(path string, candles []indicators.Candle) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	records := make([]candleRecord, 0, len(candles))
	for i := range candles {
		c := &candles[i]
		records = append(records, candleRecord{
			Timestamp: c.Time,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("写入 Parquet 文件失败: %w", err)
	}
	return nil
}
