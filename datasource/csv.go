package datasource

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"quantforge/indicators"
)

// csvTimeLayouts 支持的 ISO-8601 时间格式，按常见程度排列
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadCSV 从 CSV 文件加载K线。
// 表头为 timestamp,open,high,low,close,volume；时间戳接受整数（秒或毫秒）
// 或 ISO-8601 日期。返回的K线已按时间升序排列并去重。
func LoadCSV(path string) ([]indicators.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 CSV 文件失败: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 失败: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("CSV 文件为空: %s", path)
	}

	start := 0
	if isHeaderRow(records[0]) {
		start = 1
	}

	candles := make([]indicators.Candle, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		candle, err := parseCSVRow(records[i])
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 行失败: %w", i+1, err)
		}
		candles = append(candles, candle)
	}

	return normalizeCandles(candles), nil
}

// WriteCSV 把K线写成 CSV 文件，时间戳用毫秒整数
func WriteCSV(path string, candles []indicators.Candle) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 CSV 文件失败: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	for i := range candles {
		c := &candles[i]
		record := []string{
			strconv.FormatInt(c.Time, 10),
			formatPrice(c.Open),
			formatPrice(c.High),
			formatPrice(c.Low),
			formatPrice(c.Close),
			formatPrice(c.Volume),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入数据失败: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// isHeaderRow 第一列无法解析成时间戳就当作表头
func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	if first == "timestamp" || first == "time" || first == "date" {
		return true
	}
	_, err := parseTimestamp(record[0])
	return err != nil
}

// parseCSVRow 解析一行K线数据
func parseCSVRow(record []string) (indicators.Candle, error) {
	var c indicators.Candle

	if len(record) < 6 {
		return c, fmt.Errorf("字段数量不足: 期望至少6个, 实际%d个", len(record))
	}

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return c, fmt.Errorf("解析 timestamp 失败: %w", err)
	}

	open, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return c, fmt.Errorf("解析 open 失败: %w", err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return c, fmt.Errorf("解析 high 失败: %w", err)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return c, fmt.Errorf("解析 low 失败: %w", err)
	}
	closePrice, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
	if err != nil {
		return c, fmt.Errorf("解析 close 失败: %w", err)
	}
	volume, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
	if err != nil {
		return c, fmt.Errorf("解析 volume 失败: %w", err)
	}

	c.Time = ts
	c.Open = open
	c.High = high
	c.Low = low
	c.Close = closePrice
	c.Volume = volume
	return c, nil
}

// parseTimestamp 解析时间戳：整数按大小判断秒/毫秒，否则按 ISO-8601 解析
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("时间戳为空")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// 毫秒时间戳从 2001 年起大于 1e12，秒级要到公元 33658 年才会超过
		if n < 1_000_000_000_000 {
			return n * 1000, nil
		}
		return n, nil
	}

	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}

	return 0, fmt.Errorf("无法识别的时间戳格式: %q", s)
}

// formatPrice 输出最短精确表示，保证写出再读回不丢精度
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
