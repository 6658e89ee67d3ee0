package backtest

import (
	"fmt"
	"math"

	"quantforge/indicators"
)

// isFinite 判断浮点数是否为有限值
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateCandles 校验K线序列的完整性，遇到首个违规立即返回。
// 校验内容包括价格与成交量的有限性和非负性、OHLC 的区间关系、
// 以及时间戳的严格递增。
func ValidateCandles(candles []indicators.Candle) error {
	if len(candles) == 0 {
		return &InsufficientDataError{Needed: 1, Have: 0}
	}

	for i, c := range candles {
		fields := [...]struct {
			name  string
			value float64
		}{
			{"open", c.Open},
			{"high", c.High},
			{"low", c.Low},
			{"close", c.Close},
			{"volume", c.Volume},
		}
		for _, f := range fields {
			if !isFinite(f.value) {
				return &NonFiniteError{Field: f.name, Index: i}
			}
		}

		if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 {
			return &InvalidBarError{Index: i, Reason: "价格为负"}
		}
		if c.Volume < 0 {
			return &InvalidBarError{Index: i, Reason: "成交量为负"}
		}
		if c.Low > c.High {
			return &InvalidBarError{Index: i, Reason: fmt.Sprintf("最低价 %.8f 高于最高价 %.8f", c.Low, c.High)}
		}
		if c.Open < c.Low || c.Open > c.High {
			return &InvalidBarError{Index: i, Reason: "开盘价超出最高最低价区间"}
		}
		if c.Close < c.Low || c.Close > c.High {
			return &InvalidBarError{Index: i, Reason: "收盘价超出最高最低价区间"}
		}
		if i > 0 && c.Time <= candles[i-1].Time {
			return &InvalidBarError{Index: i, Reason: fmt.Sprintf("时间戳未严格递增: %d <= %d", c.Time, candles[i-1].Time)}
		}
	}

	return nil
}

// ValidateEquityCurve 校验权益曲线可用于指标计算
func ValidateEquityCurve(equity []EquityPoint) error {
	if len(equity) == 0 {
		return &InsufficientDataError{Needed: 1, Have: 0}
	}
	for i, p := range equity {
		if !isFinite(p.Equity) {
			return &NonFiniteError{Field: "equity", Index: i}
		}
		if i > 0 && p.Timestamp <= equity[i-1].Timestamp {
			return &InvalidBarError{Index: i, Reason: fmt.Sprintf("权益曲线时间戳未严格递增: %d <= %d", p.Timestamp, equity[i-1].Timestamp)}
		}
	}
	return nil
}
