package backtest

import (
	"quantforge/indicators"
)

// GenerateMACrossSignals 根据快慢均线交叉生成信号序列。
// 金叉（快线上穿慢线）给出买入信号，死叉给出卖出信号；
// 比较从慢线窗口填满后开始，连续的同向交叉只保留第一个。
func GenerateMACrossSignals(candles []indicators.Candle, fastPeriod, slowPeriod int) ([]Signal, error) {
	if fastPeriod < 1 || slowPeriod < 1 {
		return nil, &ValidationError{Field: "period", Reason: "均线周期必须为正整数"}
	}
	if fastPeriod >= slowPeriod {
		return nil, &ValidationError{Field: "fast_period", Reason: "快线周期必须小于慢线周期"}
	}
	if len(candles) < slowPeriod {
		return nil, &InsufficientDataError{Needed: slowPeriod, Have: len(candles)}
	}

	closes := indicators.ClosePrices(candles)
	fast := indicators.SMA(closes, fastPeriod)
	slow := indicators.SMA(closes, slowPeriod)

	signals := make([]Signal, 0)
	last := Hold
	for i := slowPeriod; i < len(candles); i++ {
		var kind SignalKind
		switch {
		case fast[i] > slow[i] && fast[i-1] <= slow[i-1]:
			kind = Buy
		case fast[i] < slow[i] && fast[i-1] >= slow[i-1]:
			kind = Sell
		default:
			continue
		}
		if kind == last {
			continue
		}
		last = kind

		signals = append(signals, Signal{
			Timestamp: candles[i].Time,
			Kind:      kind,
			PriceHint: candles[i].Close,
			Strength:  1,
		})
	}

	return signals, nil
}
