package backtest

import (
	"fmt"
	"time"
)

// InsufficientDataError K线数量不足以完成计算
type InsufficientDataError struct {
	Needed int // 需要的最少K线数
	Have   int // 实际K线数
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("数据不足: 需要至少 %d 根K线, 实际 %d 根", e.Needed, e.Have)
}

// InvalidBarError 单根K线违反完整性约束
type InvalidBarError struct {
	Index  int    // 首个违规K线的下标
	Reason string // 违规原因
}

func (e *InvalidBarError) Error() string {
	return fmt.Sprintf("K线数据无效 (index=%d): %s", e.Index, e.Reason)
}

// NonFiniteError 序列中出现 NaN 或 Inf
type NonFiniteError struct {
	Field string // 出现非有限值的字段
	Index int    // 出现位置
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("非有限数值 (field=%s, index=%d)", e.Field, e.Index)
}

// DivisionGuardedError 除法分母为零或非正，计算无法继续
type DivisionGuardedError struct {
	Operation string // 发生除零保护的运算
}

func (e *DivisionGuardedError) Error() string {
	return fmt.Sprintf("除零保护触发: %s", e.Operation)
}

// ValidationError 参数或配置校验失败
type ValidationError struct {
	Field  string // 违规字段
	Reason string // 违规原因
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("参数校验失败 (%s): %s", e.Field, e.Reason)
}

// TimeoutError 计算超出调用方给定的时限
type TimeoutError struct {
	Elapsed time.Duration // 截止时已经消耗的时间
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("计算超时: 已耗时 %v", e.Elapsed)
}
