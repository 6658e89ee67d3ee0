package optimizer

import (
	"math"
	"sort"

	"quantforge/backtest"
	"quantforge/logger"
)

// DefaultMaxCombinations 网格组合数的默认安全上限
const DefaultMaxCombinations = 10000

// 浮点步进的包含性容差：value <= max + gridEpsilon 视为在界内
const gridEpsilon = 1e-9

// ParameterRange 单个参数的取值范围，闭区间按步长枚举
type ParameterRange struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

// Validate 校验范围定义
func (r ParameterRange) Validate(name string) error {
	if math.IsNaN(r.Min) || math.IsInf(r.Min, 0) ||
		math.IsNaN(r.Max) || math.IsInf(r.Max, 0) ||
		math.IsNaN(r.Step) || math.IsInf(r.Step, 0) {
		return &backtest.ValidationError{Field: name, Reason: "参数范围必须为有限值"}
	}
	if r.Step <= 0 {
		return &backtest.ValidationError{Field: name, Reason: "步长必须为正数"}
	}
	if r.Min > r.Max {
		return &backtest.ValidationError{Field: name, Reason: "下界不能大于上界"}
	}
	return nil
}

// count 范围内的取值个数
func (r ParameterRange) count() int {
	return int(math.Floor((r.Max-r.Min)/r.Step+gridEpsilon)) + 1
}

// value 范围内第 k 个取值
func (r ParameterRange) value(k int) float64 {
	return r.Min + float64(k)*r.Step
}

// Grid 参数网格的枚举结果
type Grid struct {
	Names     []string             // 字典序的参数名
	Tuples    []map[string]float64 // 按里程表顺序枚举的组合
	Total     int                  // 截断前的组合总数
	Truncated bool                 // 超过上限被前缀截断
}

// GenerateCombinations 枚举参数范围的笛卡尔积。
// 枚举顺序确定：参数名按字典序排列，最后一个参数变化最快。
// 组合总数超过 maxCombinations（非正时用默认上限）时确定性地
// 保留前缀并置 Truncated。
func GenerateCombinations(ranges map[string]ParameterRange, maxCombinations int) (*Grid, error) {
	if maxCombinations <= 0 {
		maxCombinations = DefaultMaxCombinations
	}

	names := make([]string, 0, len(ranges))
	for name := range ranges {
		if err := ranges[name].Validate(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// 组合总数饱和在 MaxInt32，足够覆盖任何真实的截断判断
	const totalCeiling = int64(math.MaxInt32)
	counts := make([]int, len(names))
	total64 := int64(1)
	for i, name := range names {
		counts[i] = ranges[name].count()
		if total64 > totalCeiling/int64(counts[i]) {
			total64 = totalCeiling
		} else {
			total64 *= int64(counts[i])
		}
	}
	total := int(total64)

	limit := total
	truncated := false
	if total > maxCombinations {
		limit = maxCombinations
		truncated = true
		logger.Warn("⚠️ 参数网格组合数 %d 超过上限 %d, 只保留前 %d 个", total, maxCombinations, limit)
	}

	tuples := make([]map[string]float64, 0, limit)
	odometer := make([]int, len(names))
	for len(tuples) < limit {
		tuple := make(map[string]float64, len(names))
		for i, name := range names {
			tuple[name] = ranges[name].value(odometer[i])
		}
		tuples = append(tuples, tuple)

		// 末位进位
		pos := len(odometer) - 1
		for pos >= 0 {
			odometer[pos]++
			if odometer[pos] < counts[pos] {
				break
			}
			odometer[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}

	return &Grid{
		Names:     names,
		Tuples:    tuples,
		Total:     total,
		Truncated: truncated,
	}, nil
}
