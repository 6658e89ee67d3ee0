package backtest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ReportMeta 报告的标的与输出位置信息
type ReportMeta struct {
	Strategy string // 策略名称
	Symbol   string // 交易对
	OutDir   string // 输出目录，空值时使用 reports/
}

// moneyPrinter 金额按千位分组格式化
var moneyPrinter = message.NewPrinter(language.English)

// GenerateReport 生成 Markdown 回测报告，返回报告文件路径
func GenerateReport(result *Result, meta ReportMeta) (string, error) {
	reportDir, err := ensureOutDir(meta)
	if err != nil {
		return "", err
	}
	reportPath := filepath.Join(reportDir, reportFilename(meta, ".md"))

	content, err := renderReportTemplate(prepareReportData(result, meta))
	if err != nil {
		return "", fmt.Errorf("渲染报告模板失败: %w", err)
	}

	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	return reportPath, nil
}

// SaveEquityCurveCSV 保存权益曲线到 CSV，返回文件路径
func SaveEquityCurveCSV(result *Result, meta ReportMeta) (string, error) {
	reportDir, err := ensureOutDir(meta)
	if err != nil {
		return "", err
	}
	csvPath := filepath.Join(reportDir, reportFilename(meta, "_equity.csv"))

	var sb strings.Builder
	sb.WriteString("timestamp,equity\n")
	for _, point := range result.EquityCurve {
		sb.WriteString(fmt.Sprintf("%d,%.2f\n", point.Timestamp, point.Equity))
	}

	if err := os.WriteFile(csvPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("写入 CSV 文件失败: %w", err)
	}

	return csvPath, nil
}

// SaveEquityChartHTML 生成交互式权益曲线图表（ECharts HTML），返回文件路径
func SaveEquityChartHTML(result *Result, meta ReportMeta) (string, error) {
	reportDir, err := ensureOutDir(meta)
	if err != nil {
		return "", err
	}
	htmlPath := filepath.Join(reportDir, reportFilename(meta, "_equity.html"))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s %s 权益曲线", meta.Strategy, meta.Symbol),
			Width:     "1400px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s / %s 权益曲线", meta.Strategy, meta.Symbol),
			Subtitle: fmt.Sprintf("总收益率 %s | 最大回撤 %s | %d 笔交易", formatPercent(result.Metrics.TotalReturn), formatPercent(result.Metrics.MaxDrawdown), result.Metrics.TradeCount),
			Left:     "left",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	xAxis := make([]string, len(result.EquityCurve))
	data := make([]opts.LineData, len(result.EquityCurve))
	for i, p := range result.EquityCurve {
		xAxis[i] = time.UnixMilli(p.Timestamp).UTC().Format("2006-01-02 15:04")
		data[i] = opts.LineData{Value: math.Round(p.Equity*100) / 100}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("权益", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	file, err := os.Create(htmlPath)
	if err != nil {
		return "", fmt.Errorf("创建图表文件失败: %w", err)
	}
	defer file.Close()

	if err := line.Render(file); err != nil {
		return "", fmt.Errorf("渲染图表失败: %w", err)
	}

	return htmlPath, nil
}

// ensureOutDir 创建并返回报告输出目录
func ensureOutDir(meta ReportMeta) (string, error) {
	dir := meta.OutDir
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}
	return dir, nil
}

// reportFilename 统一的报告文件命名: 策略_标的_时间戳
func reportFilename(meta ReportMeta, suffix string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s_%s%s", meta.Strategy, meta.Symbol, timestamp, suffix)
}

// ReportData 报告模板数据，全部预格式化为字符串
type ReportData struct {
	// 基本信息
	Strategy       string
	Symbol         string
	GeneratedAt    string
	StartDate      string
	EndDate        string
	Duration       string
	InitialCapital string
	FinalValue     string

	// 收益指标
	TotalReturn      string
	AnnualizedReturn string

	// 风险指标
	MaxDrawdown         string
	MaxDrawdownDuration string
	Volatility          string

	// 风险调整收益
	SharpeRatio  string
	SortinoRatio string
	CalmarRatio  string

	// 交易指标
	TradeCount           string
	WinRate              string
	ProfitFactor         string
	AvgHoldDays          string
	AvgWin               string
	AvgLoss              string
	LargestWin           string
	LargestLoss          string
	MaxConsecutiveWins   string
	MaxConsecutiveLosses string

	// 交易明细
	TopTrades []TradeRow

	// 尾部风险
	VaR95  string
	VaR99  string
	CVaR95 string
	CVaR99 string

	// 结论
	Conclusion string
}

// TradeRow 交易明细行
type TradeRow struct {
	EntryTime  string
	ExitTime   string
	EntryPrice string
	ExitPrice  string
	Quantity   string
	PnL        string
}

// prepareReportData 将回测结果整理为模板数据
func prepareReportData(result *Result, meta ReportMeta) ReportData {
	m := result.Metrics
	risk := CalculateRiskMetrics(result.EquityCurve)

	startDate, endDate, durationDays := "-", "-", 0
	if n := len(result.EquityCurve); n > 0 {
		first := result.EquityCurve[0].Timestamp
		last := result.EquityCurve[n-1].Timestamp
		startDate = time.UnixMilli(first).UTC().Format("2006-01-02")
		endDate = time.UnixMilli(last).UTC().Format("2006-01-02")
		durationDays = int(float64(last-first) / millisPerDay)
	}

	// 交易明细最多展示前 20 笔
	topTrades := make([]TradeRow, 0, 20)
	for _, trade := range result.Trades {
		if len(topTrades) >= 20 {
			break
		}
		topTrades = append(topTrades, TradeRow{
			EntryTime:  time.UnixMilli(trade.EntryTimestamp).UTC().Format("2006-01-02 15:04"),
			ExitTime:   time.UnixMilli(trade.ExitTimestamp).UTC().Format("2006-01-02 15:04"),
			EntryPrice: fmt.Sprintf("%.4f", trade.EntryPrice),
			ExitPrice:  fmt.Sprintf("%.4f", trade.ExitPrice),
			Quantity:   fmt.Sprintf("%.6f", trade.Quantity),
			PnL:        fmt.Sprintf("%.2f", trade.PnL),
		})
	}

	return ReportData{
		Strategy:       meta.Strategy,
		Symbol:         meta.Symbol,
		GeneratedAt:    time.Now().Format("2006-01-02 15:04:05"),
		StartDate:      startDate,
		EndDate:        endDate,
		Duration:       fmt.Sprintf("%d 天", durationDays),
		InitialCapital: moneyPrinter.Sprintf("%.2f", result.Config.InitialCapital),
		FinalValue:     moneyPrinter.Sprintf("%.2f", result.FinalValue),

		TotalReturn:      formatPercent(m.TotalReturn),
		AnnualizedReturn: formatPercent(m.AnnualizedReturn),

		MaxDrawdown:         formatPercent(m.MaxDrawdown),
		MaxDrawdownDuration: fmt.Sprintf("%d 天", m.MaxDrawdownDuration),
		Volatility:          formatPercent(m.Volatility),

		SharpeRatio:  formatRatio(m.SharpeRatio),
		SortinoRatio: formatRatio(m.SortinoRatio),
		CalmarRatio:  formatRatio(m.CalmarRatio),

		TradeCount:           fmt.Sprintf("%d", m.TradeCount),
		WinRate:              formatPercent(m.WinRate),
		ProfitFactor:         formatRatio(m.ProfitFactor),
		AvgHoldDays:          fmt.Sprintf("%.1f 天", m.AvgHoldDays),
		AvgWin:               moneyPrinter.Sprintf("%.2f", m.AvgWin),
		AvgLoss:              moneyPrinter.Sprintf("%.2f", m.AvgLoss),
		LargestWin:           moneyPrinter.Sprintf("%.2f", m.LargestWin),
		LargestLoss:          moneyPrinter.Sprintf("%.2f", m.LargestLoss),
		MaxConsecutiveWins:   fmt.Sprintf("%d", m.MaxConsecutiveWins),
		MaxConsecutiveLosses: fmt.Sprintf("%d", m.MaxConsecutiveLosses),

		TopTrades: topTrades,

		VaR95:  formatPercent(risk.VaR95),
		VaR99:  formatPercent(risk.VaR99),
		CVaR95: formatPercent(risk.CVaR95),
		CVaR99: formatPercent(risk.CVaR99),

		Conclusion: generateConclusion(m),
	}
}

// formatPercent 小数转百分比显示
func formatPercent(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	if math.IsInf(v, -1) {
		return "-∞"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// formatRatio 比率显示，无穷大以符号表示
func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	if math.IsInf(v, -1) {
		return "-∞"
	}
	return fmt.Sprintf("%.2f", v)
}

// generateConclusion 按指标阈值生成结论
func generateConclusion(m Metrics) string {
	var conclusions []string

	// 收益评估
	if m.TotalReturn > 0.5 {
		conclusions = append(conclusions, "✅ 策略表现优秀，总收益率超过 50%")
	} else if m.TotalReturn > 0.2 {
		conclusions = append(conclusions, "✅ 策略表现良好，总收益率超过 20%")
	} else if m.TotalReturn > 0 {
		conclusions = append(conclusions, "⚠️ 策略盈利，但收益率较低")
	} else {
		conclusions = append(conclusions, "❌ 策略亏损，需要优化参数或更换策略")
	}

	// 风险评估
	if m.MaxDrawdown < 0.1 {
		conclusions = append(conclusions, "✅ 风险控制良好，最大回撤小于 10%")
	} else if m.MaxDrawdown < 0.2 {
		conclusions = append(conclusions, "⚠️ 风险适中，最大回撤在 10-20% 之间")
	} else {
		conclusions = append(conclusions, "❌ 风险较高，最大回撤超过 20%")
	}

	// 夏普比率评估
	if m.SharpeRatio > 2 {
		conclusions = append(conclusions, "✅ 风险调整收益优秀，夏普比率 > 2")
	} else if m.SharpeRatio > 1 {
		conclusions = append(conclusions, "✅ 风险调整收益良好，夏普比率 > 1")
	} else if m.SharpeRatio > 0 {
		conclusions = append(conclusions, "⚠️ 风险调整收益一般，夏普比率 < 1")
	} else {
		conclusions = append(conclusions, "❌ 风险调整收益差，夏普比率为负")
	}

	// 胜率评估
	if m.TradeCount == 0 {
		conclusions = append(conclusions, "⚠️ 回测期间没有产生任何完整交易")
	} else if m.WinRate > 0.6 {
		conclusions = append(conclusions, "✅ 胜率高，超过 60%")
	} else if m.WinRate > 0.5 {
		conclusions = append(conclusions, "✅ 胜率良好，超过 50%")
	} else {
		conclusions = append(conclusions, "⚠️ 胜率较低，需要优化策略")
	}

	// 利润因子评估
	if m.ProfitFactor > 2 {
		conclusions = append(conclusions, "✅ 利润因子优秀，盈利能力强")
	} else if m.ProfitFactor > 1.5 {
		conclusions = append(conclusions, "✅ 利润因子良好")
	} else if m.ProfitFactor > 1 {
		conclusions = append(conclusions, "⚠️ 利润因子一般")
	} else {
		conclusions = append(conclusions, "❌ 利润因子 < 1，平均亏损大于平均盈利")
	}

	return strings.Join(conclusions, "\n\n")
}

// renderReportTemplate 渲染 Markdown 报告模板
func renderReportTemplate(data ReportData) (string, error) {
	tmpl := `# {{.Strategy}} 策略回测报告

生成时间: {{.GeneratedAt}}

## 执行摘要

- **交易对**: {{.Symbol}}
- **回测期间**: {{.StartDate}} 至 {{.EndDate}} ({{.Duration}})
- **初始资金**: ${{.InitialCapital}}
- **最终权益**: ${{.FinalValue}}
- **总收益率**: {{.TotalReturn}}
- **年化收益率**: {{.AnnualizedReturn}}
- **最大回撤**: {{.MaxDrawdown}}
- **夏普比率**: {{.SharpeRatio}}

## 收益指标

| 指标 | 数值 |
|------|------|
| 总收益率 | {{.TotalReturn}} |
| 年化收益率 | {{.AnnualizedReturn}} |

## 风险指标

| 指标 | 数值 |
|------|------|
| 最大回撤 | {{.MaxDrawdown}} |
| 最大回撤持续时间 | {{.MaxDrawdownDuration}} |
| 波动率（年化） | {{.Volatility}} |

## 风险调整收益

| 指标 | 数值 |
|------|------|
| 夏普比率 | {{.SharpeRatio}} |
| 索提诺比率 | {{.SortinoRatio}} |
| 卡玛比率 | {{.CalmarRatio}} |

## 交易指标

| 指标 | 数值 |
|------|------|
| 完整交易次数 | {{.TradeCount}} |
| 胜率 | {{.WinRate}} |
| 利润因子 | {{.ProfitFactor}} |
| 平均持仓时间 | {{.AvgHoldDays}} |
| 平均盈利 | ${{.AvgWin}} |
| 平均亏损 | ${{.AvgLoss}} |
| 最大单笔盈利 | ${{.LargestWin}} |
| 最大单笔亏损 | ${{.LargestLoss}} |
| 最大连续盈利 | {{.MaxConsecutiveWins}} 笔 |
| 最大连续亏损 | {{.MaxConsecutiveLosses}} 笔 |

## 交易明细（前20笔）

| 开仓时间 | 平仓时间 | 开仓价 | 平仓价 | 数量 | 盈亏 |
|------|------|------|------|------|------|
{{range .TopTrades}}| {{.EntryTime}} | {{.ExitTime}} | {{.EntryPrice}} | {{.ExitPrice}} | {{.Quantity}} | {{.PnL}} |
{{end}}

## 高级风险指标

| 指标 | 数值 | 说明 |
|------|------|------|
| VaR (95%) | {{.VaR95}} | 95% 置信度下的最大损失 |
| VaR (99%) | {{.VaR99}} | 99% 置信度下的最大损失 |
| CVaR (95%) | {{.CVaR95}} | 超过 VaR 的平均损失 |
| CVaR (99%) | {{.CVaR99}} | 超过 VaR 的平均损失 |

**说明**：
- **VaR (Value at Risk)**: 在给定置信度下，投资组合在未来特定时间内可能遭受的最大损失。
- **CVaR (Conditional Value at Risk)**: 也称为预期损失，是超过 VaR 阈值的平均损失，比 VaR 更能反映极端风险。

## 结论

{{.Conclusion}}

---

*本报告由 QuantForge 回测系统自动生成*
`

	t, err := template.New("report").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
