package notify

import (
	"fmt"
	"sort"
	"strings"

	"quantforge/event"
	"quantforge/utils"
)

// severityEmoji 按事件严重级别选取提示符号
func severityEmoji(eventType event.EventType) string {
	switch event.GetEventSeverity(eventType) {
	case event.SeverityCritical:
		return "🚨"
	case event.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// formatTitle 生成通知标题
func formatTitle(evt *event.Event) string {
	return fmt.Sprintf("%s %s", severityEmoji(evt.Type), event.GetEventTitle(evt.Type))
}

// formatText 生成各渠道共用的纯文本消息体。
// Data 按键名排序输出，保证同一事件的消息内容稳定。
func formatText(evt *event.Event) string {
	var sb strings.Builder
	sb.WriteString(formatTitle(evt))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("时间: %s\n", utils.ToConfiguredTimezone(evt.Timestamp).Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("来源: %s\n", event.GetEventSource(evt.Type)))

	if len(evt.Data) > 0 {
		keys := make([]string, 0, len(evt.Data))
		for k := range evt.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("%s: %v\n", k, formatValue(evt.Data[k])))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// formatValue 数值保留合理精度，其余类型原样输出
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.4f", x)
	case float32:
		return fmt.Sprintf("%.4f", x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
