package event

// EventSeverity 事件严重程度
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// EventSource 事件来源
type EventSource string

const (
	SourceBacktest   EventSource = "backtest"
	SourceOptimizer  EventSource = "optimizer"
	SourceDatasource EventSource = "datasource"
	SourceSystem     EventSource = "system"
	SourceConfig     EventSource = "config"
)

// GetEventSeverity 事件类型到严重程度的映射
func GetEventSeverity(eventType EventType) EventSeverity {
	switch eventType {
	case EventTypeError, EventTypeDataFetchFailed:
		return SeverityCritical
	case EventTypeSystemCPUHigh, EventTypeSystemMemoryHigh:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// GetEventSource 事件类型到来源的映射
func GetEventSource(eventType EventType) EventSource {
	switch eventType {
	case EventTypeBacktestCompleted:
		return SourceBacktest
	case EventTypeOptimizationStarted, EventTypeOptimizationProgress,
		EventTypeOptimizationCompleted, EventTypeWalkForwardCompleted:
		return SourceOptimizer
	case EventTypeDataFetched, EventTypeDataFetchFailed:
		return SourceDatasource
	case EventTypeConfigReloaded:
		return SourceConfig
	default:
		return SourceSystem
	}
}

// GetEventTitle 事件类型的展示标题
func GetEventTitle(eventType EventType) string {
	switch eventType {
	case EventTypeBacktestCompleted:
		return "回测完成"
	case EventTypeOptimizationStarted:
		return "参数寻优开始"
	case EventTypeOptimizationProgress:
		return "参数寻优进度"
	case EventTypeOptimizationCompleted:
		return "参数寻优完成"
	case EventTypeWalkForwardCompleted:
		return "滚动寻优完成"
	case EventTypeDataFetched:
		return "行情数据就绪"
	case EventTypeDataFetchFailed:
		return "行情数据获取失败"
	case EventTypeSystemCPUHigh:
		return "CPU 使用率过高"
	case EventTypeSystemMemoryHigh:
		return "内存使用率过高"
	case EventTypeConfigReloaded:
		return "配置已热更新"
	case EventTypeError:
		return "系统错误"
	case EventTypeSystemStart:
		return "系统启动"
	case EventTypeSystemStop:
		return "系统停止"
	default:
		return string(eventType)
	}
}
