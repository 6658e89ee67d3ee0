package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quantforge/database"
	"quantforge/logger"
)

// EventCenter 事件中心：订阅总线，落库、按严重程度触发通知、
// 并把事件转发给注册的处理器（如 WebSocket 推送）
type EventCenter struct {
	db         database.Database
	eventBus   *EventBus
	notifier   NotificationService
	config     *EventCenterConfig
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	processors []EventProcessor

	cpuThreshold float64
	memThreshold float64
}

// EventCenterConfig 事件中心配置
type EventCenterConfig struct {
	Enabled         bool            `yaml:"enabled" json:"enabled"`
	CPUThreshold    float64         `yaml:"cpu_threshold" json:"cpu_threshold"` // 百分比，超过则发系统事件
	MemoryThreshold float64         `yaml:"memory_threshold" json:"memory_threshold"`
	CleanupInterval int             `yaml:"cleanup_interval" json:"cleanup_interval"` // 小时
	Retention       RetentionConfig `yaml:"retention" json:"retention"`
}

// RetentionConfig 保留策略配置
type RetentionConfig struct {
	CriticalDays     int `yaml:"critical_days" json:"critical_days"`
	WarningDays      int `yaml:"warning_days" json:"warning_days"`
	InfoDays         int `yaml:"info_days" json:"info_days"`
	CriticalMaxCount int `yaml:"critical_max_count" json:"critical_max_count"`
	WarningMaxCount  int `yaml:"warning_max_count" json:"warning_max_count"`
	InfoMaxCount     int `yaml:"info_max_count" json:"info_max_count"`
}

// DefaultEventCenterConfig 默认事件中心配置
func DefaultEventCenterConfig() *EventCenterConfig {
	return &EventCenterConfig{
		Enabled:         true,
		CPUThreshold:    85,
		MemoryThreshold: 85,
		CleanupInterval: 24,
		Retention: RetentionConfig{
			CriticalDays:     365,
			WarningDays:      90,
			InfoDays:         30,
			CriticalMaxCount: 100000,
			WarningMaxCount:  50000,
			InfoMaxCount:     30000,
		},
	}
}

// NotificationService 通知服务接口
type NotificationService interface {
	Send(event *Event)
}

// NewEventCenter 创建事件中心
func NewEventCenter(db database.Database, eventBus *EventBus, notifier NotificationService, config *EventCenterConfig) *EventCenter {
	ctx, cancel := context.WithCancel(context.Background())

	ec := &EventCenter{
		db:           db,
		eventBus:     eventBus,
		notifier:     notifier,
		config:       config,
		ctx:          ctx,
		cancel:       cancel,
		cpuThreshold: config.CPUThreshold,
		memThreshold: config.MemoryThreshold,
	}

	return ec
}

// RegisterProcessor 注册事件处理器，每个落库成功的事件都会转发过去
func (ec *EventCenter) RegisterProcessor(p EventProcessor) {
	if p == nil {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.processors = append(ec.processors, p)
}

// Start 启动事件中心
func (ec *EventCenter) Start() error {
	if !ec.config.Enabled {
		logger.Info("⏸️ 事件中心未启用")
		return nil
	}

	logger.Info("🚀 启动事件中心...")

	// 启动事件处理协程
	ec.wg.Add(1)
	go ec.processEvents()

	// 启动清理任务
	ec.wg.Add(1)
	go ec.cleanupTask()

	logger.Info("✅ 事件中心已启动")
	return nil
}

// Stop 停止事件中心
func (ec *EventCenter) Stop() {
	logger.Info("🛑 停止事件中心...")
	ec.cancel()
	ec.wg.Wait()
	logger.Info("✅ 事件中心已停止")
}

// processEvents 处理事件
func (ec *EventCenter) processEvents() {
	defer ec.wg.Done()

	eventCh := ec.eventBus.Subscribe()

	for {
		select {
		case <-ec.ctx.Done():
			ec.eventBus.Unsubscribe(eventCh)
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			ec.handleEvent(event)
		}
	}
}

// handleEvent 处理单个事件
func (ec *EventCenter) handleEvent(event *Event) {
	if event == nil {
		return
	}

	// 获取事件元数据
	severity := GetEventSeverity(event.Type)
	source := GetEventSource(event.Type)
	title := GetEventTitle(event.Type)

	symbol := ec.extractString(event.Data, "symbol")

	// 构建消息
	message := ec.buildMessage(event)

	// 序列化详细信息
	detailsJSON, err := json.Marshal(event.Data)
	if err != nil {
		logger.Warn("⚠️ 序列化事件详情失败: %v", err)
		detailsJSON = []byte("{}")
	}

	// 保存到数据库
	record := &database.EventRecord{
		Type:      string(event.Type),
		Severity:  string(severity),
		Source:    string(source),
		Symbol:    symbol,
		Title:     title,
		Message:   message,
		Details:   string(detailsJSON),
		CreatedAt: event.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ec.db.SaveEvent(ctx, record); err != nil {
		logger.Error("❌ 保存事件失败: %v", err)
		return
	}

	// 分发给注册的处理器
	ec.mu.RLock()
	processors := ec.processors
	ec.mu.RUnlock()
	for _, p := range processors {
		p.ProcessEvent(event)
	}

	// 触发通知（如果需要）
	if ec.notifier != nil && ec.shouldNotify(event.Type, severity) {
		ec.notifier.Send(event)
	}
}

// extractString 从事件数据中提取字符串字段
func (ec *EventCenter) extractString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// buildMessage 构建事件消息
func (ec *EventCenter) buildMessage(event *Event) string {
	switch event.Type {
	case EventTypeBacktestCompleted:
		return ec.buildBacktestMessage(event)
	case EventTypeOptimizationStarted, EventTypeOptimizationProgress,
		EventTypeOptimizationCompleted, EventTypeWalkForwardCompleted:
		return ec.buildOptimizationMessage(event)
	case EventTypeDataFetched, EventTypeDataFetchFailed:
		return ec.buildDataMessage(event)
	case EventTypeSystemCPUHigh, EventTypeSystemMemoryHigh:
		return ec.buildSystemResourceMessage(event)
	default:
		if msg, ok := event.Data["message"].(string); ok {
			return msg
		}
		if err, ok := event.Data["error"].(string); ok {
			return err
		}
		return fmt.Sprintf("事件类型: %s", event.Type)
	}
}

// buildBacktestMessage 构建回测消息
func (ec *EventCenter) buildBacktestMessage(event *Event) string {
	symbol := ec.extractString(event.Data, "symbol")
	strategy := ec.extractString(event.Data, "strategy")
	totalReturn := event.Data["total_return"]
	trades := event.Data["trades"]

	return fmt.Sprintf("%s %s 总收益率 %.2f%% 成交 %v 笔", symbol, strategy, toPercent(totalReturn), trades)
}

// buildOptimizationMessage 构建寻优消息
func (ec *EventCenter) buildOptimizationMessage(event *Event) string {
	strategy := ec.extractString(event.Data, "strategy")

	switch event.Type {
	case EventTypeOptimizationStarted:
		return fmt.Sprintf("%s 共 %v 个参数组合", strategy, event.Data["total"])
	case EventTypeOptimizationProgress:
		return fmt.Sprintf("%s 已完成 %v/%v", strategy, event.Data["completed"], event.Data["total"])
	default:
		if score, ok := event.Data["best_score"].(float64); ok {
			return fmt.Sprintf("%s 最优得分 %.4f", strategy, score)
		}
		return fmt.Sprintf("%s 完成 %v/%v", strategy, event.Data["completed"], event.Data["total"])
	}
}

// buildDataMessage 构建行情数据消息
func (ec *EventCenter) buildDataMessage(event *Event) string {
	symbol := ec.extractString(event.Data, "symbol")
	interval := ec.extractString(event.Data, "interval")
	source := ec.extractString(event.Data, "source")

	if event.Type == EventTypeDataFetchFailed {
		return fmt.Sprintf("%s %s 来源 %s: %s", symbol, interval, source, ec.extractString(event.Data, "error"))
	}
	return fmt.Sprintf("%s %s 来源 %s 共 %v 根", symbol, interval, source, event.Data["bars"])
}

// buildSystemResourceMessage 构建系统资源消息
func (ec *EventCenter) buildSystemResourceMessage(event *Event) string {
	resourceType := ec.extractString(event.Data, "resource_type")
	usage := event.Data["usage"]
	threshold := event.Data["threshold"]

	return fmt.Sprintf("%s 使用率 %.2f%% (阈值: %.2f%%)",
		resourceType, usage, threshold)
}

// toPercent 事件数据里的收益率是小数
func toPercent(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f * 100
	}
	return 0
}

// shouldNotify 判断是否需要发送通知
func (ec *EventCenter) shouldNotify(eventType EventType, severity EventSeverity) bool {
	// Critical 级别的事件总是通知
	if severity == SeverityCritical {
		return true
	}

	// Warning 级别里资源类事件需要通知
	if severity == SeverityWarning {
		switch eventType {
		case EventTypeSystemCPUHigh, EventTypeSystemMemoryHigh:
			return true
		}
	}

	// 寻优和滚动寻优的完成事件主动推送
	switch eventType {
	case EventTypeOptimizationCompleted, EventTypeWalkForwardCompleted:
		return true
	}

	return false
}

// cleanupTask 清理任务
func (ec *EventCenter) cleanupTask() {
	defer ec.wg.Done()

	// 首次等待1小时后再开始清理
	timer := time.NewTimer(1 * time.Hour)
	defer timer.Stop()

	interval := ec.config.CleanupInterval
	if interval <= 0 {
		interval = 24
	}

	for {
		select {
		case <-ec.ctx.Done():
			return
		case <-timer.C:
			ec.performCleanup()
			// 重置定时器
			timer.Reset(time.Duration(interval) * time.Hour)
		}
	}
}

// performCleanup 执行清理
func (ec *EventCenter) performCleanup() {
	logger.Info("🧹 开始清理旧事件...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// 清理 Critical 事件
	if err := ec.db.CleanupOldEvents(ctx, "critical",
		ec.config.Retention.CriticalMaxCount,
		ec.config.Retention.CriticalDays); err != nil {
		logger.Error("❌ 清理 Critical 事件失败: %v", err)
	}

	// 清理 Warning 事件
	if err := ec.db.CleanupOldEvents(ctx, "warning",
		ec.config.Retention.WarningMaxCount,
		ec.config.Retention.WarningDays); err != nil {
		logger.Error("❌ 清理 Warning 事件失败: %v", err)
	}

	// 清理 Info 事件
	if err := ec.db.CleanupOldEvents(ctx, "info",
		ec.config.Retention.InfoMaxCount,
		ec.config.Retention.InfoDays); err != nil {
		logger.Error("❌ 清理 Info 事件失败: %v", err)
	}

	logger.Info("✅ 事件清理完成")
}

// PublishEvent 发布事件（便捷方法）
func (ec *EventCenter) PublishEvent(eventType EventType, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ec.eventBus.Publish(event)
}

// CheckResourceUsage 检查系统资源占用，超过阈值时发布系统事件。
// 由监控采样器在寻优扫描期间周期性调用。
func (ec *EventCenter) CheckResourceUsage(cpuPercent, memPercent float64) {
	if ec.cpuThreshold > 0 && cpuPercent >= ec.cpuThreshold {
		ec.PublishEvent(EventTypeSystemCPUHigh, map[string]interface{}{
			"resource_type": "CPU",
			"usage":         cpuPercent,
			"threshold":     ec.cpuThreshold,
		})
	}
	if ec.memThreshold > 0 && memPercent >= ec.memThreshold {
		ec.PublishEvent(EventTypeSystemMemoryHigh, map[string]interface{}{
			"resource_type": "内存",
			"usage":         memPercent,
			"threshold":     ec.memThreshold,
		})
	}
}
