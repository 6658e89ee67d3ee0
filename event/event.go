package event

import (
	"sync"
	"time"

	"quantforge/logger"
)

// EventType 事件类型
type EventType string

const (
	EventTypeBacktestCompleted     EventType = "backtest_completed"
	EventTypeOptimizationStarted   EventType = "optimization_started"
	EventTypeOptimizationProgress  EventType = "optimization_progress"
	EventTypeOptimizationCompleted EventType = "optimization_completed"
	EventTypeWalkForwardCompleted  EventType = "walk_forward_completed"
	EventTypeDataFetched           EventType = "data_fetched"
	EventTypeDataFetchFailed       EventType = "data_fetch_failed"
	EventTypeSystemCPUHigh         EventType = "system_cpu_high"
	EventTypeSystemMemoryHigh      EventType = "system_memory_high"
	EventTypeConfigReloaded        EventType = "config_reloaded"
	EventTypeError                 EventType = "error"
	EventTypeSystemStart           EventType = "system_start"
	EventTypeSystemStop            EventType = "system_stop"
)

// Event 事件结构
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventBus 事件总线。支持多个订阅者，发布端永不阻塞：
// 某个订阅者的缓冲满了就对它丢弃并告警，不影响其他订阅者。
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan *Event
	bufferSize  int
	closed      bool
}

// NewEventBus 创建事件总线
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 1000 // 默认1000
	}
	return &EventBus{
		bufferSize: bufferSize,
	}
}

// Publish 发布事件（非阻塞）
func (eb *EventBus) Publish(event *Event) {
	if event == nil {
		return
	}

	// 设置时间戳
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
			// 成功投递
		default:
			// 该订阅者的队列满了，丢弃但不阻塞
			logger.Warn("⚠️ 事件队列已满，丢弃事件: %s", event.Type)
		}
	}
}

// Subscribe 订阅事件，每个订阅者拿到自己的 channel
func (eb *EventBus) Subscribe() <-chan *Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan *Event, eb.bufferSize)
	if eb.closed {
		close(ch)
		return ch
	}
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭对应 channel
func (eb *EventBus) Unsubscribe(sub <-chan *Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, ch := range eb.subscribers {
		if ch == sub {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close 关闭事件总线，关闭所有订阅者 channel
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, ch := range eb.subscribers {
		close(ch)
	}
	eb.subscribers = nil
}
