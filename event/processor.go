package event

// EventProcessor 事件处理器接口。WebSocket 推送层实现它接收事件，
// 接口放在本包避免 web 与 event 的循环依赖。
type EventProcessor interface {
	ProcessEvent(event *Event)
}
