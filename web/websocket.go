package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"quantforge/event"
	"quantforge/metrics"
	"quantforge/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源（生产环境应该限制）
	},
}

// WebSocketHub WebSocket 中心，把研究事件广播给所有连接。
// 实现 event.EventProcessor，由事件中心在事件落库后转发过来。
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

var (
	hub          *WebSocketHub
	logStorage   *storage.LogStorage
	logStorageMu sync.RWMutex
)

func init() {
	hub = &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
	go hub.Run()
}

// SetLogStorage 设置日志存储（用于实时推送）
func SetLogStorage(ls *storage.LogStorage) {
	logStorageMu.Lock()
	defer logStorageMu.Unlock()
	logStorage = ls
}

// EventHub 返回全局 WebSocket 中心，main.go 把它注册到事件中心
func EventHub() *WebSocketHub {
	return hub
}

// ProcessEvent 实现 event.EventProcessor，把事件转成 JSON 广播。
// 进度事件很密集，广播通道满时直接丢弃，不阻塞事件中心。
func (h *WebSocketHub) ProcessEvent(evt *event.Event) {
	if evt == nil {
		return
	}
	payload := map[string]interface{}{
		"type": "event",
		"data": map[string]interface{}{
			"event_type": string(evt.Type),
			"severity":   string(event.GetEventSeverity(evt.Type)),
			"source":     string(event.GetEventSource(evt.Type)),
			"title":      event.GetEventTitle(evt.Type),
			"timestamp":  evt.Timestamp.Format(time.RFC3339),
			"data":       evt.Data,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.Broadcast(data)
}

// Run 运行 WebSocket 中心
func (h *WebSocketHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketClients(h.clientCount())

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketClients(h.clientCount())

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WebSocketHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 非阻塞广播，通道满时丢弃
func (h *WebSocketHub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
	}
}

// handleWebSocket 处理 WebSocket 连接
// GET /ws?subscribe_logs=true 时额外推送实时日志
func handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	hub.register <- conn

	var logCh chan *storage.LogRecord
	if c.Query("subscribe_logs") == "true" {
		logStorageMu.RLock()
		ls := logStorage
		logStorageMu.RUnlock()

		if ls != nil {
			logCh = ls.Subscribe()
			defer ls.Unsubscribe(logCh)
		}
	}

	// 日志推送协程，连接断开时随写失败退出
	if logCh != nil {
		go func() {
			for record := range logCh {
				message := map[string]interface{}{
					"type": "log",
					"data": map[string]interface{}{
						"id":        record.ID,
						"timestamp": record.Timestamp,
						"level":     record.Level,
						"message":   record.Message,
					},
				}
				data, err := json.Marshal(message)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}()
	}

	// 保持连接，读到错误即注销
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.unregister <- conn
			break
		}
	}
}
