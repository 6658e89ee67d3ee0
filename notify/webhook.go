package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quantforge/event"
)

// WebhookNotifier 通用 Webhook 通知器，向任意 HTTP 端点 POST JSON
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL 未配置")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &WebhookNotifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name 返回渠道名称
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// webhookPayload Webhook 请求体
type webhookPayload struct {
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Severity  string                 `json:"severity"`
	Source    string                 `json:"source"`
	Timestamp int64                  `json:"timestamp"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Send 发送通知
func (w *WebhookNotifier) Send(evt *event.Event) error {
	payload := webhookPayload{
		Type:      string(evt.Type),
		Title:     event.GetEventTitle(evt.Type),
		Severity:  string(event.GetEventSeverity(evt.Type)),
		Source:    string(event.GetEventSource(evt.Type)),
		Timestamp: evt.Timestamp.UnixMilli(),
		Message:   formatText(evt),
		Data:      evt.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook 返回状态码 %d", resp.StatusCode)
	}

	return nil
}
