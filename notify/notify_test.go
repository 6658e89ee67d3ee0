package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"quantforge/event"
)

func testEvent() *event.Event {
	return &event.Event{
		Type:      event.EventTypeOptimizationCompleted,
		Timestamp: time.Unix(1600000000, 0),
		Data: map[string]interface{}{
			"strategy":    "ma_cross",
			"evaluations": float64(120),
			"best_score":  1.2345,
		},
	}
}

func TestFormatText(t *testing.T) {
	text := formatText(testEvent())

	if !strings.Contains(text, "参数寻优完成") {
		t.Fatalf("消息缺少事件标题: %s", text)
	}
	if !strings.Contains(text, "ℹ️") {
		t.Fatalf("info 级别事件应使用 ℹ️ 前缀: %s", text)
	}
	if !strings.Contains(text, "来源: optimizer") {
		t.Fatalf("消息缺少事件来源: %s", text)
	}
	if !strings.Contains(text, "best_score: 1.2345") {
		t.Fatalf("消息缺少 best_score 字段: %s", text)
	}
	if !strings.Contains(text, "evaluations: 120") {
		t.Fatalf("整数值不应带小数位: %s", text)
	}

	// Data 按键名排序, best_score 应出现在 strategy 之前
	if strings.Index(text, "best_score") > strings.Index(text, "strategy") {
		t.Fatalf("Data 字段未按键名排序: %s", text)
	}

	critical := &event.Event{Type: event.EventTypeDataFetchFailed, Timestamp: time.Now()}
	if !strings.Contains(formatText(critical), "🚨") {
		t.Fatal("critical 级别事件应使用 🚨 前缀")
	}

	t.Log("✅ 通知消息格式化测试通过")
}

func TestWebhookNotifier(t *testing.T) {
	received := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type 错误: %s", ct)
		}
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(WebhookConfig{Enabled: true, URL: server.URL})
	if err != nil {
		t.Fatalf("创建 Webhook 通知器失败: %v", err)
	}
	if err := n.Send(testEvent()); err != nil {
		t.Fatalf("发送通知失败: %v", err)
	}

	select {
	case p := <-received:
		if p.Type != "optimization_completed" {
			t.Fatalf("事件类型错误: %s", p.Type)
		}
		if p.Severity != "info" {
			t.Fatalf("严重级别错误: %s", p.Severity)
		}
		if p.Source != "optimizer" {
			t.Fatalf("事件来源错误: %s", p.Source)
		}
		if p.Timestamp != 1600000000000 {
			t.Fatalf("时间戳错误: %d", p.Timestamp)
		}
		if !strings.Contains(p.Message, "参数寻优完成") {
			t.Fatalf("消息内容错误: %s", p.Message)
		}
		if p.Data["strategy"] != "ma_cross" {
			t.Fatalf("Data 字段丢失: %v", p.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("未收到 Webhook 请求")
	}

	t.Log("✅ Webhook 通知测试通过")
}

func TestWebhookNotifierBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(WebhookConfig{Enabled: true, URL: server.URL})
	if err != nil {
		t.Fatalf("创建 Webhook 通知器失败: %v", err)
	}
	if err := n.Send(testEvent()); err == nil {
		t.Fatal("非 2xx 状态码应返回错误")
	}

	if _, err := NewWebhookNotifier(WebhookConfig{Enabled: true}); err == nil {
		t.Fatal("缺少 URL 应返回错误")
	}

	t.Log("✅ Webhook 异常分支测试通过")
}

func TestNotificationServiceFanout(t *testing.T) {
	var webhookHits, feishuHits atomic.Int32
	done := make(chan struct{}, 2)

	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHits.Add(1)
		done <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer webhookSrv.Close()

	feishuSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("解析飞书请求体失败: %v", err)
		}
		if p["msg_type"] != "text" {
			t.Errorf("飞书消息类型错误: %v", p["msg_type"])
		}
		feishuHits.Add(1)
		done <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer feishuSrv.Close()

	cfg := &Config{
		Enabled: true,
		Webhook: WebhookConfig{Enabled: true, URL: webhookSrv.URL},
		Feishu:  FeishuConfig{Enabled: true, Webhook: feishuSrv.URL},
	}
	ns := NewNotificationService(cfg)
	if len(ns.Channels()) != 2 {
		t.Fatalf("启用渠道数错误: %v", ns.Channels())
	}

	ns.Send(testEvent())

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("等待通知分发超时")
		}
	}
	if webhookHits.Load() != 1 || feishuHits.Load() != 1 {
		t.Fatalf("渠道命中次数错误: webhook=%d feishu=%d", webhookHits.Load(), feishuHits.Load())
	}

	t.Log("✅ 通知服务分发测试通过")
}

func TestNotificationServiceDisabled(t *testing.T) {
	ns := NewNotificationService(nil)
	if len(ns.Channels()) != 0 {
		t.Fatal("未配置时不应有启用渠道")
	}
	ns.Send(testEvent())

	ns = NewNotificationService(&Config{Enabled: false, Webhook: WebhookConfig{Enabled: true, URL: "http://localhost:1"}})
	if len(ns.Channels()) != 0 {
		t.Fatal("总开关关闭时不应启用任何渠道")
	}

	t.Log("✅ 通知服务禁用测试通过")
}
