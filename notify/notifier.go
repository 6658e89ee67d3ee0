package notify

import (
	"sync"

	"quantforge/event"
	"quantforge/logger"
)

// Notifier 通知渠道接口
type Notifier interface {
	Send(evt *event.Event) error
	Name() string
}

// Config 通知配置
type Config struct {
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook" json:"webhook"`
	Feishu   FeishuConfig   `yaml:"feishu" json:"feishu"`
}

// TelegramConfig Telegram 渠道配置
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
}

// WebhookConfig 通用 Webhook 渠道配置
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	Timeout int    `yaml:"timeout" json:"timeout"` // 秒
}

// FeishuConfig 飞书渠道配置
type FeishuConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Webhook string `yaml:"webhook" json:"webhook"`
}

// NotificationService 通知服务，把事件异步分发到所有启用的渠道。
// 要不要通知由事件中心的规则决定，这里只负责投递。
type NotificationService struct {
	notifiers []Notifier
}

var _ event.NotificationService = (*NotificationService)(nil)

// NewNotificationService 根据配置创建通知服务
func NewNotificationService(cfg *Config) *NotificationService {
	ns := &NotificationService{}
	if cfg == nil || !cfg.Enabled {
		return ns
	}

	if cfg.Telegram.Enabled {
		if n, err := NewTelegramNotifier(cfg.Telegram); err != nil {
			logger.Warn("⚠️ 初始化 Telegram 通知失败: %v", err)
		} else {
			ns.notifiers = append(ns.notifiers, n)
			logger.Info("✅ Telegram 通知已启用")
		}
	}

	if cfg.Webhook.Enabled {
		if n, err := NewWebhookNotifier(cfg.Webhook); err != nil {
			logger.Warn("⚠️ 初始化 Webhook 通知失败: %v", err)
		} else {
			ns.notifiers = append(ns.notifiers, n)
			logger.Info("✅ Webhook 通知已启用")
		}
	}

	if cfg.Feishu.Enabled {
		if n, err := NewFeishuNotifier(cfg.Feishu); err != nil {
			logger.Warn("⚠️ 初始化飞书通知失败: %v", err)
		} else {
			ns.notifiers = append(ns.notifiers, n)
			logger.Info("✅ 飞书通知已启用")
		}
	}

	return ns
}

// Channels 返回已启用的渠道名称
func (ns *NotificationService) Channels() []string {
	names := make([]string, 0, len(ns.notifiers))
	for _, n := range ns.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Send 发送通知（异步，不阻塞调用方）
func (ns *NotificationService) Send(evt *event.Event) {
	if evt == nil || len(ns.notifiers) == 0 {
		return
	}

	go func() {
		var wg sync.WaitGroup
		for _, notifier := range ns.notifiers {
			wg.Add(1)
			go func(n Notifier) {
				defer wg.Done()
				if err := n.Send(evt); err != nil {
					logger.Warn("⚠️ [%s] 通知发送失败: %v", n.Name(), err)
				}
			}(notifier)
		}
		wg.Wait()
	}()
}
