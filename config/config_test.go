package config

import (
	"os"
	"path/filepath"
	"testing"

	"quantforge/optimizer"
)

func TestLoadConfigFromBytes(t *testing.T) {
	yamlDoc := `
system:
  log_level: DEBUG
  timezone: Asia/Shanghai
optimizer:
  workers: 4
  max_combinations: 5000
  objective: calmar_ratio
data:
  source: binance
  binance:
    testnet: true
web:
  enabled: true
  port: 9090
cache:
  enabled: true
  addr: localhost:6379
  ttl_hours: 6
`
	cfg, err := LoadConfigFromBytes([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.System.LogLevel != "DEBUG" || cfg.System.Timezone != "Asia/Shanghai" {
		t.Errorf("系统配置解析错误: %+v", cfg.System)
	}
	if cfg.Optimizer.Workers != 4 || cfg.Optimizer.MaxCombinations != 5000 {
		t.Errorf("寻优配置解析错误: %+v", cfg.Optimizer)
	}
	if cfg.Optimizer.Objective != optimizer.ObjectiveCalmar {
		t.Errorf("目标函数解析错误: %s", cfg.Optimizer.Objective)
	}
	if cfg.Data.Source != "binance" || !cfg.Data.Binance.Testnet {
		t.Errorf("数据源配置解析错误: %+v", cfg.Data)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("Web 端口解析错误: %d", cfg.Web.Port)
	}

	// 未写的字段应保留默认值
	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("Web 监听地址默认值错误: %s", cfg.Web.Host)
	}
	if cfg.Engine.Cost.InitialCapital != 100000 {
		t.Errorf("初始资金默认值错误: %.2f", cfg.Engine.Cost.InitialCapital)
	}
	if cfg.Storage.Path != "data/market.db" {
		t.Errorf("存储路径默认值错误: %s", cfg.Storage.Path)
	}

	t.Log("✅ 配置加载与默认值测试通过")
}

func TestLoadConfigInvalid(t *testing.T) {
	if _, err := LoadConfigFromBytes([]byte("system: [")); err == nil {
		t.Error("非法 YAML 应该报错")
	}

	if _, err := LoadConfigFromBytes([]byte("optimizer:\n  objective: max_profit\n")); err == nil {
		t.Error("不支持的目标函数应该报错")
	}

	if _, err := LoadConfigFromBytes([]byte("system:\n  timezone: Mars/Olympus\n")); err == nil {
		t.Error("无效时区应该报错")
	}

	if _, err := LoadConfigFromBytes([]byte("data:\n  source: yahoo\n")); err == nil {
		t.Error("不支持的数据源应该报错")
	}

	if _, err := LoadConfigFromBytes([]byte("web:\n  port: 70000\n")); err == nil {
		t.Error("越界端口应该报错")
	}

	t.Log("✅ 配置校验测试通过")
}

func TestValidateDefaults(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("空配置验证失败: %v", err)
	}

	if cfg.System.LogLevel != "INFO" {
		t.Errorf("日志级别默认值错误: %s", cfg.System.LogLevel)
	}
	if cfg.System.Timezone != "UTC" {
		t.Errorf("时区默认值错误: %s", cfg.System.Timezone)
	}
	if cfg.Engine.Cost.InitialCapital != 100000 {
		t.Errorf("初始资金默认值错误: %.2f", cfg.Engine.Cost.InitialCapital)
	}
	if cfg.Optimizer.Objective != optimizer.ObjectiveSharpe {
		t.Errorf("目标函数默认值错误: %s", cfg.Optimizer.Objective)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Web 端口默认值错误: %d", cfg.Web.Port)
	}
	if cfg.Metrics.CollectInterval != 15 {
		t.Errorf("采集间隔默认值错误: %d", cfg.Metrics.CollectInterval)
	}
	if cfg.EventCenter.CPUThreshold != 85 {
		t.Errorf("CPU 阈值默认值错误: %.1f", cfg.EventCenter.CPUThreshold)
	}

	t.Log("✅ 默认值补齐测试通过")
}

func TestConfigDiff(t *testing.T) {
	oldCfg := DefaultConfig()
	newCfg := DefaultConfig()

	// 1. 无变更
	diff := DiffConfig(oldCfg, newCfg)
	if len(diff.Changes) != 0 {
		t.Errorf("预期无变更, 得到 %d 个: %+v", len(diff.Changes), diff.Changes)
	}

	// 2. 修改可热更新项
	newCfg.Optimizer.Workers = 8
	diff = DiffConfig(oldCfg, newCfg)
	if len(diff.Changes) != 1 {
		t.Fatalf("预期1个变更, 得到 %d 个", len(diff.Changes))
	}
	if diff.Changes[0].Path != "optimizer.workers" {
		t.Errorf("变更路径错误: %s", diff.Changes[0].Path)
	}
	if diff.RequiresRestart {
		t.Error("修改 optimizer.workers 不应需要重启")
	}

	// 3. 修改需要重启的项
	newCfg.Web.Port = 9999
	diff = DiffConfig(oldCfg, newCfg)
	foundRestart := false
	for _, c := range diff.Changes {
		if c.Path == "web.port" && c.RequiresRestart {
			foundRestart = true
		}
	}
	if !foundRestart {
		t.Error("修改 web.port 应该标记为需要重启")
	}
	if !diff.RequiresRestart {
		t.Error("差异应整体标记为需要重启")
	}

	t.Log("✅ 配置差异对比测试通过")
}

func TestHotReloader(t *testing.T) {
	reloader := NewHotReloader(DefaultConfig())

	var gotChanges []ConfigChange
	reloader.RegisterCallback(func(old, new *Config, changes []ConfigChange) error {
		gotChanges = changes
		return nil
	})

	// 纯热更新变更：整份配置替换
	newCfg := DefaultConfig()
	newCfg.Optimizer.Workers = 8
	diff, err := reloader.UpdateConfig(newCfg)
	if err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}
	if diff.RequiresRestart {
		t.Error("纯热更新变更不应标记重启")
	}
	if len(gotChanges) != 1 {
		t.Errorf("回调收到的变更数错误: %d", len(gotChanges))
	}
	if reloader.GetCurrentConfig().Optimizer.Workers != 8 {
		t.Errorf("配置未更新: %d", reloader.GetCurrentConfig().Optimizer.Workers)
	}

	// 混合变更：热更新部分生效，重启部分不动
	mixedCfg := DefaultConfig()
	mixedCfg.Optimizer.Workers = 16
	mixedCfg.Web.Port = 9999
	diff, err = reloader.UpdateConfig(mixedCfg)
	if err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}
	if !diff.RequiresRestart {
		t.Error("混合变更应标记重启")
	}

	current := reloader.GetCurrentConfig()
	if current.Optimizer.Workers != 16 {
		t.Errorf("可热更新的部分未生效: %d", current.Optimizer.Workers)
	}
	if current.Web.Port != 8080 {
		t.Errorf("需要重启的部分不应被应用: %d", current.Web.Port)
	}

	t.Log("✅ 热更新测试通过")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.System.LogLevel = "WARN"
	cfg.Optimizer.Workers = 6
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = "localhost:6379"
	cfg.Cache.TTLHours = 12
	cfg.Notifications.Enabled = true
	cfg.Notifications.Webhook.Enabled = true
	cfg.Notifications.Webhook.URL = "http://localhost:9000/hook"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("重新加载配置失败: %v", err)
	}

	if loaded.System.LogLevel != "WARN" {
		t.Errorf("日志级别往返错误: %s", loaded.System.LogLevel)
	}
	if loaded.Optimizer.Workers != 6 {
		t.Errorf("寻优并发往返错误: %d", loaded.Optimizer.Workers)
	}
	if loaded.Cache.TTLHours != 12 {
		t.Errorf("缓存 TTL 往返错误: %d", loaded.Cache.TTLHours)
	}
	if loaded.Notifications.Webhook.URL != "http://localhost:9000/hook" {
		t.Errorf("通知配置往返错误: %s", loaded.Notifications.Webhook.URL)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("不存在的配置文件应该报错")
	}

	_ = os.Remove(path)
	t.Log("✅ 配置保存与加载往返测试通过")
}
