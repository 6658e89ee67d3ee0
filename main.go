package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"quantforge/backtest"
	"quantforge/cache"
	"quantforge/config"
	"quantforge/database"
	"quantforge/datasource"
	"quantforge/event"
	"quantforge/indicators"
	"quantforge/lock"
	"quantforge/logger"
	"quantforge/metrics"
	"quantforge/monitor"
	"quantforge/notify"
	"quantforge/optimizer"
	"quantforge/storage"
	"quantforge/strategy"
	"quantforge/web"
)

// Version 版本号
var Version = "1.2.0"

func usage() {
	fmt.Println("QuantForge 回测与参数寻优引擎")
	fmt.Printf("版本: %s\n\n", Version)
	fmt.Println("用法: quantforge <子命令> [选项]")
	fmt.Println()
	fmt.Println("子命令:")
	fmt.Println("  serve        启动研究服务（Web API + WebSocket + 监控）")
	fmt.Println("  backtest     运行单次策略回测")
	fmt.Println("  optimize     在参数网格上并行寻优")
	fmt.Println("  walkforward  滚动窗口寻优（训练段寻优 + 测试段样本外验证）")
	fmt.Println("  fetch        拉取历史K线到本地缓存，可导出 CSV/Parquet")
	fmt.Println("  hashkey      生成 web.api_key 用的 bcrypt 哈希")
	fmt.Println("  version      输出版本号")
	fmt.Println()
	fmt.Println("各子命令支持 -h 查看选项。")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "backtest":
		runBacktestCmd(os.Args[2:])
	case "optimize":
		runOptimizeCmd(os.Args[2:])
	case "walkforward":
		runWalkForwardCmd(os.Args[2:])
	case "fetch":
		runFetchCmd(os.Args[2:])
	case "hashkey":
		runHashKeyCmd(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("QuantForge %s\n", Version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Printf("未知子命令: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// loadEngineConfig 加载配置文件并初始化日志。
// 文件不存在时使用默认配置，本地研究不强制写配置。
func loadEngineConfig(path string) *config.Config {
	var cfg *config.Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			fmt.Printf("加载配置失败: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))
	if loc, err := time.LoadLocation(cfg.System.Timezone); err == nil {
		logger.SetLocation(loc)
	}

	return cfg
}

// ========== serve ==========

// runServe 启动完整的研究服务：存储、数据库、事件中心、
// 数据管理器、指标采集和 Web API，直到收到退出信号。
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	fs.Parse(args)

	cfg := loadEngineConfig(*configPath)

	logger.Info("🚀 QuantForge 研究服务启动...")
	logger.Info("📦 版本号: %s", Version)

	// 1. 存储服务（K线缓存 + 日志落盘 + 监控采样）
	var storageService *storage.Service
	if cfg.Storage.Enabled {
		svc, err := storage.NewService(&cfg.Storage)
		if err != nil {
			logger.Warn("⚠️ 初始化存储服务失败: %v，继续运行但没有K线缓存和日志落盘", err)
		} else {
			storageService = svc
			storageService.Start()
			web.SetStorageService(storageService)
			web.SetLogStorage(storageService.Logs())
		}
	}

	// 2. 研究结果数据库
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Error("❌ 初始化数据库失败: %v", err)
		teardown(storageService, nil, nil, nil, nil)
		os.Exit(1)
	}
	web.SetDatabase(db)

	// 3. 事件总线与事件中心
	eventBus := event.NewEventBus(1000)
	web.SetEventBus(eventBus)

	notifier := notify.NewNotificationService(&cfg.Notifications)
	if channels := notifier.Channels(); len(channels) > 0 {
		logger.Info("📣 通知渠道: %s", strings.Join(channels, ", "))
	}

	eventCenter := event.NewEventCenter(db, eventBus, notifier, &cfg.EventCenter)
	eventCenter.RegisterProcessor(web.EventHub())
	if err := eventCenter.Start(); err != nil {
		logger.Warn("⚠️ 启动事件中心失败: %v", err)
	}

	// 4. 行情数据管理器（缓存优先，可选 Binance 补抓）
	if storageService != nil {
		var source datasource.Source
		if cfg.Data.Source == "binance" {
			source = datasource.NewBinanceSource(&cfg.Data.Binance)
		}
		web.SetDataManager(datasource.NewManager(storageService.Store(), source, eventBus))
	}

	// 5. 回测指标缓存与寻优锁（Redis，可选）
	scoreCache := cache.NewScoreCache(&cfg.Cache)
	web.SetScoreCache(scoreCache, cfg.Cache.DefaultTTL())

	sweepLock := lock.NewDistributedLock(&cfg.SweepLock)
	web.SetSweepLock(sweepLock, cfg.SweepLock.DefaultTTL())

	// 6. 运行统计与 Prometheus 运行时采集
	web.SetStatsCollector(metrics.NewStatsCollector())
	var sysCollector *metrics.SystemMetricsCollector
	if cfg.Metrics.Enabled {
		sysCollector = metrics.NewSystemMetricsCollector(time.Duration(cfg.Metrics.CollectInterval) * time.Second)
		sysCollector.Start()
	}

	// 7. 配置热更新：fsnotify 监听 + 可热更字段原地生效
	hotReloader := config.NewHotReloader(cfg)
	hotReloader.RegisterCallback(func(oldCfg, newCfg *config.Config, changes []config.ConfigChange) error {
		logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
		eventBus.Publish(&event.Event{
			Type: event.EventTypeConfigReloaded,
			Data: map[string]interface{}{"changes": len(changes)},
		})
		return nil
	})
	web.SetConfigReloader(hotReloader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *config.ConfigWatcher
	if _, statErr := os.Stat(*configPath); statErr == nil {
		watcher, err = config.NewConfigWatcher(*configPath, hotReloader)
		if err != nil {
			logger.Warn("⚠️ 初始化配置监听失败: %v", err)
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("⚠️ 启动配置监听失败: %v", err)
		}
	}

	// 8. Web 服务
	webServer := web.NewWebServer(cfg)
	if webServer != nil {
		if err := webServer.Start(ctx); err != nil {
			logger.Error("❌ 启动Web服务失败: %v", err)
		}
	} else {
		logger.Info("⏸️ Web服务未启用")
	}

	eventBus.Publish(&event.Event{
		Type: event.EventTypeSystemStart,
		Data: map[string]interface{}{"version": Version},
	})

	logger.Info("✅ 服务就绪: %d 个策略, %d 个指标, 硬件并行度 %d",
		len(strategy.Kinds()), len(indicators.ListIndicators()), monitor.DetectParallelism())

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("🛑 收到信号 %v，开始优雅退出...", sig)

	eventBus.Publish(&event.Event{
		Type: event.EventTypeSystemStop,
		Data: map[string]interface{}{"version": Version},
	})
	// 给事件中心一点时间消费停止事件
	time.Sleep(200 * time.Millisecond)

	cancel()
	if watcher != nil {
		watcher.Stop()
	}
	teardown(storageService, db, eventCenter, eventBus, sysCollector)
	if err := scoreCache.Close(); err != nil {
		logger.Warn("⚠️ 关闭缓存失败: %v", err)
	}
	if err := sweepLock.Close(); err != nil {
		logger.Warn("⚠️ 关闭寻优锁失败: %v", err)
	}
	logger.Info("👋 QuantForge 已退出")
	logger.Close()
}

// teardown 逆序释放 serve 的各组件，容忍部分组件未初始化
func teardown(storageService *storage.Service, db database.Database,
	eventCenter *event.EventCenter, eventBus *event.EventBus,
	sysCollector *metrics.SystemMetricsCollector) {
	if sysCollector != nil {
		sysCollector.Stop()
	}
	if eventCenter != nil {
		eventCenter.Stop()
	}
	if eventBus != nil {
		eventBus.Close()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Warn("⚠️ 关闭数据库失败: %v", err)
		}
	}
	if storageService != nil {
		storageService.Stop()
	}
}

// ========== backtest ==========

func runBacktestCmd(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	strategyName := fs.String("strategy", "", "策略名称")
	paramsArg := fs.String("params", "", "策略参数，如 fast_period=10,slow_period=30")
	dataPath := fs.String("data", "", "本地数据文件（CSV 或 Parquet）")
	symbol := fs.String("symbol", "", "交易对（不用 -data 时从缓存/交易所取数）")
	interval := fs.String("interval", "1h", "K线周期")
	startArg := fs.String("start", "", "开始时间（2006-01-02 或 RFC3339）")
	endArg := fs.String("end", "", "结束时间")
	report := fs.Bool("report", false, "生成 Markdown 报告、权益曲线 CSV 和 HTML 图表")
	showTrades := fs.Bool("trades", false, "输出成交明细")
	fs.Parse(args)

	if *strategyName == "" {
		fmt.Println("缺少 -strategy 参数，可用策略:", strings.Join(strategy.Kinds(), ", "))
		os.Exit(1)
	}

	cfg := loadEngineConfig(*configPath)

	params, err := parseParams(*paramsArg)
	if err != nil {
		fmt.Printf("参数解析失败: %v\n", err)
		os.Exit(1)
	}
	variant, err := strategy.FromParams(*strategyName, params)
	if err != nil {
		fmt.Printf("策略构造失败: %v\n", err)
		os.Exit(1)
	}

	candles := loadCandlesOrExit(cfg, *dataPath, *symbol, *interval, *startArg, *endArg)

	begin := time.Now()
	result, err := strategy.RunStrategyBacktest(candles, variant, cfg.Engine.Cost)
	if err != nil {
		fmt.Printf("回测失败: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(begin)

	fmt.Printf("\n策略 %s 回测完成（%d 根K线, 耗时 %v）\n", variant.Name(), len(candles), elapsed.Round(time.Millisecond))
	printMetrics(&result.Metrics, result.FinalValue, result.Config.InitialCapital)

	if *showTrades {
		printTrades(result.Trades)
	}

	if *report {
		meta := backtest.ReportMeta{Strategy: *strategyName, Symbol: *symbol}
		if path, err := backtest.GenerateReport(result, meta); err != nil {
			fmt.Printf("生成报告失败: %v\n", err)
		} else {
			fmt.Printf("报告: %s\n", path)
		}
		if path, err := backtest.SaveEquityCurveCSV(result, meta); err == nil {
			fmt.Printf("权益曲线: %s\n", path)
		}
		if path, err := backtest.SaveEquityChartHTML(result, meta); err == nil {
			fmt.Printf("图表: %s\n", path)
		}
	}
}

// ========== optimize / walkforward ==========

func runOptimizeCmd(args []string) {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	strategyName := fs.String("strategy", "", "策略名称")
	rangesArg := fs.String("ranges", "", "参数网格，如 fast_period=5:30:5,slow_period=20:60:10")
	objectiveArg := fs.String("objective", "", "寻优目标（sharpe_ratio/total_return/calmar_ratio/sortino_ratio）")
	workers := fs.Int("workers", 0, "工作协程数（0 取硬件并行度）")
	maxCombos := fs.Int("max", 0, "组合数上限（0 取默认）")
	deadline := fs.Duration("deadline", 0, "寻优时限，如 5m（0 不限时）")
	topK := fs.Int("top", 10, "输出前 N 个组合")
	dataPath := fs.String("data", "", "本地数据文件（CSV 或 Parquet）")
	symbol := fs.String("symbol", "", "交易对")
	interval := fs.String("interval", "1h", "K线周期")
	startArg := fs.String("start", "", "开始时间")
	endArg := fs.String("end", "", "结束时间")
	fs.Parse(args)

	cfg, req := buildCLISweepRequest(*configPath, *strategyName, *rangesArg, *objectiveArg, *workers, *maxCombos, *deadline)
	candles := loadCandlesOrExit(cfg, *dataPath, *symbol, *interval, *startArg, *endArg)

	req.Observers = []optimizer.Observer{newConsoleObserver()}

	// 数据来自K线库时才可用指标缓存：symbol+interval+范围能唯一标识数据，本地文件不能
	if *dataPath == "" && cfg.Cache.Enabled {
		sc := cache.NewScoreCache(&cfg.Cache)
		defer sc.Close()
		req.Cache = sc
		req.CacheDataset = *symbol + ":" + *interval
		req.CacheTTL = cfg.Cache.DefaultTTL()
	}

	result, err := optimizer.Optimize(candles, req)
	if err != nil {
		fmt.Printf("寻优失败: %v\n", err)
		os.Exit(1)
	}

	printSweepResult(result, *topK)
}

func runWalkForwardCmd(args []string) {
	fs := flag.NewFlagSet("walkforward", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	strategyName := fs.String("strategy", "", "策略名称")
	rangesArg := fs.String("ranges", "", "参数网格，如 fast_period=5:30:5")
	objectiveArg := fs.String("objective", "", "寻优目标")
	workers := fs.Int("workers", 0, "工作协程数（0 取硬件并行度）")
	maxCombos := fs.Int("max", 0, "组合数上限（0 取默认）")
	deadline := fs.Duration("deadline", 0, "单窗口寻优时限（0 不限时）")
	trainBars := fs.Int("train", 500, "训练窗口K线数")
	testBars := fs.Int("test", 100, "测试窗口K线数")
	stepBars := fs.Int("step", 100, "窗口步进K线数")
	dataPath := fs.String("data", "", "本地数据文件（CSV 或 Parquet）")
	symbol := fs.String("symbol", "", "交易对")
	interval := fs.String("interval", "1h", "K线周期")
	startArg := fs.String("start", "", "开始时间")
	endArg := fs.String("end", "", "结束时间")
	fs.Parse(args)

	cfg, req := buildCLISweepRequest(*configPath, *strategyName, *rangesArg, *objectiveArg, *workers, *maxCombos, *deadline)
	candles := loadCandlesOrExit(cfg, *dataPath, *symbol, *interval, *startArg, *endArg)

	wfCfg := optimizer.WalkForwardConfig{TrainBars: *trainBars, TestBars: *testBars, StepBars: *stepBars}
	if err := wfCfg.Validate(); err != nil {
		fmt.Printf("窗口配置无效: %v\n", err)
		os.Exit(1)
	}

	// 数据来自K线库时才可用指标缓存，各窗口的键由窗口范围区分
	if *dataPath == "" && cfg.Cache.Enabled {
		sc := cache.NewScoreCache(&cfg.Cache)
		defer sc.Close()
		req.Cache = sc
		req.CacheDataset = *symbol + ":" + *interval
		req.CacheTTL = cfg.Cache.DefaultTTL()
	}

	begin := time.Now()
	windows, err := optimizer.WalkForward(candles, req, wfCfg)
	if err != nil {
		fmt.Printf("滚动寻优失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n滚动寻优完成: %d 个窗口, 耗时 %v\n", len(windows), time.Since(begin).Round(time.Millisecond))
	fmt.Printf("%-6s %-28s %-12s %-12s %s\n", "窗口", "区间(训练|测试)", "训练得分", "测试得分", "最优参数")
	positive := 0
	for _, w := range windows {
		span := fmt.Sprintf("[%d,%d)|[%d,%d)", w.TrainStart, w.TrainEnd, w.TestStart, w.TestEnd)
		testScore := "失败"
		if w.TestErr == "" {
			testScore = fmt.Sprintf("%.4f", w.TestScore)
			if w.TestScore > 0 {
				positive++
			}
		}
		fmt.Printf("%-6d %-28s %-12.4f %-12s %s\n", w.Window, span, w.TrainScore, testScore, formatParams(w.BestParams))
	}
	if len(windows) > 0 {
		fmt.Printf("样本外得分为正的窗口: %d/%d\n", positive, len(windows))
	}
}

// buildCLISweepRequest 组装命令行寻优请求，缺省值取自配置
func buildCLISweepRequest(configPath, strategyName, rangesArg, objectiveArg string,
	workers, maxCombos int, deadline time.Duration) (*config.Config, optimizer.Request) {
	if strategyName == "" {
		fmt.Println("缺少 -strategy 参数，可用策略:", strings.Join(strategy.Kinds(), ", "))
		os.Exit(1)
	}
	if rangesArg == "" {
		fmt.Println("缺少 -ranges 参数，示例: -ranges fast_period=5:30:5,slow_period=20:60:10")
		os.Exit(1)
	}

	cfg := loadEngineConfig(configPath)

	ranges, err := parseRanges(rangesArg)
	if err != nil {
		fmt.Printf("网格解析失败: %v\n", err)
		os.Exit(1)
	}

	objective := optimizer.Objective(objectiveArg)
	if objectiveArg == "" {
		objective = cfg.Optimizer.Objective
	}
	if workers <= 0 {
		workers = cfg.Optimizer.Workers
	}
	if maxCombos <= 0 {
		maxCombos = cfg.Optimizer.MaxCombinations
	}

	return cfg, optimizer.Request{
		Strategy:        strategyName,
		Ranges:          ranges,
		Objective:       objective,
		Cost:            cfg.Engine.Cost,
		Workers:         workers,
		MaxCombinations: maxCombos,
		Deadline:        deadline,
	}
}

// ========== fetch ==========

func runFetchCmd(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
	interval := fs.String("interval", "1h", "K线周期")
	startArg := fs.String("start", "", "开始时间（2006-01-02 或 RFC3339）")
	endArg := fs.String("end", "", "结束时间（默认当前时间）")
	outPath := fs.String("out", "", "导出文件（.csv 或 .parquet，可选）")
	fs.Parse(args)

	if *symbol == "" || *startArg == "" {
		fmt.Println("缺少 -symbol 或 -start 参数")
		os.Exit(1)
	}

	cfg := loadEngineConfig(*configPath)
	candles := loadCandlesOrExit(cfg, "", *symbol, *interval, *startArg, *endArg)

	fmt.Printf("已获取 %d 根K线: %s %s\n", len(candles), *symbol, *interval)
	if len(candles) > 0 {
		fmt.Printf("范围: %s ~ %s\n",
			time.UnixMilli(candles[0].Time).UTC().Format(time.RFC3339),
			time.UnixMilli(candles[len(candles)-1].Time).UTC().Format(time.RFC3339))
	}

	if *outPath != "" {
		if err := datasource.WriteFile(*outPath, candles); err != nil {
			fmt.Printf("导出失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("已导出: %s\n", *outPath)
	}
}

// ========== hashkey ==========

func runHashKeyCmd(args []string) {
	if len(args) < 1 || args[0] == "" {
		fmt.Println("用法: quantforge hashkey <明文密钥>")
		os.Exit(1)
	}

	hash, err := web.HashAPIKey(args[0])
	if err != nil {
		fmt.Printf("生成哈希失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("把下面这段写进配置文件:")
	fmt.Printf("web:\n  api_key: \"%s\"\n", hash)
}

// ========== 数据加载 ==========

// loadCandlesOrExit 按优先级加载K线：本地文件 > 缓存/交易所。
// 任一环节失败直接退出进程，命令行场景没有降级空间。
func loadCandlesOrExit(cfg *config.Config, dataPath, symbol, interval, startArg, endArg string) []indicators.Candle {
	if dataPath != "" {
		candles, err := datasource.LoadFile(dataPath)
		if err != nil {
			fmt.Printf("加载数据文件失败: %v\n", err)
			os.Exit(1)
		}
		if len(candles) == 0 {
			fmt.Printf("数据文件为空: %s\n", dataPath)
			os.Exit(1)
		}
		fmt.Printf("已加载 %d 根K线: %s\n", len(candles), filepath.Base(dataPath))
		return candles
	}

	if symbol == "" || startArg == "" {
		fmt.Println("需要 -data 指定数据文件，或用 -symbol/-start 从缓存和交易所取数")
		os.Exit(1)
	}

	startTime, err := parseTimeArg(startArg)
	if err != nil {
		fmt.Printf("开始时间解析失败: %v\n", err)
		os.Exit(1)
	}
	endTime := time.Now()
	if endArg != "" {
		endTime, err = parseTimeArg(endArg)
		if err != nil {
			fmt.Printf("结束时间解析失败: %v\n", err)
			os.Exit(1)
		}
	}
	if !endTime.After(startTime) {
		fmt.Println("结束时间必须晚于开始时间")
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		fmt.Printf("打开K线缓存失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var source datasource.Source
	if cfg.Data.Source == "binance" {
		source = datasource.NewBinanceSource(&cfg.Data.Binance)
	}

	manager := datasource.NewManager(store, source, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	candles, err := manager.GetCandles(ctx, symbol, interval, startTime.UnixMilli(), endTime.UnixMilli())
	if err != nil {
		fmt.Printf("获取K线失败: %v\n", err)
		os.Exit(1)
	}
	if len(candles) == 0 {
		fmt.Println("指定范围内没有K线数据")
		os.Exit(1)
	}
	return candles
}

// parseTimeArg 支持日期、RFC3339 和毫秒时间戳三种格式
func parseTimeArg(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("无法识别的时间格式: %s", s)
}

// parseParams 解析 name=value,name=value 形式的参数表
func parseParams(s string) (map[string]float64, error) {
	params := make(map[string]float64)
	if strings.TrimSpace(s) == "" {
		return params, nil
	}
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("无效的参数项: %s", pair)
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("参数 %s 的值无效: %s", parts[0], parts[1])
		}
		params[parts[0]] = v
	}
	return params, nil
}

// parseRanges 解析 name=min:max:step 形式的参数网格
func parseRanges(s string) (map[string]optimizer.ParameterRange, error) {
	ranges := make(map[string]optimizer.ParameterRange)
	for _, item := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("无效的网格项: %s", item)
		}
		bounds := strings.Split(parts[1], ":")
		if len(bounds) != 3 {
			return nil, fmt.Errorf("网格 %s 需要 min:max:step 三段", parts[0])
		}
		min, err1 := strconv.ParseFloat(bounds[0], 64)
		max, err2 := strconv.ParseFloat(bounds[1], 64)
		step, err3 := strconv.ParseFloat(bounds[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("网格 %s 的边界不是数字: %s", parts[0], parts[1])
		}
		ranges[parts[0]] = optimizer.ParameterRange{Min: min, Max: max, Step: step}
	}
	return ranges, nil
}

// ========== 输出 ==========

// printMetrics 输出指标摘要
func printMetrics(m *backtest.Metrics, finalValue, initialCapital float64) {
	fmt.Printf("  初始资金:   %.2f\n", initialCapital)
	fmt.Printf("  期末价值:   %.2f\n", finalValue)
	fmt.Printf("  总收益率:   %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("  年化收益率: %.2f%%\n", m.AnnualizedReturn*100)
	fmt.Printf("  最大回撤:   %.2f%% (持续 %d 天)\n", m.MaxDrawdown*100, m.MaxDrawdownDuration)
	fmt.Printf("  年化波动率: %.2f%%\n", m.Volatility*100)
	fmt.Printf("  夏普比率:   %.4f\n", m.SharpeRatio)
	fmt.Printf("  索提诺比率: %s\n", formatRatioValue(m.SortinoRatio))
	fmt.Printf("  卡玛比率:   %.4f\n", m.CalmarRatio)
	fmt.Printf("  成交次数:   %d (胜率 %.1f%%)\n", m.TradeCount, m.WinRate*100)
	fmt.Printf("  利润因子:   %s\n", formatRatioValue(m.ProfitFactor))
	fmt.Printf("  平均持仓:   %.2f 天\n", m.AvgHoldDays)
}

// printTrades 输出成交明细
func printTrades(trades []backtest.Trade) {
	if len(trades) == 0 {
		fmt.Println("  没有成交")
		return
	}
	fmt.Printf("\n%-4s %-18s %-18s %-12s %-12s %-12s %s\n", "ID", "入场时间", "出场时间", "入场价", "出场价", "数量", "净盈亏")
	for _, t := range trades {
		fmt.Printf("%-4d %-18s %-18s %-12.4f %-12.4f %-12.4f %.2f\n",
			t.ID,
			time.UnixMilli(t.EntryTimestamp).UTC().Format("2006-01-02 15:04"),
			time.UnixMilli(t.ExitTimestamp).UTC().Format("2006-01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.PnL)
	}
}

// printSweepResult 输出寻优结果和前 N 名
func printSweepResult(result *optimizer.Result, topK int) {
	fmt.Printf("\n寻优完成: %s 按 %s, %d/%d 个组合, 耗时 %.0fms (并行效率 %.2fx, %d workers)\n",
		result.Strategy, result.Objective,
		result.CompletedCombinations, result.TotalCombinations,
		result.ElapsedMs, result.ParallelEfficiency, result.Workers)
	if result.Truncated {
		fmt.Println("⚠️ 网格被截断（超出组合上限或时限）")
	}

	if topK <= 0 {
		topK = 10
	}
	n := topK
	if n > len(result.Results) {
		n = len(result.Results)
	}
	fmt.Printf("%-4s %-12s %s\n", "排名", "得分", "参数")
	for i := 0; i < n; i++ {
		ev := result.Results[i]
		score := "失败"
		if ev.Err == "" {
			score = fmt.Sprintf("%.4f", ev.Score)
		}
		fmt.Printf("%-4d %-12s %s\n", i+1, score, formatParams(ev.Params))
	}
	if result.BestParams != nil {
		fmt.Printf("\n最优参数: %s\n", formatParams(result.BestParams))
	}
}

// formatParams 参数表按名称排序后格式化成一行
func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%s", name, strconv.FormatFloat(params[name], 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

func formatRatioValue(v float64) string {
	if v > 1e308 {
		return "+Inf（没有亏损交易）"
	}
	return fmt.Sprintf("%.4f", v)
}

// consoleObserver 在终端打印寻优进度
type consoleObserver struct {
	total int
	every int
}

func newConsoleObserver() *consoleObserver {
	return &consoleObserver{every: 50}
}

func (o *consoleObserver) SweepStarted(strategyName string, total int) {
	o.total = total
	fmt.Printf("开始寻优: %s, %d 个参数组合\n", strategyName, total)
}

// EvaluationDone 会被多个 worker 并发调用，这里只按组合下标抽样打点，
// 不维护共享计数，输出乱序不影响正确性。
func (o *consoleObserver) EvaluationDone(index int, score float64, failed bool, elapsed time.Duration) {
	if o.total > 0 && o.every > 0 && (index+1)%o.every == 0 {
		fmt.Printf("  ... 组合 #%d/%d\n", index+1, o.total)
	}
}

func (o *consoleObserver) SweepCompleted(result *optimizer.Result) {}
