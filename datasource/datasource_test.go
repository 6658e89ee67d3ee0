package datasource

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"quantforge/backtest"
	"quantforge/event"
	"quantforge/indicators"
	"quantforge/storage"
)

func testCandles(n int) []indicators.Candle {
	base := int64(1_600_000_000_000)
	hour := int64(3_600_000)
	candles := make([]indicators.Candle, n)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = indicators.Candle{
			Time:   base + int64(i)*hour,
			Open:   price,
			High:   price + 2,
			Low:    price - 2,
			Close:  price + 1,
			Volume: 1000 + float64(i),
		}
	}
	return candles
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	want := testCandles(20)

	if err := WriteCSV(path, want); err != nil {
		t.Fatalf("写出 CSV 失败: %v", err)
	}

	got, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("加载 CSV 失败: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CSV 往返后数据不一致: 期望 %d 根, 得到 %d 根", len(want), len(got))
	}

	t.Logf("✅ CSV 往返验证通过: %d 根K线", len(got))
}

func TestCSVTimestampFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.csv")
	content := "timestamp,open,high,low,close,volume\n" +
		"1600000000,100,102,98,101,1000\n" + // 秒级整数
		"1600003600000,101,103,99,102,1100\n" + // 毫秒整数
		"2020-09-13T14:00:00Z,102,104,100,103,1200\n" + // RFC3339
		"2020-09-14,103,105,101,104,1300\n" // 纯日期
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写测试文件失败: %v", err)
	}

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("加载 CSV 失败: %v", err)
	}
	if len(candles) != 4 {
		t.Fatalf("K线数量不正确: 期望 4, 得到 %d", len(candles))
	}

	// 秒级时间戳应换算成毫秒
	if candles[0].Time != 1_600_000_000_000 {
		t.Errorf("秒级时间戳换算错误: %d", candles[0].Time)
	}
	if candles[1].Time != 1_600_003_600_000 {
		t.Errorf("毫秒时间戳不应被改动: %d", candles[1].Time)
	}

	wantRFC := time.Date(2020, 9, 13, 14, 0, 0, 0, time.UTC).UnixMilli()
	if candles[2].Time != wantRFC {
		t.Errorf("RFC3339 解析错误: 期望 %d, 得到 %d", wantRFC, candles[2].Time)
	}

	// 加载后必须按时间升序
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			t.Errorf("加载结果未按时间升序: [%d]=%d [%d]=%d", i-1, candles[i-1].Time, i, candles[i].Time)
		}
	}
}

func TestCSVHeaderless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noheader.csv")
	content := "1600000000000,100,102,98,101,1000\n1600003600000,101,103,99,102,1100\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写测试文件失败: %v", err)
	}

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("加载无表头 CSV 失败: %v", err)
	}
	if len(candles) != 2 {
		t.Errorf("无表头文件应把第一行当数据: 期望 2 根, 得到 %d", len(candles))
	}
}

func TestCSVBadRows(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"坏的价格", "timestamp,open,high,low,close,volume\n1600000000000,abc,102,98,101,1000\n"},
		{"字段不足", "timestamp,open,high,low,close,volume\n1600000000000,100,102\n"},
		{"坏的时间戳", "timestamp,open,high,low,close,volume\nnot-a-date,100,102,98,101,1000\n"},
	}

	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".csv")
		if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
			t.Fatalf("写测试文件失败: %v", err)
		}
		if _, err := LoadCSV(path); err == nil {
			t.Errorf("%s: 应报错但成功了", tc.name)
		}
	}
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.parquet")
	want := testCandles(50)

	if err := WriteParquet(path, want); err != nil {
		t.Fatalf("写出 Parquet 失败: %v", err)
	}

	got, err := LoadParquet(path)
	if err != nil {
		t.Fatalf("加载 Parquet 失败: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parquet 往返后数据不一致: 期望 %d 根, 得到 %d 根", len(want), len(got))
	}

	t.Logf("✅ Parquet 往返验证通过: %d 根K线", len(got))
}

func TestGenerateSyntheticDeterministic(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Bars = 500

	a := GenerateSynthetic(cfg)
	b := GenerateSynthetic(cfg)

	if len(a) != 500 {
		t.Fatalf("生成数量不正确: %d", len(a))
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("同一种子生成的序列应完全一致")
	}

	// 生成的K线必须能通过回测引擎的数据校验
	if err := backtest.ValidateCandles(a); err != nil {
		t.Fatalf("合成K线未通过校验: %v", err)
	}

	cfg.Seed = 7
	c := GenerateSynthetic(cfg)
	if reflect.DeepEqual(a, c) {
		t.Errorf("不同种子应生成不同序列")
	}

	t.Logf("✅ 合成数据生成验证通过: 首价 %.2f 末价 %.2f", a[0].Close, a[len(a)-1].Close)
}

func TestNormalizeCandles(t *testing.T) {
	base := int64(1_600_000_000_000)
	raw := []indicators.Candle{
		{Time: base + 2000, Close: 3},
		{Time: base, Close: 1},
		{Time: base + 1000, Close: 2},
		{Time: base, Close: 10}, // 重复时间戳，后者覆盖前者
	}

	out := normalizeCandles(raw)
	if len(out) != 3 {
		t.Fatalf("去重后数量不正确: 期望 3, 得到 %d", len(out))
	}
	if out[0].Time != base || out[0].Close != 10 {
		t.Errorf("重复时间戳应保留后写入的值: %+v", out[0])
	}
	if out[1].Time != base+1000 || out[2].Time != base+2000 {
		t.Errorf("排序结果不正确: %+v", out)
	}
}

func TestIntervalDuration(t *testing.T) {
	if d, err := IntervalDuration("1h"); err != nil || d != time.Hour {
		t.Errorf("1h 解析错误: %v %v", d, err)
	}
	if d, err := IntervalDuration("1d"); err != nil || d != 24*time.Hour {
		t.Errorf("1d 解析错误: %v %v", d, err)
	}
	if _, err := IntervalDuration("2y"); err == nil {
		t.Errorf("未知周期应报错")
	}
}

// fakeSource 记录调用次数的测试数据源
type fakeSource struct {
	calls   int
	candles []indicators.Candle
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchCandles(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]indicators.Candle, error) {
	f.calls++
	return f.candles, nil
}

func TestManagerCacheFirst(t *testing.T) {
	dbPath := "./test_quantforge_datasource.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-shm")
	defer os.Remove(dbPath + "-wal")

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	defer store.Close()

	bus := event.NewEventBus(100)
	defer bus.Close()
	sub := bus.Subscribe()

	candles := testCandles(10)
	source := &fakeSource{candles: candles}
	mgr := NewManager(store, source, bus)

	start := candles[0].Time
	end := candles[len(candles)-1].Time

	// 第一次：缓存为空，走远端并回填
	got, err := mgr.GetCandles(context.Background(), "BTCUSDT", "1h", start, end)
	if err != nil {
		t.Fatalf("首次获取失败: %v", err)
	}
	if len(got) != 10 || source.calls != 1 {
		t.Fatalf("首次获取应走远端: len=%d calls=%d", len(got), source.calls)
	}

	// 第二次：缓存已覆盖，不应再调用远端
	got, err = mgr.GetCandles(context.Background(), "BTCUSDT", "1h", start, end)
	if err != nil {
		t.Fatalf("二次获取失败: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("二次获取数量不正确: %d", len(got))
	}
	if source.calls != 1 {
		t.Errorf("缓存命中后不应再调用远端: calls=%d", source.calls)
	}

	// 两次都应发布 data_fetched 事件
	fetched := 0
	timeout := time.After(2 * time.Second)
	for fetched < 2 {
		select {
		case ev := <-sub:
			if ev.Type == event.EventTypeDataFetched {
				fetched++
			}
		case <-timeout:
			t.Fatalf("等待 data_fetched 事件超时, 已收到 %d 个", fetched)
		}
	}

	t.Logf("✅ 缓存优先读取验证通过")
}

func TestManagerImportFile(t *testing.T) {
	dbPath := "./test_quantforge_import.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-shm")
	defer os.Remove(dbPath + "-wal")

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	defer store.Close()

	csvPath := filepath.Join(t.TempDir(), "import.csv")
	want := testCandles(6)
	if err := WriteCSV(csvPath, want); err != nil {
		t.Fatalf("写出 CSV 失败: %v", err)
	}

	mgr := NewManager(store, nil, nil)
	n, err := mgr.ImportFile("ETHUSDT", "1h", csvPath)
	if err != nil {
		t.Fatalf("导入失败: %v", err)
	}
	if n != 6 {
		t.Errorf("导入数量不正确: %d", n)
	}

	// 导入后缓存可以直接服务请求
	got, err := mgr.GetCandles(context.Background(), "ETHUSDT", "1h", want[0].Time, want[5].Time)
	if err != nil {
		t.Fatalf("读取导入数据失败: %v", err)
	}
	if len(got) != 6 {
		t.Errorf("读取数量不正确: %d", len(got))
	}

	// 缓存未覆盖且无数据源时必须报错
	if _, err := mgr.GetCandles(context.Background(), "ETHUSDT", "1h", want[0].Time, want[5].Time+3_600_000); err == nil {
		t.Errorf("范围超出缓存且无数据源时应报错")
	}
}
