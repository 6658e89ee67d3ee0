package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"quantforge/config"
)

// TestConcurrentJobRegistryAccess 测试并发读写任务注册表
func TestConcurrentJobRegistryAccess(t *testing.T) {
	// 重置全局状态
	sweepJobs = &jobRegistry{jobs: make(map[string]*sweepJob)}

	var wg sync.WaitGroup
	numGoroutines := 10
	numOperations := 100

	// 模拟并发注册任务
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				job := &sweepJob{
					ID:          fmt.Sprintf("job-%d-%d", id, j),
					Kind:        "optimize",
					Strategy:    "ma_cross",
					Symbol:      "BTCUSDT",
					Interval:    "1h",
					SubmittedAt: time.Now(),
					status:      jobStatusRunning,
				}
				sweepJobs.add(job)
			}
		}(i)
	}

	// 模拟并发查询
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				if job, ok := sweepJobs.get(fmt.Sprintf("job-%d-%d", id, j)); ok {
					_ = job.summary()
				}
			}
		}(i)
	}

	// 模拟并发遍历
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				_ = sweepJobs.list()
			}
		}()
	}

	wg.Wait()
	t.Log("任务注册表并发测试完成，没有发生数据竞争")
}

// TestConcurrentJobProgress 测试多个 worker 并发回报同一任务的进度
func TestConcurrentJobProgress(t *testing.T) {
	job := &sweepJob{
		ID:          "progress-job",
		Kind:        "optimize",
		SubmittedAt: time.Now(),
		status:      jobStatusRunning,
	}
	job.SweepStarted("ma_cross", 500)

	var wg sync.WaitGroup
	numWorkers := 5
	perWorker := 100

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				job.EvaluationDone(offset*perWorker+i, 1.0, false, time.Millisecond)
			}
		}(w)
	}

	// 同时反复读概要，模拟轮询任务状态的客户端
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = job.summary()
		}
	}()

	wg.Wait()

	job.mu.RLock()
	done := job.done
	job.mu.RUnlock()
	if done != numWorkers*perWorker {
		t.Errorf("期望完成 %d 次评估，实际 %d", numWorkers*perWorker, done)
	}
}

// TestJobRegistryEviction 测试注册表满后淘汰最早完成的任务
func TestJobRegistryEviction(t *testing.T) {
	sweepJobs = &jobRegistry{jobs: make(map[string]*sweepJob)}

	// 一个很早提交但仍在运行的任务，不应被淘汰
	running := &sweepJob{
		ID:          "running-job",
		Kind:        "optimize",
		SubmittedAt: time.Now().Add(-time.Hour),
		status:      jobStatusRunning,
	}
	sweepJobs.add(running)

	for i := 0; i <= maxRetainedJobs; i++ {
		job := &sweepJob{
			ID:          fmt.Sprintf("done-%03d", i),
			Kind:        "optimize",
			SubmittedAt: time.Now().Add(time.Duration(i) * time.Second),
			status:      jobStatusCompleted,
		}
		sweepJobs.add(job)
	}

	if _, ok := sweepJobs.get("running-job"); !ok {
		t.Error("运行中的任务不应被淘汰")
	}
	if _, ok := sweepJobs.get("done-000"); ok {
		t.Error("最早完成的任务应被淘汰")
	}
	if got := len(sweepJobs.list()); got != maxRetainedJobs {
		t.Errorf("期望保留 %d 个任务，实际 %d", maxRetainedJobs, got)
	}
}

// TestConcurrentAuthCache 测试认证校验缓存在并发请求下的表现
func TestConcurrentAuthCache(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("concurrent-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成哈希失败: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Web.APIKey = string(hash)
	router := setupTestRouter(cfg)

	// 重置校验缓存，让第一批请求竞争 bcrypt 慢路径
	verifiedMu.Lock()
	lastVerified = verifiedKey{}
	verifiedMu.Unlock()

	var wg sync.WaitGroup
	numGoroutines := 5
	numRequests := 10
	failures := make(chan int, numGoroutines*numRequests)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numRequests; j++ {
				req, _ := http.NewRequest("GET", "/api/status", nil)
				req.Header.Set("X-API-Key", "concurrent-key")
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
				if w.Code != http.StatusOK {
					failures <- w.Code
				}
			}
		}()
	}

	wg.Wait()
	close(failures)
	for code := range failures {
		t.Errorf("并发认证请求返回 %d", code)
	}
	t.Log("认证缓存并发测试完成")
}
