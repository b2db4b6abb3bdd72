// Package queue 以固定數量的 worker 處理 AI 請求，限制同時對外呼叫的數量。
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"meal-planner/internal/core/ai/provider"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
)

// Request 隊列請求
type Request struct {
	Context context.Context
	Request *provider.Request
	Result  chan Result
}

// Result 處理結果
type Result struct {
	Response *provider.Response
	Error    error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 隊列管理器，本身也是 provider.Provider
type Manager struct {
	next      provider.Provider
	workers   int
	maxSize   int
	queue     chan *Request
	done      chan struct{}
	processed int64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ provider.Provider = (*Manager)(nil)

// NewManager 創建新的隊列管理器並啟動 worker
func NewManager(next provider.Provider, workers, maxSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if maxSize <= 0 {
		maxSize = workers
	}

	m := &Manager{
		next:    next,
		workers: workers,
		maxSize: maxSize,
		queue:   make(chan *Request, maxSize),
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	common.LogInfo("AI queue started", zap.Int("workers", workers), zap.Int("max_queue_size", maxSize))
	return m
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case req := <-m.queue:
			// 排隊期間已取消的請求不再送出
			if err := req.Context.Err(); err != nil {
				req.Result <- Result{Error: err}
				continue
			}
			began := time.Now()
			resp, err := m.next.Generate(req.Context, req.Request)
			atomic.AddInt64(&m.processed, 1)
			common.LogDebug("AI request processed",
				zap.Int("worker", id),
				zap.Duration("duration", time.Since(began)),
				zap.Error(err),
			)
			req.Result <- Result{Response: resp, Error: err}
		case <-m.done:
			return
		}
	}
}

// Enqueue 將請求加入隊列；隊列已滿時立即失敗
func (m *Manager) Enqueue(ctx context.Context, req *provider.Request) (chan Result, error) {
	queueReq := &Request{
		Context: ctx,
		Request: req,
		Result:  make(chan Result, 1),
	}

	select {
	case <-m.done:
		return nil, common.ErrExternalUnavailable.Wrap(errClosed)
	default:
	}

	select {
	case m.queue <- queueReq:
		common.LogDebug("Request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return queueReq.Result, nil
	default:
		common.LogWarn("AI queue is full", zap.Int("max_queue_size", m.maxSize))
		return nil, common.ErrTooManyRequests.Wrap(errFull)
	}
}

// Generate 排隊後由 worker 呼叫下游 provider
func (m *Manager) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	ch, err := m.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Response, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetModel 下游模型
func (m *Manager) GetModel() string { return m.next.GetModel() }

// GetTimeout 下游超時
func (m *Manager) GetTimeout() time.Duration { return m.next.GetTimeout() }

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 停止 worker 並關閉下游 provider；尚在隊列中的請求由呼叫端的 context 結束
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
	return m.next.Close()
}

type queueError string

func (e queueError) Error() string { return string(e) }

const (
	errFull   queueError = "queue is full"
	errClosed queueError = "queue manager is closed"
)
