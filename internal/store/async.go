package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/metrics-agent/pkg/logger"
)

// AsyncStore Store的非阻塞包装：写操作进有界队列由单worker落库，满时丢最旧并告警。
// 评估上下文绝不等待持久化；写失败只记录，内存状态转换不回滚——
// 存储恢复前，实时状态与持久化历史之间存在可见的不一致窗口。
type AsyncStore struct {
	inner Store
	queue chan func()
	done  chan struct{}

	// 关闭后可能仍有被放弃的评估goroutine调用写操作，须防止写已关闭channel
	mu     sync.RWMutex
	closed bool
}

// NewAsyncStore 创建异步存储包装并启动落库worker
func NewAsyncStore(inner Store, queueSize int) *AsyncStore {
	s := &AsyncStore{
		inner: inner,
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for op := range s.queue {
			op()
		}
	}()
	return s
}

// Append 入队一次写操作（永不阻塞调用方）
func (s *AsyncStore) Append(event Event) error {
	s.enqueue(func() {
		if err := s.inner.Append(event); err != nil {
			logger.Error("alert store append failed, in-memory state is ahead of history",
				zap.String("alert_id", event.AlertID),
				zap.String("state", event.State),
				zap.Error(err))
		}
	})
	return nil
}

// Query 读查询直接透传（不走写队列）
func (s *AsyncStore) Query(filter Filter) ([]Event, error) {
	return s.inner.Query(filter)
}

// Cleanup 清理同样异步执行，返回值恒为0（实际删除数由worker日志记录）
func (s *AsyncStore) Cleanup(retentionDays int) (int64, error) {
	s.enqueue(func() {
		if _, err := s.inner.Cleanup(retentionDays); err != nil {
			logger.Error("alert store cleanup failed", zap.Error(err))
		}
	})
	return 0, nil
}

// Close 关闭队列、等待worker清空后关闭底层存储（幂等）
func (s *AsyncStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.inner.Close()
}

func (s *AsyncStore) enqueue(op func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.Warn("alert store closed, dropping write")
		return
	}

	select {
	case s.queue <- op:
		return
	default:
	}

	// 队列已满：丢最旧腾位置，保留最新事件
	select {
	case <-s.queue:
		logger.Warn("alert store queue full, dropping oldest pending write")
	default:
	}

	select {
	case s.queue <- op:
	default:
		logger.Warn("alert store queue full, dropping write")
	}
}
