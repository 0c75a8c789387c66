package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metrics-agent/pkg/goid"
	"github.com/metrics-agent/pkg/logger"
)

// Scheduler 任务编排器：每个任务独立goroutine定时执行，统一注册/启动/禁用/优雅停止。
// 单个任务失败绝不影响其它任务的执行上下文。
type Scheduler struct {
	mu      sync.Mutex
	runners map[string]*taskRunner
	order   []string // 注册顺序（启动与停止日志的确定性输出）
	started bool
	cancel  context.CancelFunc
}

// taskRunner 单任务执行上下文
type taskRunner struct {
	task    Task
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler 创建任务编排器
func NewScheduler() *Scheduler {
	return &Scheduler{
		runners: make(map[string]*taskRunner),
	}
}

// Register 注册任务（必须在Start之前，名称唯一）
func (s *Scheduler) Register(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started, cannot register task %q", task.Name())
	}
	if _, exists := s.runners[task.Name()]; exists {
		return fmt.Errorf("task %q already registered", task.Name())
	}
	if task.Interval() <= 0 {
		return fmt.Errorf("task %q has non-positive interval %s", task.Name(), task.Interval())
	}

	s.runners[task.Name()] = &taskRunner{task: task}
	s.order = append(s.order, task.Name())
	logger.Info("registered task",
		zap.String("task", task.Name()),
		zap.Duration("interval", task.Interval()))
	return nil
}

// Start 启动全部已注册任务，每个任务一个独立goroutine
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if len(s.runners) == 0 {
		return fmt.Errorf("no tasks registered")
	}

	rootCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	for _, name := range s.order {
		runner := s.runners[name]
		taskCtx, taskCancel := context.WithCancel(rootCtx)
		runner.cancel = taskCancel
		runner.done = make(chan struct{})
		runner.running = true

		go s.runLoop(taskCtx, runner)
	}

	logger.Info("scheduler started", zap.Int("tasks", len(s.runners)))
	return nil
}

// runLoop 单任务执行循环：先立即执行一次，之后按周期触发。
// 任务同步执行，慢执行只会推迟下一次tick，同一任务永不并发。
func (s *Scheduler) runLoop(ctx context.Context, runner *taskRunner) {
	defer close(runner.done)

	task := runner.task
	logger.Debug("task loop started",
		zap.String("task", task.Name()),
		zap.Uint64("goroutine", goid.GetGID()),
		zap.Duration("interval", task.Interval()))

	// 首次执行（失败仅由任务自身记录）
	_ = task.Run(ctx)

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = task.Run(ctx) // 单任务失败不影响循环
		case <-ctx.Done():
			logger.Info("task loop stopped", zap.String("task", task.Name()))
			return
		}
	}
}

// Disable 停止指定任务的后续执行（不重启编排器），返回任务此前是否在运行
func (s *Scheduler) Disable(name string) bool {
	s.mu.Lock()
	runner, exists := s.runners[name]
	if !exists || !runner.running {
		s.mu.Unlock()
		return false
	}
	runner.running = false
	cancel := runner.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	logger.Warn("task disabled", zap.String("task", name))
	return true
}

// Running 任务是否仍在调度中
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	runner, exists := s.runners[name]
	return exists && runner.running
}

// TaskNames 按注册顺序返回全部任务名
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Stop 广播取消信号并等待全部任务退出，超过gracePeriod的任务按名记录后放弃等待
func (s *Scheduler) Stop(gracePeriod time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	runners := make([]*taskRunner, 0, len(s.order))
	for _, name := range s.order {
		runners = append(runners, s.runners[name])
	}
	s.mu.Unlock()

	logger.Info("stopping scheduler", zap.Duration("grace_period", gracePeriod))
	cancel()

	// 宽限期对全部任务共享一个绝对截止点；一旦耗尽，剩余任务只做非阻塞探测
	timer := time.NewTimer(gracePeriod)
	defer timer.Stop()
	expired := false

	var timedOut []string
	for _, runner := range runners {
		if runner.done == nil {
			continue
		}
		if !expired {
			select {
			case <-runner.done:
				continue
			case <-timer.C:
				expired = true
			}
		}
		// 宽限期耗尽：记录未确认退出的任务并继续，绝不静默吞掉
		select {
		case <-runner.done:
		default:
			timedOut = append(timedOut, runner.task.Name())
		}
	}

	if len(timedOut) > 0 {
		logger.Error("shutdown grace period exceeded, abandoning tasks",
			zap.Strings("tasks", timedOut))
		return fmt.Errorf("shutdown timeout: tasks still running: %v", timedOut)
	}

	logger.Info("scheduler stopped")
	return nil
}
