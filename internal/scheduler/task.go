package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/pkg/logger"
)

// unhealthyThreshold 连续失败达到该次数判定为不健康，一次成功即恢复
const unhealthyThreshold = 3

// Task 调度器管理的周期任务（采集器、自监控、告警评估统一抽象）
type Task interface {
	Name() string                  // 任务名称（唯一标识）
	Interval() time.Duration       // 执行周期
	Run(ctx context.Context) error // 单次执行（同一任务串行，慢执行只推迟、不并发下一次）
}

// Capability 采集能力：一次采集调用，更新指标并返回成功或类型化失败
type Capability func(ctx context.Context) error

// Health 任务健康状态快照
type Health struct {
	ConsecutiveFailures int
	LastSuccessAt       time.Time // 零值表示从未成功
	LastDuration        time.Duration
}

// TaskMetrics 任务级可观测性指标（所有任务共享同一组Vec，按collector标签区分）
type TaskMetrics struct {
	ErrorsTotal *prometheus.CounterVec
	Duration    *prometheus.GaugeVec
	LastSuccess *prometheus.GaugeVec
	Healthy     *prometheus.GaugeVec
}

// NewTaskMetrics 创建并注册任务可观测性指标
func NewTaskMetrics(factory *metrics.MetricFactory) TaskMetrics {
	return TaskMetrics{
		ErrorsTotal: factory.NewCollectErrorsTotal(),
		Duration:    factory.NewCollectDurationSeconds(),
		LastSuccess: factory.NewCollectLastSuccessTimestamp(),
		Healthy:     factory.NewCollectorHealthy(),
	}
}

// CollectorTask 采集任务包装器：包一次采集能力调用，记录耗时、分类结果、维护健康计数，
// 并把三项可观测性样本写回注册器（时长恒写、错误计数任一失败写、成功时间戳仅成功写）
type CollectorTask struct {
	name       string
	interval   time.Duration
	capability Capability
	metrics    TaskMetrics

	mu     sync.Mutex
	health Health
}

// NewCollectorTask 创建采集任务包装器
func NewCollectorTask(name string, interval time.Duration, capability Capability, taskMetrics TaskMetrics) *CollectorTask {
	return &CollectorTask{
		name:       name,
		interval:   interval,
		capability: capability,
		metrics:    taskMetrics,
	}
}

func (t *CollectorTask) Name() string {
	return t.name
}

func (t *CollectorTask) Interval() time.Duration {
	return t.interval
}

// Run 执行一次采集：计时、调用能力、分类结果、更新健康与指标
func (t *CollectorTask) Run(ctx context.Context) error {
	start := time.Now()
	err := t.capability(ctx)
	elapsed := time.Since(start)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.health.LastDuration = elapsed
	t.metrics.Duration.WithLabelValues(t.name).Set(elapsed.Seconds())

	if err == nil {
		t.health.ConsecutiveFailures = 0
		t.health.LastSuccessAt = start
		t.metrics.LastSuccess.WithLabelValues(t.name).Set(float64(start.Unix()))
		t.metrics.Healthy.WithLabelValues(t.name).Set(1)
		logger.Debug("collection completed",
			zap.String("collector", t.name),
			zap.Duration("duration", elapsed))
		return nil
	}

	// 预期内与非预期失败都计入健康计数与错误指标，仅日志级别不同
	t.health.ConsecutiveFailures++
	t.metrics.ErrorsTotal.WithLabelValues(t.name).Inc()

	if IsExpected(err) {
		logger.Debug("collection failed (expected)",
			zap.String("collector", t.name),
			zap.Int("consecutive_failures", t.health.ConsecutiveFailures),
			zap.Error(err))
	} else {
		logger.Error("collection failed",
			zap.String("collector", t.name),
			zap.Int("consecutive_failures", t.health.ConsecutiveFailures),
			zap.Error(err))
	}

	if t.health.ConsecutiveFailures >= unhealthyThreshold {
		t.metrics.Healthy.WithLabelValues(t.name).Set(0)
		logger.Warn("collector is unhealthy",
			zap.String("collector", t.name),
			zap.Int("consecutive_failures", t.health.ConsecutiveFailures))
	} else {
		t.metrics.Healthy.WithLabelValues(t.name).Set(1)
	}
	return err
}

// IsHealthy 连续失败未达阈值即健康
func (t *CollectorTask) IsHealthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.health.ConsecutiveFailures < unhealthyThreshold
}

// HealthSnapshot 返回健康状态副本
func (t *CollectorTask) HealthSnapshot() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.health
}
