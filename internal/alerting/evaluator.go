package alerting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/pkg/logger"
)

// Evaluator 周期性地用注册表快照评估全部规则，驱动状态机。
// 作为普通任务挂在调度器上运行，与采集器共用同一套生命周期管理。
type Evaluator struct {
	rules         []AlertRule
	reader        *metrics.Reader
	manager       *Manager
	interval      time.Duration
	cleanupEvery  int
	retentionDays int
	cycles        int
}

// NewEvaluator 创建告警评估任务
func NewEvaluator(rules []AlertRule, reader *metrics.Reader, manager *Manager, interval time.Duration, cleanupEvery, retentionDays int) *Evaluator {
	return &Evaluator{
		rules:         rules,
		reader:        reader,
		manager:       manager,
		interval:      interval,
		cleanupEvery:  cleanupEvery,
		retentionDays: retentionDays,
	}
}

func (e *Evaluator) Name() string {
	return "alert-evaluator"
}

func (e *Evaluator) Interval() time.Duration {
	return e.interval
}

// Run 执行一个评估周期
// 1. 对每条启用规则取指标快照，逐样本喂入状态机
// 2. 指标缺失或选择器无匹配时静默跳过，不触碰既有状态
// 3. 每cleanupEvery个周期顺带清理一次过期历史
func (e *Evaluator) Run(ctx context.Context) error {
	now := time.Now()

	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled {
			continue
		}

		samples, err := e.reader.Snapshot(rule.MetricName, rule.LabelSelector)
		if err != nil {
			logger.Error("failed to read metric for rule",
				zap.String("rule", rule.Name),
				zap.String("metric", rule.MetricName),
				zap.Error(err))
			continue
		}
		if len(samples) == 0 {
			// 指标尚未采集或标签不匹配，本周期跳过该规则
			continue
		}

		for _, sample := range samples {
			e.manager.Observe(rule, sample.Labels, sample.Value, now)
		}
	}

	e.cycles++
	if e.cleanupEvery > 0 && e.cycles%e.cleanupEvery == 0 {
		e.manager.CleanupExpired(e.retentionDays)
	}
	return nil
}
