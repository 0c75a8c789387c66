package alerting

import (
	"time"

	"go.uber.org/zap"

	"github.com/metrics-agent/internal/notify"
	"github.com/metrics-agent/internal/store"
	"github.com/metrics-agent/pkg/logger"
)

// Phase 告警状态机阶段
type Phase string

const (
	PhasePending Phase = "PENDING"
	PhaseActive  Phase = "ACTIVE"
)

// AlertState 单个(规则×标签集)的告警状态
// RESOLVED不驻留内存：解决即归档到存储并从活跃表移除，同键再次越限开启全新PENDING周期
type AlertState struct {
	RuleName          string
	Phase             Phase
	FirstBreachAt     time.Time
	LastObservedAt    time.Time
	LastNotifiedAt    time.Time // 零值表示尚未通知
	NotificationCount int
	CurrentValue      float64
	Labels            map[string]string
}

// Notifier 通知派发入口（Manager只管产生事件，投递细节与失败都在派发器内隔离）
type Notifier interface {
	Dispatch(event notify.Event)
}

// Manager 告警状态机：每个(规则名,标签签名)键至多一个活跃状态。
// states只被评估goroutine写（单写者纪律），状态转换无需跨上下文加锁。
type Manager struct {
	states     map[string]*AlertState
	dispatcher Notifier
	store      store.Store
}

// NewManager 创建告警状态机
func NewManager(dispatcher Notifier, alertStore store.Store) *Manager {
	return &Manager{
		states:     make(map[string]*AlertState),
		dispatcher: dispatcher,
		store:      alertStore,
	}
}

// Observe 喂入一条(规则,标签集,当前值)观测，驱动状态机转换
//
// 完整转换表（此外无其它合法转换）：
//
//	无状态 + 条件真            → PENDING（记录firstBreachAt）
//	PENDING + 条件真 + 未到时长 → PENDING（仅更新观测值）
//	PENDING + 条件真 + 到时长   → ACTIVE（立即通知，写triggered事件）
//	PENDING + 条件假            → 丢弃（时长要求归零，下次越限重新开始）
//	ACTIVE + 条件真 + 过冷却    → ACTIVE（再次通知）
//	ACTIVE + 条件真 + 冷却内    → ACTIVE（压制，仅更新观测值）
//	ACTIVE + 条件假             → RESOLVED（解决通知，写resolved事件，移出活跃表）
func (m *Manager) Observe(rule *AlertRule, labels map[string]string, value float64, now time.Time) {
	key := rule.AlertID(labels)
	state, live := m.states[key]
	holds := rule.Holds(value)

	if !live {
		if !holds {
			return
		}
		// 首次越限：开启PENDING周期
		state = &AlertState{
			RuleName:       rule.Name,
			Phase:          PhasePending,
			FirstBreachAt:  now,
			LastObservedAt: now,
			CurrentValue:   value,
			Labels:         labels,
		}
		m.states[key] = state
		logger.Debug("alert pending",
			zap.String("alert_id", key),
			zap.Float64("value", value),
			zap.Float64("threshold", rule.Condition.Threshold))
		// forDuration=0 时在同一次观测内直接晋升
		m.maybeActivate(rule, key, state, now)
		return
	}

	if holds {
		state.LastObservedAt = now
		state.CurrentValue = value

		switch state.Phase {
		case PhasePending:
			m.maybeActivate(rule, key, state, now)
		case PhaseActive:
			// 冷却期满才允许再次通知
			if now.Sub(state.LastNotifiedAt) >= rule.Cooldown() {
				state.LastNotifiedAt = now
				state.NotificationCount++
				m.dispatcher.Dispatch(m.buildEvent(rule, state, notify.StatusFiring, now))
				logger.Info("alert renotified",
					zap.String("alert_id", key),
					zap.Int("notification_count", state.NotificationCount))
			}
		}
		return
	}

	// 条件转假
	switch state.Phase {
	case PhasePending:
		// 未满时长即恢复：整个待定状态作废
		delete(m.states, key)
		logger.Debug("alert pending discarded", zap.String("alert_id", key))

	case PhaseActive:
		// 解决：发解决通知、归档、移出活跃表
		state.CurrentValue = value
		state.LastObservedAt = now
		m.dispatcher.Dispatch(m.buildEvent(rule, state, notify.StatusResolved, now))
		m.appendEvent(rule, state, store.StateResolved, now)
		delete(m.states, key)
		logger.Info("alert resolved",
			zap.String("alert_id", key),
			zap.String("rule", rule.Name),
			zap.Int("notification_count", state.NotificationCount))
	}
}

// maybeActivate PENDING→ACTIVE晋升判定：条件持续时长达到for_duration
func (m *Manager) maybeActivate(rule *AlertRule, key string, state *AlertState, now time.Time) {
	if now.Sub(state.FirstBreachAt) < rule.ForDuration() {
		return
	}
	state.Phase = PhaseActive
	state.LastNotifiedAt = now
	state.NotificationCount = 1
	m.dispatcher.Dispatch(m.buildEvent(rule, state, notify.StatusFiring, now))
	m.appendEvent(rule, state, store.StateTriggered, now)
	logger.Info("alert triggered",
		zap.String("alert_id", key),
		zap.String("rule", rule.Name),
		zap.String("severity", string(rule.Severity)),
		zap.Float64("value", state.CurrentValue))
}

// buildEvent 构造一次通知事件（模板在此渲染，未解析占位符原样保留）
func (m *Manager) buildEvent(rule *AlertRule, state *AlertState, status notify.Status, now time.Time) notify.Event {
	summary := rule.Annotations.Summary
	if summary == "" {
		summary = "Alert: " + rule.Name
	}
	description := rule.Annotations.Description
	if description == "" {
		description = rule.MetricName + " " + rule.Condition.Operator + " " + formatFloat(rule.Condition.Threshold)
	}

	return notify.Event{
		Alert: notify.AlertInfo{
			Name:      rule.Name,
			Severity:  string(rule.Severity),
			Status:    status,
			Timestamp: now,
		},
		Metric: notify.MetricInfo{
			Name:      rule.MetricName,
			Value:     state.CurrentValue,
			Threshold: rule.Condition.Threshold,
			Operator:  rule.Condition.Operator,
		},
		Labels: state.Labels,
		Annotations: notify.AnnotationInfo{
			Summary:     RenderTemplate(summary, state.CurrentValue, rule.Condition.Threshold, state.Labels),
			Description: RenderTemplate(description, state.CurrentValue, rule.Condition.Threshold, state.Labels),
		},
		Channels: rule.Channels,
	}
}

// appendEvent 写一条生命周期记录（异步尽力而为，失败不回滚内存转换）
func (m *Manager) appendEvent(rule *AlertRule, state *AlertState, lifecycleState string, now time.Time) {
	event := store.Event{
		AlertID:           rule.AlertID(state.Labels),
		RuleName:          rule.Name,
		State:             lifecycleState,
		Severity:          string(rule.Severity),
		MetricName:        rule.MetricName,
		MetricValue:       state.CurrentValue,
		Threshold:         rule.Condition.Threshold,
		Labels:            state.Labels,
		TriggeredAt:       state.FirstBreachAt,
		NotificationCount: state.NotificationCount,
	}
	if !state.LastNotifiedAt.IsZero() {
		t := state.LastNotifiedAt
		event.LastNotifiedAt = &t
	}
	if lifecycleState == store.StateResolved {
		t := now
		event.ResolvedAt = &t
	}

	if err := m.store.Append(event); err != nil {
		logger.Error("failed to persist alert lifecycle event",
			zap.String("alert_id", event.AlertID),
			zap.String("state", lifecycleState),
			zap.Error(err))
	}
}

// CleanupExpired 清理保留期之外的已归档告警（RESOLVED只存在于存储中）
func (m *Manager) CleanupExpired(retentionDays int) {
	if _, err := m.store.Cleanup(retentionDays); err != nil {
		logger.Error("failed to cleanup expired alerts", zap.Error(err))
	}
}

// State 返回指定键的活跃状态（测试与诊断用）
func (m *Manager) State(rule *AlertRule, labels map[string]string) (AlertState, bool) {
	state, ok := m.states[rule.AlertID(labels)]
	if !ok {
		return AlertState{}, false
	}
	return *state, true
}

// ActiveCount 当前活跃状态数
func (m *Manager) ActiveCount() int {
	return len(m.states)
}

// CountBySeverity 按级别统计活跃告警（需要规则集解析级别）
func (m *Manager) CountBySeverity(rules []AlertRule) map[Severity]int {
	bySeverity := make(map[Severity]int)
	byName := make(map[string]Severity, len(rules))
	for _, r := range rules {
		byName[r.Name] = r.Severity
	}
	for _, state := range m.states {
		bySeverity[byName[state.RuleName]]++
	}
	return bySeverity
}
