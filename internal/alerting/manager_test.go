package alerting_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/internal/alerting"
	"github.com/metrics-agent/internal/notify"
	"github.com/metrics-agent/internal/store"
)

// fakeNotifier 记录派发的通知事件
type fakeNotifier struct {
	events []notify.Event
}

func (n *fakeNotifier) Dispatch(event notify.Event) {
	n.events = append(n.events, event)
}

// fakeStore 记录生命周期落库与清理调用
type fakeStore struct {
	appended  []store.Event
	cleanups  []int
	appendErr error
}

func (s *fakeStore) Append(event store.Event) error {
	s.appended = append(s.appended, event)
	return s.appendErr
}

func (s *fakeStore) Query(f store.Filter) ([]store.Event, error) { return nil, nil }
func (s *fakeStore) Cleanup(retentionDays int) (int64, error) {
	s.cleanups = append(s.cleanups, retentionDays)
	return 0, nil
}
func (s *fakeStore) Close() error { return nil }

func cpuRule(forDuration, cooldown int) *alerting.AlertRule {
	return &alerting.AlertRule{
		Name:               "high_cpu_usage",
		MetricName:         "cpu_usage_percent",
		Condition:          alerting.Condition{Operator: ">", Threshold: 80},
		ForDurationMinutes: forDuration,
		Severity:           alerting.SeverityWarning,
		Channels:           []string{"slack"},
		CooldownMinutes:    cooldown,
		Annotations: alerting.Annotations{
			Summary:     "High CPU usage",
			Description: "CPU usage is {{value}}% (threshold: {{threshold}}%)",
		},
		Enabled: true,
	}
}

func newManager() (*alerting.Manager, *fakeNotifier, *fakeStore) {
	notifier := &fakeNotifier{}
	st := &fakeStore{}
	return alerting.NewManager(notifier, st), notifier, st
}

func TestZeroForDurationActivatesImmediately(t *testing.T) {
	mgr, notifier, st := newManager()
	rule := cpuRule(0, 15)
	now := time.Now()

	mgr.Observe(rule, nil, 85, now)

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, notify.StatusFiring, event.Alert.Status)
	assert.Equal(t, "high_cpu_usage", event.Alert.Name)
	assert.Equal(t, "CPU usage is 85% (threshold: 80%)", event.Annotations.Description)
	assert.Equal(t, []string{"slack"}, event.Channels)
	assert.Equal(t, 85.0, event.Metric.Value)

	require.Len(t, st.appended, 1)
	assert.Equal(t, store.StateTriggered, st.appended[0].State)
	assert.Equal(t, 1, st.appended[0].NotificationCount)

	state, ok := mgr.State(rule, nil)
	require.True(t, ok)
	assert.Equal(t, alerting.PhaseActive, state.Phase)
}

func TestPendingActivatesAfterForDuration(t *testing.T) {
	mgr, notifier, _ := newManager()
	rule := cpuRule(5, 15)
	t0 := time.Now()

	mgr.Observe(rule, nil, 85, t0)
	state, ok := mgr.State(rule, nil)
	require.True(t, ok)
	assert.Equal(t, alerting.PhasePending, state.Phase)
	assert.Empty(t, notifier.events)

	// 持续越限但未满5分钟：仍然PENDING，不通知
	mgr.Observe(rule, nil, 88, t0.Add(3*time.Minute))
	assert.Empty(t, notifier.events)

	mgr.Observe(rule, nil, 90, t0.Add(5*time.Minute))
	require.Len(t, notifier.events, 1)
	state, _ = mgr.State(rule, nil)
	assert.Equal(t, alerting.PhaseActive, state.Phase)
	assert.Equal(t, 1, state.NotificationCount)
	// firstBreachAt保持首次越限时刻
	assert.Equal(t, t0, state.FirstBreachAt)
}

func TestPendingDiscardedWhenConditionClears(t *testing.T) {
	mgr, notifier, st := newManager()
	rule := cpuRule(5, 15)
	t0 := time.Now()

	mgr.Observe(rule, nil, 85, t0)
	mgr.Observe(rule, nil, 70, t0.Add(time.Minute))

	_, ok := mgr.State(rule, nil)
	assert.False(t, ok)
	assert.Empty(t, notifier.events)
	assert.Empty(t, st.appended)

	// 再次越限从头计时
	mgr.Observe(rule, nil, 85, t0.Add(2*time.Minute))
	state, ok := mgr.State(rule, nil)
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Minute), state.FirstBreachAt)
}

func TestActiveSuppressedWithinCooldown(t *testing.T) {
	mgr, notifier, _ := newManager()
	rule := cpuRule(0, 15)
	t0 := time.Now()

	mgr.Observe(rule, nil, 85, t0)
	require.Len(t, notifier.events, 1)

	// 冷却期内持续越限：压制，仅更新观测值
	mgr.Observe(rule, nil, 92, t0.Add(10*time.Minute))
	assert.Len(t, notifier.events, 1)
	state, _ := mgr.State(rule, nil)
	assert.Equal(t, 92.0, state.CurrentValue)
	assert.Equal(t, 1, state.NotificationCount)

	// 冷却期满：再次通知
	mgr.Observe(rule, nil, 93, t0.Add(15*time.Minute))
	require.Len(t, notifier.events, 2)
	assert.Equal(t, notify.StatusFiring, notifier.events[1].Alert.Status)
	state, _ = mgr.State(rule, nil)
	assert.Equal(t, 2, state.NotificationCount)
}

func TestActiveResolvesWhenConditionClears(t *testing.T) {
	mgr, notifier, st := newManager()
	rule := cpuRule(0, 15)
	t0 := time.Now()

	mgr.Observe(rule, nil, 85, t0)
	mgr.Observe(rule, nil, 60, t0.Add(time.Minute))

	require.Len(t, notifier.events, 2)
	resolution := notifier.events[1]
	assert.Equal(t, notify.StatusResolved, resolution.Alert.Status)
	assert.Equal(t, 60.0, resolution.Metric.Value)

	require.Len(t, st.appended, 2)
	resolved := st.appended[1]
	assert.Equal(t, store.StateResolved, resolved.State)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, t0.Add(time.Minute), *resolved.ResolvedAt)

	assert.Equal(t, 0, mgr.ActiveCount())

	// 同键再次越限开启全新PENDING周期，不继承旧历史
	mgr.Observe(rule, nil, 85, t0.Add(2*time.Minute))
	state, ok := mgr.State(rule, nil)
	require.True(t, ok)
	assert.Equal(t, 1, state.NotificationCount)
	assert.Equal(t, t0.Add(2*time.Minute), state.FirstBreachAt)
}

func TestLabelSetsTrackedIndependently(t *testing.T) {
	mgr, notifier, _ := newManager()
	rule := &alerting.AlertRule{
		Name:       "disk_full",
		MetricName: "disk_usage_percent",
		Condition:  alerting.Condition{Operator: ">", Threshold: 85},
		Severity:   alerting.SeverityCritical,
		Channels:   []string{"webhook"},
		Annotations: alerting.Annotations{
			Summary: "Disk almost full on {{labels.mount_point}}",
		},
		Enabled: true,
	}
	now := time.Now()

	root := map[string]string{"mount_point": "/"}
	data := map[string]string{"mount_point": "/data"}

	mgr.Observe(rule, root, 90, now)
	mgr.Observe(rule, data, 70, now)

	assert.Equal(t, 1, mgr.ActiveCount())
	_, rootActive := mgr.State(rule, root)
	_, dataActive := mgr.State(rule, data)
	assert.True(t, rootActive)
	assert.False(t, dataActive)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "Disk almost full on /", notifier.events[0].Annotations.Summary)

	// /的恢复不影响/data的越限跟踪
	mgr.Observe(rule, data, 95, now.Add(time.Minute))
	mgr.Observe(rule, root, 50, now.Add(time.Minute))
	assert.Equal(t, 1, mgr.ActiveCount())
	_, dataActive = mgr.State(rule, data)
	assert.True(t, dataActive)
}

func TestObserveIgnoresValuesBelowThresholdWithoutState(t *testing.T) {
	mgr, notifier, st := newManager()
	rule := cpuRule(0, 15)

	mgr.Observe(rule, nil, 50, time.Now())

	assert.Equal(t, 0, mgr.ActiveCount())
	assert.Empty(t, notifier.events)
	assert.Empty(t, st.appended)
}

func TestCleanupDelegatesToStore(t *testing.T) {
	mgr, _, st := newManager()

	mgr.CleanupExpired(30)

	assert.Equal(t, []int{30}, st.cleanups)
}

func TestDefaultAnnotationsWhenUnset(t *testing.T) {
	mgr, notifier, _ := newManager()
	rule := &alerting.AlertRule{
		Name:       "mem_high",
		MetricName: "memory_usage_percent",
		Condition:  alerting.Condition{Operator: ">=", Threshold: 90},
		Severity:   alerting.SeverityWarning,
		Channels:   []string{"email"},
		Enabled:    true,
	}

	mgr.Observe(rule, nil, 95, time.Now())

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "Alert: mem_high", notifier.events[0].Annotations.Summary)
	assert.Equal(t, "memory_usage_percent >= 90", notifier.events[0].Annotations.Description)
}
