package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/internal/scheduler"
)

// fakeTask 可编程的测试任务
type fakeTask struct {
	name     string
	interval time.Duration
	runs     atomic.Int64
	runFn    func(ctx context.Context) error
}

func (t *fakeTask) Name() string            { return t.name }
func (t *fakeTask) Interval() time.Duration { return t.interval }
func (t *fakeTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.runFn != nil {
		return t.runFn(ctx)
	}
	return nil
}

func newFactory(t *testing.T) *metrics.MetricFactory {
	t.Helper()
	return metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	sched := scheduler.NewScheduler()

	require.NoError(t, sched.Register(&fakeTask{name: "cpu", interval: time.Second}))
	err := sched.Register(&fakeTask{name: "cpu", interval: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRejectsNonPositiveInterval(t *testing.T) {
	sched := scheduler.NewScheduler()

	err := sched.Register(&fakeTask{name: "cpu", interval: 0})
	require.Error(t, err)
}

func TestRegisterRejectedAfterStart(t *testing.T) {
	sched := scheduler.NewScheduler()
	require.NoError(t, sched.Register(&fakeTask{name: "cpu", interval: time.Hour}))
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(time.Second)

	err := sched.Register(&fakeTask{name: "memory", interval: time.Second})
	require.Error(t, err)
}

func TestStartWithoutTasksFails(t *testing.T) {
	sched := scheduler.NewScheduler()
	require.Error(t, sched.Start(context.Background()))
}

// 一个任务持续失败不影响其它任务的执行
func TestTaskFailureDoesNotAffectOthers(t *testing.T) {
	sched := scheduler.NewScheduler()
	healthy := &fakeTask{name: "memory", interval: 10 * time.Millisecond}
	failing := &fakeTask{name: "disk", interval: 10 * time.Millisecond,
		runFn: func(ctx context.Context) error { return errors.New("mount gone") }}

	require.NoError(t, sched.Register(healthy))
	require.NoError(t, sched.Register(failing))
	require.NoError(t, sched.Start(context.Background()))

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, sched.Stop(time.Second))

	assert.Greater(t, healthy.runs.Load(), int64(2))
	assert.Greater(t, failing.runs.Load(), int64(2))
}

func TestDisableStopsSingleTask(t *testing.T) {
	sched := scheduler.NewScheduler()
	first := &fakeTask{name: "process", interval: 10 * time.Millisecond}
	second := &fakeTask{name: "network", interval: 10 * time.Millisecond}

	require.NoError(t, sched.Register(first))
	require.NoError(t, sched.Register(second))
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(time.Second)

	assert.True(t, sched.Disable("process"))
	// 二次禁用与未知任务都返回false
	assert.False(t, sched.Disable("process"))
	assert.False(t, sched.Disable("unknown"))

	assert.False(t, sched.Running("process"))
	assert.True(t, sched.Running("network"))

	time.Sleep(30 * time.Millisecond)
	frozen := first.runs.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, frozen, first.runs.Load())
	assert.Greater(t, second.runs.Load(), int64(2))
}

func TestStopReportsTasksExceedingGracePeriod(t *testing.T) {
	release := make(chan struct{})
	stuck := &fakeTask{name: "stuck", interval: time.Hour,
		runFn: func(ctx context.Context) error {
			<-release // 无视ctx取消，模拟卡死的采集调用
			return nil
		}}

	sched := scheduler.NewScheduler()
	require.NoError(t, sched.Register(stuck))
	require.NoError(t, sched.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	err := sched.Stop(50 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")

	close(release)
}

// 多个任务同时卡死时，Stop仍须在宽限期后返回并逐个列出未退出的任务
func TestStopReturnsWithMultipleStuckTasks(t *testing.T) {
	release := make(chan struct{})
	blocked := func(ctx context.Context) error {
		<-release
		return nil
	}
	first := &fakeTask{name: "stuck-disk", interval: time.Hour, runFn: blocked}
	second := &fakeTask{name: "stuck-process", interval: time.Hour, runFn: blocked}

	sched := scheduler.NewScheduler()
	require.NoError(t, sched.Register(first))
	require.NoError(t, sched.Register(second))
	require.NoError(t, sched.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- sched.Stop(50 * time.Millisecond) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stuck-disk")
		assert.Contains(t, err.Error(), "stuck-process")
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after grace period with multiple stuck tasks")
	}

	close(release)
}

func TestStopIsIdempotent(t *testing.T) {
	sched := scheduler.NewScheduler()
	require.NoError(t, sched.Register(&fakeTask{name: "cpu", interval: time.Hour}))
	require.NoError(t, sched.Start(context.Background()))

	require.NoError(t, sched.Stop(time.Second))
	require.NoError(t, sched.Stop(time.Second))
}

func TestTaskNamesPreserveRegistrationOrder(t *testing.T) {
	sched := scheduler.NewScheduler()
	for _, name := range []string{"cpu", "memory", "disk"} {
		require.NoError(t, sched.Register(&fakeTask{name: name, interval: time.Hour}))
	}
	assert.Equal(t, []string{"cpu", "memory", "disk"}, sched.TaskNames())
}
