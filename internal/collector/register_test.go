package collector_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/collector"
	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/internal/scheduler"
)

func collectorsConfig() *config.CollectorsConfig {
	cfg := config.NewDefaultConfig()
	return &cfg.Collectors
}

func TestRegisterCollectorsRegistersEnabledOnly(t *testing.T) {
	cfg := collectorsConfig()
	cfg.Disk.Enable = false
	cfg.Process.Enable = false

	sched := scheduler.NewScheduler()
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))

	tasks, err := collector.RegisterCollectors(sched, cfg, factory)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"cpu", "memory", "network"}, sched.TaskNames())
}

func TestRegisterCollectorsFailsWhenNoneEnabled(t *testing.T) {
	cfg := collectorsConfig()
	cfg.CPU.Enable = false
	cfg.Memory.Enable = false
	cfg.Disk.Enable = false
	cfg.Network.Enable = false
	cfg.Process.Enable = false

	sched := scheduler.NewScheduler()
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))

	_, err := collector.RegisterCollectors(sched, cfg, factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no collectors enabled")
}

func TestRegisterCollectorsTaskIntervalsFollowConfig(t *testing.T) {
	cfg := collectorsConfig()
	cfg.CPU.Interval = 7 * time.Second

	sched := scheduler.NewScheduler()
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))

	tasks, err := collector.RegisterCollectors(sched, cfg, factory)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Name() == "cpu" {
			assert.Equal(t, 7*time.Second, task.Interval())
		}
	}
}
