package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/internal/metrics"
)

func newRegistry() (metrics.Registers, *metrics.MetricFactory) {
	reg := metrics.NewPromRegistry(prometheus.NewRegistry())
	return reg, metrics.NewMetricFactory(reg)
}

func TestSnapshotReturnsAllSamplesWithoutSelector(t *testing.T) {
	reg, factory := newRegistry()
	gauge := factory.NewGaugeVec("disk_usage_percent", "Disk usage", "mount_point")
	gauge.WithLabelValues("/").Set(90)
	gauge.WithLabelValues("/data").Set(40)

	reader := metrics.NewReader(reg)
	samples, err := reader.Snapshot("disk_usage_percent", nil)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	values := map[string]float64{}
	for _, s := range samples {
		values[s.Labels["mount_point"]] = s.Value
	}
	assert.Equal(t, 90.0, values["/"])
	assert.Equal(t, 40.0, values["/data"])
}

func TestSnapshotFiltersBySelector(t *testing.T) {
	reg, factory := newRegistry()
	gauge := factory.NewGaugeVec("disk_usage_percent", "Disk usage", "mount_point")
	gauge.WithLabelValues("/").Set(90)
	gauge.WithLabelValues("/data").Set(40)

	reader := metrics.NewReader(reg)
	samples, err := reader.Snapshot("disk_usage_percent", map[string]string{"mount_point": "/"})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 90.0, samples[0].Value)
}

// 指标不存在或选择器无匹配都返回空切片，不是错误
func TestSnapshotMissingMetricReturnsEmpty(t *testing.T) {
	reg, _ := newRegistry()
	reader := metrics.NewReader(reg)

	samples, err := reader.Snapshot("no_such_metric", nil)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSnapshotSelectorMismatchReturnsEmpty(t *testing.T) {
	reg, factory := newRegistry()
	factory.NewGaugeVec("disk_usage_percent", "Disk usage", "mount_point").WithLabelValues("/").Set(90)

	reader := metrics.NewReader(reg)
	samples, err := reader.Snapshot("disk_usage_percent", map[string]string{"mount_point": "/var"})
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSnapshotReadsCounters(t *testing.T) {
	reg, factory := newRegistry()
	counter := factory.NewCounterVec("network_receive_bytes_total", "RX bytes", "interface")
	counter.WithLabelValues("eth0").Add(1024)

	reader := metrics.NewReader(reg)
	samples, err := reader.Snapshot("network_receive_bytes_total", map[string]string{"interface": "eth0"})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 1024.0, samples[0].Value)
}

func TestMatchLabelsIgnoresExtraSampleLabels(t *testing.T) {
	labels := map[string]string{"mount_point": "/", "device": "sda1"}

	assert.True(t, metrics.MatchLabels(labels, map[string]string{"mount_point": "/"}))
	assert.True(t, metrics.MatchLabels(labels, nil))
	assert.False(t, metrics.MatchLabels(labels, map[string]string{"mount_point": "/", "fstype": "ext4"}))
}

func TestMetricNames(t *testing.T) {
	reg, factory := newRegistry()
	factory.NewGauge("cpu_usage_percent", "CPU usage")
	factory.NewGauge("memory_usage_percent", "Memory usage")

	reader := metrics.NewReader(reg)
	names, err := reader.MetricNames()
	require.NoError(t, err)
	assert.Contains(t, names, "cpu_usage_percent")
	assert.Contains(t, names, "memory_usage_percent")
}
