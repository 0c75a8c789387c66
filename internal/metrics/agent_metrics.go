package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------- Agent自身可观测性指标 --------------------------
// 任务包装器在每次采集后写入：时长恒写、错误计数在失败时写、最近成功时间戳仅成功时写。

// NewAgentInfo agent元信息（version/hostname常量标签，值恒为1）
func (f *MetricFactory) NewAgentInfo() *prometheus.GaugeVec {
	return f.NewGaugeVec("agent_info", "Agent metadata", "version", "hostname")
}

// NewCollectErrorsTotal 采集累计失败次数
func (f *MetricFactory) NewCollectErrorsTotal() *prometheus.CounterVec {
	return f.NewCounterVec("agent_collect_errors_total", "Total number of failed collections per collector", "collector")
}

// NewCollectDurationSeconds 单次采集耗时
func (f *MetricFactory) NewCollectDurationSeconds() *prometheus.GaugeVec {
	return f.NewGaugeVec("agent_collect_duration_seconds", "Duration of the last collection per collector", "collector")
}

// NewCollectLastSuccessTimestamp 最近一次成功采集的Unix时间戳
func (f *MetricFactory) NewCollectLastSuccessTimestamp() *prometheus.GaugeVec {
	return f.NewGaugeVec("agent_collect_last_success_timestamp_seconds", "Unix timestamp of the last successful collection per collector", "collector")
}

// NewCollectorHealthy 采集器健康状态（1=健康，0=连续失败达到阈值）
func (f *MetricFactory) NewCollectorHealthy() *prometheus.GaugeVec {
	return f.NewGaugeVec("agent_collector_healthy", "Whether the collector is healthy (1) or not (0)", "collector")
}

// NewSelfCPUPercent Agent自身CPU使用率（百分比）
func (f *MetricFactory) NewSelfCPUPercent() prometheus.Gauge {
	return f.NewGauge("agent_self_cpu_percent", "CPU usage of the agent process in percent")
}

// NewSelfMemoryBytes Agent自身常驻内存
func (f *MetricFactory) NewSelfMemoryBytes() prometheus.Gauge {
	return f.NewGauge("agent_self_memory_bytes", "Resident memory of the agent process in bytes")
}
