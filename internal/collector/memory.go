package collector

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/metrics-agent/internal/metrics"
)

// MemoryCollector 内存采集能力：物理内存与交换区
type MemoryCollector struct {
	memTotal        prometheus.Gauge
	memUsed         prometheus.Gauge
	memAvailable    prometheus.Gauge
	memCached       prometheus.Gauge
	memUsagePercent prometheus.Gauge

	swapTotal        prometheus.Gauge
	swapUsed         prometheus.Gauge
	swapUsagePercent prometheus.Gauge
}

// NewMemoryCollector 创建内存采集能力（注册指标）
func NewMemoryCollector(factory *metrics.MetricFactory) *MemoryCollector {
	return &MemoryCollector{
		memTotal:         factory.NewGauge("memory_total_bytes", "Total physical memory in bytes"),
		memUsed:          factory.NewGauge("memory_used_bytes", "Used physical memory in bytes"),
		memAvailable:     factory.NewGauge("memory_available_bytes", "Available physical memory in bytes"),
		memCached:        factory.NewGauge("memory_cached_bytes", "Cached memory in bytes"),
		memUsagePercent:  factory.NewGauge("memory_usage_percent", "Physical memory usage percentage"),
		swapTotal:        factory.NewGauge("swap_total_bytes", "Total swap in bytes"),
		swapUsed:         factory.NewGauge("swap_used_bytes", "Used swap in bytes"),
		swapUsagePercent: factory.NewGauge("swap_usage_percent", "Swap usage percentage"),
	}
}

// Collect 采集一次内存指标
func (c *MemoryCollector) Collect(ctx context.Context) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("get virtual memory: %w", err)
	}
	c.memTotal.Set(float64(vm.Total))
	c.memUsed.Set(float64(vm.Used))
	c.memAvailable.Set(float64(vm.Available))
	c.memCached.Set(float64(vm.Cached))
	c.memUsagePercent.Set(vm.UsedPercent)

	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("get swap memory: %w", err)
	}
	c.swapTotal.Set(float64(swap.Total))
	c.swapUsed.Set(float64(swap.Used))
	c.swapUsagePercent.Set(swap.UsedPercent)

	return nil
}
