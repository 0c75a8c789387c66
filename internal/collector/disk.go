package collector

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/internal/scheduler"
)

// DiskCollector 磁盘采集能力：分区用量与块设备IO累计量
type DiskCollector struct {
	cfg config.DiskCollectorConfig

	usageBytes   *prometheus.GaugeVec
	usagePercent *prometheus.GaugeVec

	ioReadBytes  *prometheus.CounterVec
	ioWriteBytes *prometheus.CounterVec
	ioReadOps    *prometheus.CounterVec
	ioWriteOps   *prometheus.CounterVec

	// 上一次IO计数快照（Counter只能前进，写增量）
	prevIO map[string]disk.IOCountersStat
}

// NewDiskCollector 创建磁盘采集能力（注册指标）
func NewDiskCollector(cfg config.DiskCollectorConfig, factory *metrics.MetricFactory) *DiskCollector {
	return &DiskCollector{
		cfg:          cfg,
		usageBytes:   factory.NewGaugeVec("disk_usage_bytes", "Disk usage in bytes", "mount_point", "type"),
		usagePercent: factory.NewGaugeVec("disk_usage_percent", "Disk usage percentage", "mount_point"),
		ioReadBytes:  factory.NewCounterVec("disk_io_read_bytes_total", "Total bytes read from disk", "device"),
		ioWriteBytes: factory.NewCounterVec("disk_io_write_bytes_total", "Total bytes written to disk", "device"),
		ioReadOps:    factory.NewCounterVec("disk_io_read_operations_total", "Total read operations", "device"),
		ioWriteOps:   factory.NewCounterVec("disk_io_write_operations_total", "Total write operations", "device"),
		prevIO:       make(map[string]disk.IOCountersStat),
	}
}

// Collect 采集一次磁盘指标
func (c *DiskCollector) Collect(ctx context.Context) error {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return fmt.Errorf("list disk partitions: %w", err)
	}

	for _, partition := range partitions {
		if c.excluded(partition) {
			continue
		}

		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			// 挂载点在扫描间隙消失或无权限属于正常竞态
			if os.IsPermission(err) || os.IsNotExist(err) {
				return scheduler.Expected(fmt.Errorf("disk usage for %s: %w", partition.Mountpoint, err))
			}
			return fmt.Errorf("disk usage for %s: %w", partition.Mountpoint, err)
		}

		c.usageBytes.WithLabelValues(partition.Mountpoint, "total").Set(float64(usage.Total))
		c.usageBytes.WithLabelValues(partition.Mountpoint, "used").Set(float64(usage.Used))
		c.usageBytes.WithLabelValues(partition.Mountpoint, "free").Set(float64(usage.Free))
		c.usagePercent.WithLabelValues(partition.Mountpoint).Set(usage.UsedPercent)
	}

	// 块设备IO（累计值写增量，回绕时重置快照）
	ioCounters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return fmt.Errorf("get disk io counters: %w", err)
	}
	for device, counters := range ioCounters {
		if prev, ok := c.prevIO[device]; ok {
			if counters.ReadBytes >= prev.ReadBytes {
				c.ioReadBytes.WithLabelValues(device).Add(float64(counters.ReadBytes - prev.ReadBytes))
				c.ioWriteBytes.WithLabelValues(device).Add(float64(counters.WriteBytes - prev.WriteBytes))
				c.ioReadOps.WithLabelValues(device).Add(float64(counters.ReadCount - prev.ReadCount))
				c.ioWriteOps.WithLabelValues(device).Add(float64(counters.WriteCount - prev.WriteCount))
			}
		}
		c.prevIO[device] = counters
	}

	return nil
}

// excluded 分区是否按配置忽略（文件系统类型精确匹配，挂载点前缀匹配）
func (c *DiskCollector) excluded(partition disk.PartitionStat) bool {
	for _, fs := range c.cfg.ExcludeFilesystems {
		if partition.Fstype == fs {
			return true
		}
	}
	for _, prefix := range c.cfg.ExcludeMountPoints {
		if strings.HasPrefix(partition.Mountpoint, prefix) {
			return true
		}
	}
	return false
}
