package collector

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/internal/scheduler"
)

// NetworkCollector 网络采集能力：接口流量累计量与连接状态分布
type NetworkCollector struct {
	cfg config.NetworkCollectorConfig

	rxBytes   *prometheus.CounterVec
	txBytes   *prometheus.CounterVec
	rxPackets *prometheus.CounterVec
	txPackets *prometheus.CounterVec
	rxErrors  *prometheus.CounterVec
	txErrors  *prometheus.CounterVec
	rxDrop    *prometheus.CounterVec
	txDrop    *prometheus.CounterVec

	connections *prometheus.GaugeVec

	// 上一次接口计数快照（Counter写增量）
	prev map[string]net.IOCountersStat
}

// NewNetworkCollector 创建网络采集能力（注册指标）
func NewNetworkCollector(cfg config.NetworkCollectorConfig, factory *metrics.MetricFactory) *NetworkCollector {
	return &NetworkCollector{
		cfg:         cfg,
		rxBytes:     factory.NewCounterVec("network_receive_bytes_total", "Total bytes received", "interface"),
		txBytes:     factory.NewCounterVec("network_transmit_bytes_total", "Total bytes transmitted", "interface"),
		rxPackets:   factory.NewCounterVec("network_receive_packets_total", "Total packets received", "interface"),
		txPackets:   factory.NewCounterVec("network_transmit_packets_total", "Total packets transmitted", "interface"),
		rxErrors:    factory.NewCounterVec("network_receive_errors_total", "Total receive errors", "interface"),
		txErrors:    factory.NewCounterVec("network_transmit_errors_total", "Total transmit errors", "interface"),
		rxDrop:      factory.NewCounterVec("network_receive_drop_total", "Total receive drops", "interface"),
		txDrop:      factory.NewCounterVec("network_transmit_drop_total", "Total transmit drops", "interface"),
		connections: factory.NewGaugeVec("network_connections", "Network connections by state", "state"),
		prev:        make(map[string]net.IOCountersStat),
	}
}

// Collect 采集一次网络指标
func (c *NetworkCollector) Collect(ctx context.Context) error {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return fmt.Errorf("get network io counters: %w", err)
	}

	for _, stat := range counters {
		if c.excluded(stat.Name) {
			continue
		}
		if prev, ok := c.prev[stat.Name]; ok && stat.BytesRecv >= prev.BytesRecv {
			c.rxBytes.WithLabelValues(stat.Name).Add(float64(stat.BytesRecv - prev.BytesRecv))
			c.txBytes.WithLabelValues(stat.Name).Add(float64(stat.BytesSent - prev.BytesSent))
			c.rxPackets.WithLabelValues(stat.Name).Add(float64(stat.PacketsRecv - prev.PacketsRecv))
			c.txPackets.WithLabelValues(stat.Name).Add(float64(stat.PacketsSent - prev.PacketsSent))
			c.rxErrors.WithLabelValues(stat.Name).Add(float64(stat.Errin - prev.Errin))
			c.txErrors.WithLabelValues(stat.Name).Add(float64(stat.Errout - prev.Errout))
			c.rxDrop.WithLabelValues(stat.Name).Add(float64(stat.Dropin - prev.Dropin))
			c.txDrop.WithLabelValues(stat.Name).Add(float64(stat.Dropout - prev.Dropout))
		}
		c.prev[stat.Name] = stat
	}

	// 连接状态分布（部分平台需要特权，权限不足属预期失败）
	conns, err := net.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		if os.IsPermission(err) {
			return scheduler.Expected(fmt.Errorf("list network connections: %w", err))
		}
		return fmt.Errorf("list network connections: %w", err)
	}

	stateCounts := make(map[string]int)
	for _, conn := range conns {
		if conn.Status != "" {
			stateCounts[conn.Status]++
		}
	}
	for state, count := range stateCounts {
		c.connections.WithLabelValues(state).Set(float64(count))
	}

	return nil
}

func (c *NetworkCollector) excluded(iface string) bool {
	for _, name := range c.cfg.ExcludeInterfaces {
		if iface == name {
			return true
		}
	}
	return false
}
