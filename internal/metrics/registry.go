package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registers 接口隔离 Prometheus 的默认实现，使后续可替换其它实现（例如单测 mock），
// 避免业务直接依赖 Prometheus 具体实现。
type Registers interface {
	prometheus.Registerer                          // 嵌入 Prometheus 官方注册器接口
	prometheus.Gatherer                            // 读侧快照入口（评估器消费）
	Register(collector prometheus.Collector) error // 自定义扩展方法
}

// promRegistry Prometheus 实现，内部包裹了官方的 *prometheus.Registry
type promRegistry struct {
	registry *prometheus.Registry
}

// NewPromRegistry 创建 Prometheus 指标注册器
func NewPromRegistry(registry *prometheus.Registry) Registers {
	return &promRegistry{registry: registry}
}

// MustRegister 实现 prometheus.Registerer
func (p *promRegistry) MustRegister(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := p.registry.Register(c); err != nil {
			panic(err)
		}
	}
}

// Unregister 实现 prometheus.Registerer
func (p *promRegistry) Unregister(collector prometheus.Collector) bool {
	return p.registry.Unregister(collector)
}

// Register 实现自定义 Registers 接口
func (p *promRegistry) Register(collector prometheus.Collector) error {
	return p.registry.Register(collector)
}

// Gather 实现 prometheus.Gatherer（写侧并发安全由官方Registry保证，读侧为一致性快照）
func (p *promRegistry) Gather() ([]*dto.MetricFamily, error) {
	return p.registry.Gather()
}
