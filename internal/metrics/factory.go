package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
// 所有采集器与任务包装器通过工厂创建指标，保证注册入口唯一。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewGaugeVec 创建并注册带标签的Gauge
func (f *MetricFactory) NewGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(g)
	return g
}

// NewGauge 创建并注册无标签的Gauge
func (f *MetricFactory) NewGauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	f.reg.MustRegister(g)
	return g
}

// NewCounterVec 创建并注册带标签的Counter
func (f *MetricFactory) NewCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(c)
	return c
}
