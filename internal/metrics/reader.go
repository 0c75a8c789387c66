package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Sample 注册器中某个指标的一条当前样本（标签集 + 当前值）
type Sample struct {
	Labels map[string]string
	Value  float64
}

// Reader 从注册器读取指标当前值（评估器的读侧通道）
// Gather 返回的是一致性快照，读取过程不持有指标写锁
type Reader struct {
	gatherer prometheus.Gatherer
}

// NewReader 创建指标读取器
func NewReader(gatherer prometheus.Gatherer) *Reader {
	return &Reader{gatherer: gatherer}
}

// Snapshot 获取指标当前样本，可选按标签选择器过滤
// 选择器语义：样本标签集必须包含选择器全部键且值精确相等，样本多余标签忽略
// 指标不存在或无匹配样本时返回空切片（不是错误）
func (r *Reader) Snapshot(metricName string, selector map[string]string) ([]Sample, error) {
	families, err := r.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var results []Sample
	for _, family := range families {
		if family.GetName() != metricName {
			continue
		}
		for _, m := range family.GetMetric() {
			value, ok := metricValue(m)
			if !ok {
				continue
			}

			labels := make(map[string]string, len(m.GetLabel()))
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}

			if !MatchLabels(labels, selector) {
				continue
			}
			results = append(results, Sample{Labels: labels, Value: value})
		}
		break // 指标族已命中，无需继续
	}
	return results, nil
}

// MetricNames 返回注册器中全部指标名（排查配置用）
func (r *Reader) MetricNames() ([]string, error) {
	families, err := r.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	return names, nil
}

// MatchLabels 样本标签是否满足选择器（选择器每个键都必须存在且精确相等）
func MatchLabels(labels, selector map[string]string) bool {
	for key, want := range selector {
		if labels[key] != want {
			return false
		}
	}
	return true
}

// metricValue 取样本当前值（gauge/counter/untyped；histogram/summary不参与规则评估）
func metricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue(), true
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue(), true
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue(), true
	default:
		return 0, false
	}
}
