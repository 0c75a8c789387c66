package alerting

import (
	"strconv"
	"strings"
)

// RenderTemplate 渲染告警描述模板
// 支持 {{value}}、{{threshold}}、{{labels.<key>}}（带不带空格均可）；
// 未能解析的占位符原样保留，方便排查模板写错，绝不静默置空
func RenderTemplate(template string, value, threshold float64, labels map[string]string) string {
	result := template

	valueStr := formatFloat(value)
	thresholdStr := formatFloat(threshold)

	result = strings.ReplaceAll(result, "{{value}}", valueStr)
	result = strings.ReplaceAll(result, "{{ value }}", valueStr)
	result = strings.ReplaceAll(result, "{{threshold}}", thresholdStr)
	result = strings.ReplaceAll(result, "{{ threshold }}", thresholdStr)

	for key, val := range labels {
		result = strings.ReplaceAll(result, "{{labels."+key+"}}", val)
		result = strings.ReplaceAll(result, "{{ labels."+key+" }}", val)
	}

	return result
}

// formatFloat 最短无损表示（85 渲染为 "85" 而不是 "85.00"）
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
