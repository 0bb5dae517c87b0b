package processor

import (
	"fmt"
	"math"
	"strconv"
)

// 时段标签
const (
	Morning   = "Morning"
	Afternoon = "Afternoon"
	Evening   = "Evening"
	Night     = "Night"
)

// PeriodPolicy 决定 23 点至次日 4 点的时段如何处理
type PeriodPolicy int

const (
	// PeriodTotal 23 点和 0-4 点归为 Night
	PeriodTotal PeriodPolicy = iota
	// PeriodLegacy 兼容旧报表: 该区间不给标签(空字符串)
	PeriodLegacy
)

// ParsePeriodPolicy 对应 dataconfig.json 的 time_period_policy
func ParsePeriodPolicy(s string) (PeriodPolicy, error) {
	switch s {
	case "", "total":
		return PeriodTotal, nil
	case "legacy":
		return PeriodLegacy, nil
	}
	return PeriodTotal, fmt.Errorf("unknown time period policy %q", s)
}

func (p PeriodPolicy) String() string {
	if p == PeriodLegacy {
		return "legacy"
	}
	return "total"
}

// TimePeriod 按小时划分时段
func TimePeriod(hour int, policy PeriodPolicy) string {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 23:
		return Evening
	}
	if policy == PeriodLegacy {
		return ""
	}
	return Night
}

// DefaultRatingEdges 评分分桶边界
var DefaultRatingEdges = []float64{0, 1, 2, 3, 4, 5}

// RatingLabels 返回各分桶的标签，如 "0-1"
func RatingLabels(edges []float64) []string {
	if len(edges) < 2 {
		return nil
	}
	labels := make([]string, 0, len(edges)-1)
	for i := 1; i < len(edges); i++ {
		labels = append(labels, formatEdge(edges[i-1])+"-"+formatEdge(edges[i]))
	}
	return labels
}

// RatingGroup 分桶区间为 [lo,hi)，最后一个区间包含上界。
// 评分缺失或越界时返回 Unbucketed。
func RatingGroup(rating *float64, edges []float64) string {
	if rating == nil || len(edges) < 2 {
		return Unbucketed
	}
	v := *rating
	last := len(edges) - 1
	if v < edges[0] || v > edges[last] || math.IsNaN(v) {
		return Unbucketed
	}
	for i := 1; i < last; i++ {
		if v < edges[i] {
			return formatEdge(edges[i-1]) + "-" + formatEdge(edges[i])
		}
	}
	return formatEdge(edges[last-1]) + "-" + formatEdge(edges[last])
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
