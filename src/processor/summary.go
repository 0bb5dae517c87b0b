package processor

import (
	"DeliveryInsight/src/config"
	"DeliveryInsight/src/utils"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Count 某个取值出现的次数
type Count struct {
	Label string
	Count int
}

// GroupMean 分组均值
type GroupMean struct {
	Group string
	Mean  float64
	Count int
}

// Stats 描述性统计
type Stats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// Summary 供图表和报表使用的汇总数据
type Summary struct {
	Vehicles        []Count
	Areas           []Count
	TopCategories   []Count
	RatingDelivery  []GroupMean // 各评分分组的平均配送时长
	WeatherDelivery []GroupMean // 各天气的平均配送时长
	Periods         []Count
	Hours           []Count
	DeliveryStats   Stats
	RatingStats     Stats
	PickupWait      Stats // 下单到取货的分钟数
}

// Summarize 基于清洗后的数据表计算所有汇总，评分分组按 edges 的区间顺序排列
func Summarize(df dataframe.DataFrame, columns map[string]string, edges []float64, topN int) (*Summary, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	col := func(field string) string {
		if h := columns[field]; h != "" {
			return h
		}
		return config.DefaultColumns[field]
	}

	var (
		s   Summary
		err error
	)
	if s.Vehicles, err = ValueCounts(df, col(config.FieldVehicle)); err != nil {
		return nil, err
	}
	if s.Areas, err = ValueCounts(df, col(config.FieldArea)); err != nil {
		return nil, err
	}
	categories, err := ValueCounts(df, col(config.FieldCategory))
	if err != nil {
		return nil, err
	}
	s.TopCategories = TopN(categories, topN)

	delivery := col(config.FieldDeliveryTime)
	if s.RatingDelivery, err = GroupMeans(df, ColRatingGroup, delivery); err != nil {
		return nil, err
	}
	orderByLabels(s.RatingDelivery, RatingLabels(edges))
	if s.WeatherDelivery, err = GroupMeans(df, col(config.FieldWeather), delivery); err != nil {
		return nil, err
	}

	if s.Periods, err = ValueCounts(df, ColTimePeriod); err != nil {
		return nil, err
	}
	sortByLabel(s.Periods)
	if s.Hours, err = ValueCounts(df, ColOrderHour); err != nil {
		return nil, err
	}
	sortByLabel(s.Hours)

	s.DeliveryStats = Describe(df.Col(delivery).Float())
	s.RatingStats = Describe(df.Col(col(config.FieldAgentRating)).Float())

	waits, err := utils.SubSeriesTime(df, col(config.FieldOrderTime), col(config.FieldPickupTime), ColPickupWait, ClockLayout)
	if err != nil {
		return nil, err
	}
	s.PickupWait = Describe(waits.Col(ColPickupWait).Float())
	return &s, nil
}

// ValueCounts 按出现次数降序，次数相同按标签升序
func ValueCounts(df dataframe.DataFrame, column string) ([]Count, error) {
	if df.Nrow() == 0 {
		return nil, nil
	}
	groups := df.Select([]string{column}).GroupBy(column)
	if groups == nil {
		return nil, fmt.Errorf("分组列为空")
	}
	if groups.Err != nil {
		return nil, fmt.Errorf("按 %s 分组失败: %w", column, groups.Err)
	}

	counts := make([]Count, 0, len(groups.GetGroups()))
	for _, g := range groups.GetGroups() {
		counts = append(counts, Count{
			Label: g.Col(column).Elem(0).String(),
			Count: g.Nrow(),
		})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Label < counts[j].Label
	})
	return counts, nil
}

// TopN 取前 n 项，n<=0 时返回全部
func TopN(counts []Count, n int) []Count {
	if n <= 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}

// GroupMeans 按 groupCol 分组计算 valueCol 的均值，按分组标签排序
func GroupMeans(df dataframe.DataFrame, groupCol, valueCol string) ([]GroupMean, error) {
	if df.Nrow() == 0 {
		return nil, nil
	}
	groups := df.Select([]string{groupCol, valueCol}).GroupBy(groupCol)
	if groups.Err != nil {
		return nil, fmt.Errorf("按 %s 分组失败: %w", groupCol, groups.Err)
	}

	agg := groups.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_MEAN, dataframe.Aggregation_COUNT},
		[]string{valueCol, valueCol},
	)
	if agg.Err != nil {
		return nil, fmt.Errorf("聚合 %s 失败: %w", valueCol, agg.Err)
	}

	keys := agg.Col(groupCol).Records()
	means := agg.Col(valueCol + "_" + dataframe.Aggregation_MEAN.String()).Float()
	counts := agg.Col(valueCol + "_" + dataframe.Aggregation_COUNT.String()).Float()

	out := make([]GroupMean, len(keys))
	for i := range keys {
		out[i] = GroupMean{Group: keys[i], Mean: means[i], Count: int(counts[i])}
	}
	sort.Slice(out, func(i, j int) bool { return lessLabel(out[i].Group, out[j].Group) })
	return out, nil
}

// Describe 计算 count/mean/std/min/25%/50%/75%/max，NaN 忽略
func Describe(values []float64) Stats {
	x := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		return Stats{}
	}
	sort.Float64s(x)

	st := Stats{Count: len(x), Min: floats.Min(x), Max: floats.Max(x)}
	if len(x) > 1 {
		st.Mean, st.Std = stat.MeanStdDev(x, nil)
	} else {
		st.Mean = x[0]
	}
	st.Q25 = stat.Quantile(0.25, stat.Empirical, x, nil)
	st.Q50 = stat.Quantile(0.5, stat.Empirical, x, nil)
	st.Q75 = stat.Quantile(0.75, stat.Empirical, x, nil)
	return st
}

// Text 生成推送和邮件使用的文字摘要
func (s *Summary) Text(report CleanReport, outliers OutlierReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "配送数据分析\n")
	fmt.Fprintf(&b, "原始行数: %d，保留: %d，删除: %d (%s)\n", report.Raw, report.Kept, report.Dropped, report.Percent())
	fmt.Fprintf(&b, "配送时长低于 %g 分钟: %d 条 (%.2f%%)\n", outliers.Threshold, outliers.Count, outliers.Percent)
	d := s.DeliveryStats
	fmt.Fprintf(&b, "配送时长: 均值 %.2f，中位数 %.2f，最小 %.0f，最大 %.0f\n", d.Mean, d.Q50, d.Min, d.Max)
	fmt.Fprintf(&b, "取货等待: 均值 %.2f 分钟，中位数 %.2f 分钟\n", s.PickupWait.Mean, s.PickupWait.Q50)

	writeCounts(&b, "时段分布", s.Periods)
	writeCounts(&b, "车辆分布", s.Vehicles)
	writeCounts(&b, "区域分布", s.Areas)
	writeCounts(&b, "品类 Top", s.TopCategories)

	b.WriteString("评分分组平均配送时长:\n")
	for _, g := range s.RatingDelivery {
		fmt.Fprintf(&b, "  %s: %.2f (%d)\n", g.Group, g.Mean, g.Count)
	}
	b.WriteString("天气平均配送时长:\n")
	for _, g := range s.WeatherDelivery {
		fmt.Fprintf(&b, "  %s: %.2f (%d)\n", g.Group, g.Mean, g.Count)
	}
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts []Count) {
	fmt.Fprintf(b, "%s:\n", title)
	for _, c := range counts {
		label := c.Label
		if label == "" {
			label = "(无)"
		}
		fmt.Fprintf(b, "  %s: %d\n", label, c.Count)
	}
}

// orderByLabels 按 labels 中的顺序排列，不在其中的(如 unbucketed)放在最后
func orderByLabels(groups []GroupMean, labels []string) {
	rank := make(map[string]int, len(labels))
	for i, l := range labels {
		rank[l] = i
	}
	sort.SliceStable(groups, func(i, j int) bool {
		ri, okI := rank[groups[i].Group]
		rj, okJ := rank[groups[j].Group]
		switch {
		case okI && okJ:
			return ri < rj
		case okI != okJ:
			return okI
		}
		return lessLabel(groups[i].Group, groups[j].Group)
	})
}

func sortByLabel(counts []Count) {
	sort.Slice(counts, func(i, j int) bool { return lessLabel(counts[i].Label, counts[j].Label) })
}

// lessLabel 数字标签按数值比较
func lessLabel(a, b string) bool {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}
