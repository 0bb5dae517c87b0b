package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// MissingColumns 返回 df 中不存在的列，保持 names 的顺序
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	for _, n := range names {
		if !HasColumn(df, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// ParseTime 空值返回零值时间和 false
func ParseTime(s series.Element, layout string) (time.Time, bool, error) {
	v := strings.TrimSpace(s.String())
	if s.IsNA() || v == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// SubSeriesTime 计算 endCol - startCol 的分钟数，结果追加为 outCol。
// 任一端为空时结果为 NaN；结束时刻早于开始时刻视为跨过零点。
func SubSeriesTime(df dataframe.DataFrame, startCol, endCol, outCol, layout string) (dataframe.DataFrame, error) {
	if missing := MissingColumns(df, startCol, endCol); len(missing) > 0 {
		return df, fmt.Errorf("缺少列: %s", strings.Join(missing, ", "))
	}

	// 获取两列的所有元素
	col1 := df.Col(startCol)
	col2 := df.Col(endCol)

	// 预分配切片容量
	durations := make([]float64, 0, df.Nrow())

	// 遍历每一行计算时间差
	for i := 0; i < df.Nrow(); i++ {
		startTime, ok1, err := ParseTime(col1.Elem(i), layout)
		if err != nil {
			return df, fmt.Errorf("failed to parse start time at row %d: %v", i, err)
		}

		endTime, ok2, err := ParseTime(col2.Elem(i), layout)
		if err != nil {
			return df, fmt.Errorf("failed to parse end time at row %d: %v", i, err)
		}

		if !ok1 || !ok2 {
			durations = append(durations, math.NaN())
			continue
		}

		duration := endTime.Sub(startTime)
		if duration < 0 {
			duration += 24 * time.Hour
		}
		durations = append(durations, duration.Minutes())
	}

	// 创建时间差列并添加到DataFrame
	durationCol := series.New(durations, series.Float, outCol)

	return df.CBind(dataframe.New(durationCol)), nil
}
