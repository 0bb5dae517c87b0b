package processor

import (
	"DeliveryInsight/src/utils"
	"fmt"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ColumnMissing 单列空值统计
type ColumnMissing struct {
	Column  string
	Missing int
	Percent float64
}

// OutlierReport 配送时长异常值统计
type OutlierReport struct {
	Column    string
	Threshold float64
	Count     int
	Total     int
	Percent   float64
}

// Shape 返回行数和列数
func Shape(df dataframe.DataFrame) (rows, cols int) {
	return df.Dims()
}

// AuditMissing 按表头顺序列出存在空值的列
func AuditMissing(df dataframe.DataFrame) []ColumnMissing {
	nrow := df.Nrow()
	var out []ColumnMissing
	for _, name := range df.Names() {
		col := df.Col(name)
		missing := 0
		for i := 0; i < col.Len(); i++ {
			el := col.Elem(i)
			if el.IsNA() || IsNull(el.String()) {
				missing++
			}
		}
		if missing == 0 {
			continue
		}
		out = append(out, ColumnMissing{
			Column:  name,
			Missing: missing,
			Percent: percent(missing, nrow),
		})
	}
	return out
}

// CountOutliers 统计配送时长低于阈值的行
func CountOutliers(df dataframe.DataFrame, column string, threshold float64) (OutlierReport, error) {
	report := OutlierReport{Column: column, Threshold: threshold, Total: df.Nrow()}
	if df.Err != nil {
		return report, df.Err
	}
	if !utils.HasColumn(df, column) {
		return report, fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	if df.Nrow() == 0 {
		return report, nil
	}

	below := df.Filter(dataframe.F{
		Colname:    column,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			if el.IsNA() {
				return false
			}
			v, err := strconv.ParseFloat(el.String(), 64)
			return err == nil && v < threshold
		},
	})
	if below.Err != nil {
		return report, fmt.Errorf("筛选异常值失败: %w", below.Err)
	}
	report.Count = below.Nrow()
	report.Percent = percent(report.Count, report.Total)
	return report, nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
