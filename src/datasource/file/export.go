package file

import (
	"DeliveryInsight/src/processor"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// 报表中的工作表
const (
	SheetEnriched = "enriched"
	SheetMissing  = "missing"
	SheetSummary  = "summary"
)

// ensureDir 确保目录存在
func ensureDir(dirPath string) error {
	if dirPath == "" || dirPath == "." {
		return nil
	}
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}

// ExportReport 将清洗后的数据、空值表和汇总写入同一个 xlsx
func ExportReport(filePath string, res *processor.Result) error {
	if res == nil {
		return fmt.Errorf("没有可导出的结果")
	}
	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetEnriched); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("创建样式失败: %w", err)
	}

	w := &sheetWriter{f: f, bold: bold}
	if err := w.frame(SheetEnriched, res.Frame); err != nil {
		return err
	}
	if err := w.missing(res); err != nil {
		return err
	}
	if res.Summary != nil {
		if err := w.summary(res); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// SaveFrame 只导出一张数据表
func SaveFrame(df dataframe.DataFrame, filePath, sheetName string) error {
	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	} else if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	w := &sheetWriter{f: f}
	if err := w.frame(sheetName, df); err != nil {
		return err
	}
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f    *excelize.File
	bold int
	row  int // 下一次写入的行号(从1开始)
}

func (w *sheetWriter) writeRow(sheet string, values []interface{}, header bool) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("写入 %s 第%d行失败: %w", sheet, w.row, err)
	}
	if header && w.bold != 0 && len(values) > 0 {
		end, err := excelize.CoordinatesToCellName(len(values), w.row)
		if err != nil {
			return err
		}
		return w.f.SetCellStyle(sheet, cell, end, w.bold)
	}
	return nil
}

func (w *sheetWriter) blank() { w.row++ }

func (w *sheetWriter) frame(sheet string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("数据表无效: %w", df.Err)
	}
	w.row = 0

	colNames := df.Names()
	header := make([]interface{}, len(colNames))
	for i, n := range colNames {
		header[i] = n
	}
	if err := w.writeRow(sheet, header, true); err != nil {
		return err
	}

	cols := make([][]interface{}, len(colNames))
	for i, n := range colNames {
		col := df.Col(n)
		cols[i] = make([]interface{}, col.Len())
		for r := 0; r < col.Len(); r++ {
			cols[i][r] = col.Val(r)
		}
	}
	for r := 0; r < df.Nrow(); r++ {
		row := make([]interface{}, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		if err := w.writeRow(sheet, row, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) newSheet(name string) error {
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("创建工作表 %s 失败: %w", name, err)
	}
	w.row = 0
	return nil
}

func (w *sheetWriter) missing(res *processor.Result) error {
	if err := w.newSheet(SheetMissing); err != nil {
		return err
	}
	if err := w.writeRow(SheetMissing, []interface{}{"Column", "Missing", "Percent"}, true); err != nil {
		return err
	}
	for _, m := range res.Missing {
		if err := w.writeRow(SheetMissing, []interface{}{m.Column, m.Missing, round2(m.Percent)}, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) summary(res *processor.Result) error {
	if err := w.newSheet(SheetSummary); err != nil {
		return err
	}
	s := res.Summary
	rows := [][]interface{}{
		{"Raw rows", res.Report.Raw},
		{"Kept rows", res.Report.Kept},
		{"Dropped rows", res.Report.Dropped},
		{"Dropped %", round2(res.Report.DroppedPct)},
		{fmt.Sprintf("Delivery_Time < %g", res.Outliers.Threshold), res.Outliers.Count},
		{"Outlier %", round2(res.Outliers.Percent)},
	}
	if err := w.writeRow(SheetSummary, []interface{}{"Metric", "Value"}, true); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.writeRow(SheetSummary, r, false); err != nil {
			return err
		}
	}

	w.blank()
	if err := w.writeRow(SheetSummary, []interface{}{"Statistic", "Delivery_Time", "Agent_Rating", "Pickup_Wait"}, true); err != nil {
		return err
	}
	d, a, p := s.DeliveryStats, s.RatingStats, s.PickupWait
	stats := [][]interface{}{
		{"count", d.Count, a.Count, p.Count},
		{"mean", round2(d.Mean), round2(a.Mean), round2(p.Mean)},
		{"std", round2(d.Std), round2(a.Std), round2(p.Std)},
		{"min", d.Min, a.Min, p.Min},
		{"25%", d.Q25, a.Q25, p.Q25},
		{"50%", d.Q50, a.Q50, p.Q50},
		{"75%", d.Q75, a.Q75, p.Q75},
		{"max", d.Max, a.Max, p.Max},
	}
	for _, r := range stats {
		if err := w.writeRow(SheetSummary, r, false); err != nil {
			return err
		}
	}

	for _, block := range []struct {
		title  string
		counts []processor.Count
	}{
		{"Time_Period", s.Periods},
		{"Order_Hour", s.Hours},
		{"Vehicle", s.Vehicles},
		{"Area", s.Areas},
		{"Category (top)", s.TopCategories},
	} {
		w.blank()
		if err := w.writeRow(SheetSummary, []interface{}{block.title, "Count"}, true); err != nil {
			return err
		}
		for _, c := range block.counts {
			if err := w.writeRow(SheetSummary, []interface{}{c.Label, c.Count}, false); err != nil {
				return err
			}
		}
	}

	for _, block := range []struct {
		title  string
		groups []processor.GroupMean
	}{
		{"Rating_Group", s.RatingDelivery},
		{"Weather", s.WeatherDelivery},
	} {
		w.blank()
		if err := w.writeRow(SheetSummary, []interface{}{block.title, "Mean Delivery_Time", "Count"}, true); err != nil {
			return err
		}
		for _, g := range block.groups {
			if err := w.writeRow(SheetSummary, []interface{}{g.Group, round2(g.Mean), g.Count}, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func round2(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Round(v*100) / 100
}
