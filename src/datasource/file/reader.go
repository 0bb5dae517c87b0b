// reader.go
package file

import (
	"DeliveryInsight/src/utils"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// Excel 序列号形式的日期/时间
var excelSerial = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ReadOptions 读取参数
type ReadOptions struct {
	SheetName    string   // xlsx 工作表，为空取第一个
	Encoding     string   // csv 编码
	DateColumns  []string // xlsx 中可能以序列号保存的日期列
	ClockColumns []string // xlsx 中可能以序列号保存的时间列
}

// ReadDataset 按扩展名读取 csv 或 xlsx，所有列都按字符串加载
func ReadDataset(filePath string, opts ReadOptions) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".txt":
		return ReadCSV(filePath, opts.Encoding)
	case ".xlsx":
		df, err := ReadXLSX(filePath, opts.SheetName)
		if err != nil {
			return df, err
		}
		return NormalizeExcelTimes(df, opts.DateColumns, opts.ClockColumns), nil
	}
	return dataframe.DataFrame{}, fmt.Errorf("不支持的文件类型: %s", filePath)
}

// ReadDatasetBytes 读取内存中的数据集(如邮件附件)，name 只用来判断类型
func ReadDatasetBytes(name string, data []byte, opts ReadOptions) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSVFrom(bytes.NewReader(data), opts.Encoding)
	case ".xlsx":
		df, err := ReadXLSXBytes(data, opts.SheetName)
		if err != nil {
			return df, err
		}
		return NormalizeExcelTimes(df, opts.DateColumns, opts.ClockColumns), nil
	}
	return dataframe.DataFrame{}, fmt.Errorf("不支持的文件类型: %s", name)
}

// ReadCSV 读取 csv 文件
func ReadCSV(filePath, encoding string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	return ReadCSVFrom(f, encoding)
}

// ReadCSVFrom 从 reader 读取 csv，先按 encoding 转为 UTF-8
func ReadCSVFrom(r io.Reader, encoding string) (dataframe.DataFrame, error) {
	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.ReadCSV(decoded,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	return df, nil
}

// ReadXLSX 使用 tealeg/xlsx 打开文件
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	return sheetFrame(xlFile, sheetName)
}

// ReadXLSXBytes 邮件附件等内存中的 xlsx
func ReadXLSXBytes(data []byte, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx data: %w", err)
	}
	return sheetFrame(xlFile, sheetName)
}

func sheetFrame(xlFile *xlsx.File, sheetName string) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}

	// 未指定时取第一个工作表
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}

	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 第一行为表头，之后为数据
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) < 2 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有数据行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.String()))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 表头为空", sheet.Name)
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	for _, row := range sheet.Rows[1:] {
		if row == nil || emptyRow(row) {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) && row.Cells[i] != nil {
				value = strings.TrimSpace(row.Cells[i].Value)
			}
			columns[i] = append(columns[i], value)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return df, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

func emptyRow(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if cell != nil && strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}

// NormalizeExcelTimes 把日期/时间列中的 Excel 序列号转换为文本，其余值不变
func NormalizeExcelTimes(df dataframe.DataFrame, dateCols, clockCols []string) dataframe.DataFrame {
	for _, col := range dateCols {
		if utils.HasColumn(df, col) {
			df = df.Mutate(df.Col(col).Map(excelToDate))
		}
	}
	for _, col := range clockCols {
		if utils.HasColumn(df, col) {
			df = df.Mutate(df.Col(col).Map(excelToClock))
		}
	}
	return df
}

func excelToDate(v series.Element) series.Element {
	t, ok := excelToTime(v.String())
	if !ok {
		return v
	}
	v.Set(t.Format("2006-01-02"))
	return v
}

func excelToClock(v series.Element) series.Element {
	t, ok := excelToTime(v.String())
	if !ok {
		return v
	}
	v.Set(t.Format("15:04:05"))
	return v
}

// excelToTime Excel 序列号转 time.Time，1900 纪元
func excelToTime(s string) (time.Time, bool) {
	if !excelSerial.MatchString(s) {
		return time.Time{}, false
	}
	excelDays, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}

	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)

	// 四舍五入到秒，避免 0.999999 这类浮点误差
	secs := int64(fraction*86400 + 0.5)
	return base.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second), true
}
