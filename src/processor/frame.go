package processor

import (
	"DeliveryInsight/src/config"
	"DeliveryInsight/src/utils"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 派生列名
const (
	ColOrderDateTime = "Order_DateTime"
	ColOrderWeekday  = "Order_Weekday"
	ColOrderHour     = "Order_Hour"
	ColTimePeriod    = "Time_Period"
	ColRatingGroup   = "Rating_Group"
	ColPickupWait    = "Pickup_Wait" // 只在汇总中使用
)

var requiredFields = []string{
	config.FieldOrderDate,
	config.FieldOrderTime,
	config.FieldPickupTime,
	config.FieldDeliveryTime,
	config.FieldAgentRating,
	config.FieldVehicle,
	config.FieldArea,
	config.FieldCategory,
	config.FieldWeather,
}

// Dataset 原始记录及其表头信息
type Dataset struct {
	Header  []string          // 原始表头顺序
	Columns map[string]string // 逻辑字段 -> 表头
	Records []DeliveryRecord
}

// Extras 不属于任何逻辑字段的列
func (ds *Dataset) Extras() []string {
	known := make(map[string]bool, len(ds.Columns))
	for _, h := range ds.Columns {
		known[h] = true
	}
	var extras []string
	for _, h := range ds.Header {
		if !known[h] {
			extras = append(extras, h)
		}
	}
	return extras
}

// RecordsFromFrame 按列映射把原始表转换为记录
func RecordsFromFrame(df dataframe.DataFrame, columns map[string]string) (*Dataset, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("读取数据表失败: %w", df.Err)
	}
	if columns == nil {
		columns = config.DefaultColumns
	}

	names := df.Names()
	ds := &Dataset{Header: names, Columns: make(map[string]string, len(requiredFields))}
	headers := make([]string, 0, len(requiredFields))
	for _, field := range requiredFields {
		header := columns[field]
		if header == "" {
			header = config.DefaultColumns[field]
		}
		ds.Columns[field] = header
		headers = append(headers, header)
	}
	if missing := utils.MissingColumns(df, headers...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	cols := make(map[string][]string, len(names))
	for _, n := range names {
		cols[n] = df.Col(n).Records()
	}
	extras := ds.Extras()
	get := func(field string, i int) string {
		return cleanCell(cols[ds.Columns[field]][i])
	}

	nrow := df.Nrow()
	ds.Records = make([]DeliveryRecord, 0, nrow)
	for i := 0; i < nrow; i++ {
		r := DeliveryRecord{
			Row:          i + 1,
			OrderDate:    get(config.FieldOrderDate, i),
			OrderTime:    get(config.FieldOrderTime, i),
			PickupTime:   get(config.FieldPickupTime, i),
			DeliveryTime: parseNumber(get(config.FieldDeliveryTime, i)),
			AgentRating:  parseNumber(get(config.FieldAgentRating, i)),
			Vehicle:      get(config.FieldVehicle, i),
			Area:         get(config.FieldArea, i),
			Category:     get(config.FieldCategory, i),
			Weather:      get(config.FieldWeather, i),
		}
		if len(extras) > 0 {
			r.Extra = make(map[string]string, len(extras))
			for _, h := range extras {
				r.Extra[h] = cleanCell(cols[h][i])
			}
		}
		ds.Records = append(ds.Records, r)
	}
	return ds, nil
}

// FrameFromEnriched 原始列在前，派生列在后
func FrameFromEnriched(ds *Dataset, records []EnrichedRecord) dataframe.DataFrame {
	byHeader := make(map[string]string, len(ds.Columns))
	for field, h := range ds.Columns {
		byHeader[h] = field
	}

	var cols []series.Series
	for _, h := range ds.Header {
		field, known := byHeader[h]
		switch {
		case field == config.FieldDeliveryTime || field == config.FieldAgentRating:
			vals := make([]float64, len(records))
			for i, r := range records {
				if p := numberField(r.DeliveryRecord, field); p != nil {
					vals[i] = *p
				}
			}
			cols = append(cols, series.New(vals, series.Float, h))
		default:
			vals := make([]string, len(records))
			for i, r := range records {
				if known {
					vals[i] = stringField(r.DeliveryRecord, field)
				} else {
					vals[i] = r.Extra[h]
				}
			}
			cols = append(cols, series.New(vals, series.String, h))
		}
	}

	n := len(records)
	stamps := make([]string, n)
	weekdays := make([]int, n)
	hours := make([]int, n)
	periods := make([]string, n)
	groups := make([]string, n)
	for i, r := range records {
		stamps[i] = r.OrderDateTime.Format(DateTimeLayout)
		weekdays[i] = r.OrderWeekday
		hours[i] = r.OrderHour
		periods[i] = r.TimePeriod
		groups[i] = r.RatingGroup
	}
	cols = append(cols,
		series.New(stamps, series.String, ColOrderDateTime),
		series.New(weekdays, series.Int, ColOrderWeekday),
		series.New(hours, series.Int, ColOrderHour),
		series.New(periods, series.String, ColTimePeriod),
		series.New(groups, series.String, ColRatingGroup),
	)
	return dataframe.New(cols...)
}

func stringField(r DeliveryRecord, field string) string {
	switch field {
	case config.FieldOrderDate:
		return r.OrderDate
	case config.FieldOrderTime:
		return r.OrderTime
	case config.FieldPickupTime:
		return r.PickupTime
	case config.FieldVehicle:
		return r.Vehicle
	case config.FieldArea:
		return r.Area
	case config.FieldCategory:
		return r.Category
	case config.FieldWeather:
		return r.Weather
	}
	return ""
}

func numberField(r DeliveryRecord, field string) *float64 {
	if field == config.FieldDeliveryTime {
		return r.DeliveryTime
	}
	return r.AgentRating
}

func cleanCell(s string) string {
	if IsNull(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// parseNumber 空值或无法解析的数字都视为缺失
func parseNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
