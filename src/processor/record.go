package processor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 时间格式
const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04:05"
	DateTimeLayout = DateLayout + " " + ClockLayout
)

// Unbucketed 评分缺失或超出分桶范围
const Unbucketed = "unbucketed"

// ErrMissingColumn 数据集缺少必需的列
var ErrMissingColumn = errors.New("missing required column")

// DeliveryRecord 一条原始配送记录
type DeliveryRecord struct {
	Row          int      // 数据行号，从1开始，不含表头
	OrderDate    string   // YYYY-MM-DD
	OrderTime    string   // HH:MM:SS
	PickupTime   string   // HH:MM:SS
	DeliveryTime *float64 // 配送时长(分钟)
	AgentRating  *float64 // 骑手评分 0-5，可缺失
	Vehicle      string
	Area         string
	Category     string
	Weather      string

	Extra map[string]string // 其余列原样透传
}

// EnrichedRecord 清洗并派生特征后的记录
type EnrichedRecord struct {
	DeliveryRecord

	OrderDateTime time.Time
	PickupClock   time.Time
	OrderWeekday  int // 周一为0
	OrderHour     int
	TimePeriod    string
	RatingGroup   string
}

// CleanReport 删除不完整行的统计
type CleanReport struct {
	Raw        int
	Kept       int
	Dropped    int
	DroppedPct float64
}

// Percent 以 "5.00%" 形式输出删除比例
func (r CleanReport) Percent() string {
	return fmt.Sprintf("%.2f%%", r.DroppedPct)
}

func newCleanReport(raw, kept int) CleanReport {
	r := CleanReport{Raw: raw, Kept: kept, Dropped: raw - kept}
	if raw > 0 {
		r.DroppedPct = float64(r.Dropped) / float64(raw) * 100
	}
	return r
}

// ParseError 时间字段不符合格式，整个运行中止
type ParseError struct {
	Row    int
	Field  string
	Value  string
	Layout string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %s %q with layout %s", e.Row, e.Field, e.Value, e.Layout)
}

func (e *ParseError) Unwrap() error { return e.Err }

var nullTokens = map[string]struct{}{
	"":      {},
	"na":    {},
	"nan":   {},
	"null":  {},
	"none":  {},
	"n/a":   {},
	"<nil>": {},
}

// IsNull 判断单元格是否为空值
func IsNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Incomplete 任一字段缺失即视为不完整
func (r DeliveryRecord) Incomplete() bool {
	for _, s := range []string{r.OrderDate, r.OrderTime, r.PickupTime, r.Vehicle, r.Area, r.Category, r.Weather} {
		if IsNull(s) {
			return true
		}
	}
	if r.DeliveryTime == nil || r.AgentRating == nil {
		return true
	}
	for _, v := range r.Extra {
		if IsNull(v) {
			return true
		}
	}
	return false
}
