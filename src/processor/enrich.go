package processor

import (
	"DeliveryInsight/src/storage"
	"strings"
	"time"
)

// Enricher 删除不完整行并派生时间、时段、评分分组
type Enricher struct {
	RatingEdges []float64
	Policy      PeriodPolicy
	Logger      *storage.Logger // 可为空
}

// NewEnricher 使用默认分桶边界
func NewEnricher(logger *storage.Logger) *Enricher {
	return &Enricher{RatingEdges: DefaultRatingEdges, Policy: PeriodTotal, Logger: logger}
}

// Enrich 使用默认参数
func Enrich(records []DeliveryRecord) ([]EnrichedRecord, CleanReport, error) {
	return NewEnricher(nil).Enrich(records)
}

// Enrich 单次顺序处理，任何时间解析失败都会中止并返回 *ParseError
func (e *Enricher) Enrich(records []DeliveryRecord) ([]EnrichedRecord, CleanReport, error) {
	edges := e.RatingEdges
	if len(edges) == 0 {
		edges = DefaultRatingEdges
	}

	complete := DropIncomplete(records)
	report := newCleanReport(len(records), len(complete))
	if e.Logger != nil {
		e.Logger.Infof("删除不完整行: %d / %d (%s)", report.Dropped, report.Raw, report.Percent())
	}

	out := make([]EnrichedRecord, 0, len(complete))
	for _, r := range complete {
		er, err := e.enrichOne(r, edges)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Error(err.Error())
			}
			return nil, report, err
		}
		out = append(out, er)
	}
	return out, report, nil
}

// DropIncomplete 返回所有字段齐全的记录，保持原有顺序
func DropIncomplete(records []DeliveryRecord) []DeliveryRecord {
	kept := make([]DeliveryRecord, 0, len(records))
	for _, r := range records {
		if !r.Incomplete() {
			kept = append(kept, r)
		}
	}
	return kept
}

func (e *Enricher) enrichOne(r DeliveryRecord, edges []float64) (EnrichedRecord, error) {
	date, err := parseField(r.Row, "Order_Date", r.OrderDate, DateLayout)
	if err != nil {
		return EnrichedRecord{}, err
	}
	clock, err := parseField(r.Row, "Order_Time", r.OrderTime, ClockLayout)
	if err != nil {
		return EnrichedRecord{}, err
	}
	pickup, err := parseField(r.Row, "Pickup_Time", r.PickupTime, ClockLayout)
	if err != nil {
		return EnrichedRecord{}, err
	}

	orderAt := time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)

	return EnrichedRecord{
		DeliveryRecord: r,
		OrderDateTime:  orderAt,
		PickupClock:    pickup,
		OrderWeekday:   Weekday(orderAt),
		OrderHour:      orderAt.Hour(),
		TimePeriod:     TimePeriod(orderAt.Hour(), e.Policy),
		RatingGroup:    RatingGroup(r.AgentRating, edges),
	}, nil
}

// Weekday 周一为0，周日为6
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func parseField(row int, field, value, layout string) (time.Time, error) {
	v := strings.TrimSpace(value)
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, &ParseError{Row: row, Field: field, Value: value, Layout: layout, Err: err}
	}
	return t, nil
}
