// data.go
package processor

import (
	"DeliveryInsight/src/config"
	"DeliveryInsight/src/storage"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Result 一次分析的全部输出，只在内存中保存
type Result struct {
	Rows, Cols int
	Missing    []ColumnMissing
	Outliers   OutlierReport
	Dataset    *Dataset
	Enriched   []EnrichedRecord
	Report     CleanReport
	Frame      dataframe.DataFrame // 清洗并派生后的数据表
	Summary    *Summary
	Elapsed    time.Duration
}

type DataProcessor struct {
	dcfg     *config.DataConfig
	enricher *Enricher
	logger   *storage.Logger
}

func NewDataProcessor(dcfg *config.DataConfig, logger *storage.Logger) (*DataProcessor, error) {
	policy, err := ParsePeriodPolicy(dcfg.TimePeriodPolicy)
	if err != nil {
		return nil, err
	}
	edges := dcfg.RatingEdges
	if len(edges) == 0 {
		edges = DefaultRatingEdges
	}
	return &DataProcessor{
		dcfg:     dcfg,
		enricher: &Enricher{RatingEdges: edges, Policy: policy, Logger: logger},
		logger:   logger,
	}, nil
}

// Run 审计 -> 转换记录 -> 清洗派生 -> 汇总
func (p *DataProcessor) Run(df dataframe.DataFrame) (*Result, error) {
	t1 := time.Now()
	if df.Err != nil {
		return nil, fmt.Errorf("数据表无效: %w", df.Err)
	}

	res := &Result{}
	res.Rows, res.Cols = Shape(df)
	p.logf("数据规模: %d 行 x %d 列", res.Rows, res.Cols)

	res.Missing = AuditMissing(df)
	for _, m := range res.Missing {
		p.logf("空值: %s %d (%.2f%%)", m.Column, m.Missing, m.Percent)
	}

	ds, err := RecordsFromFrame(df, p.dcfg.Columns)
	if err != nil {
		return nil, err
	}
	res.Dataset = ds

	outliers, err := CountOutliers(df, ds.Columns[config.FieldDeliveryTime], p.dcfg.OutlierThreshold)
	if err != nil {
		return nil, err
	}
	res.Outliers = outliers
	p.logf("配送时长低于 %g 分钟: %d (%.2f%%)", outliers.Threshold, outliers.Count, outliers.Percent)

	enriched, report, err := p.enricher.Enrich(ds.Records)
	res.Report = report
	if err != nil {
		return nil, err
	}
	res.Enriched = enriched

	res.Frame = FrameFromEnriched(ds, enriched)
	if res.Frame.Err != nil {
		return nil, fmt.Errorf("生成结果表失败: %w", res.Frame.Err)
	}

	res.Summary, err = Summarize(res.Frame, ds.Columns, p.enricher.RatingEdges, p.dcfg.TopCategories)
	if err != nil {
		return nil, err
	}

	res.Elapsed = time.Since(t1)
	p.logf("数据处理时间：%v", res.Elapsed)
	return res, nil
}

func (p *DataProcessor) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Infof(format, args...)
	}
}
