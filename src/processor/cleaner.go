// cleaner.go
package processor

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"FareInsight/src/config"
	"FareInsight/src/utils"
)

// 原始行程表必须具备的列，缺列视为结构错误，整个阶段失败
var RequiredColumns = []string{
	"fare_amount",
	"pickup_datetime",
	"pickup_longitude",
	"pickup_latitude",
	"dropoff_longitude",
	"dropoff_latitude",
	"passenger_count",
}

// 清洗后统一的时间格式
const CanonicalTimeLayout = "2006-01-02 15:04:05"

// 原始数据里出现过的时间格式，按出现频率排列
var acceptedTimeLayouts = []string{
	"2006-01-02 15:04:05 UTC",
	CanonicalTimeLayout,
	time.RFC3339,
	"2006-01-02",
}

// 原始导出自带的标识列，清洗时一并去掉
var identifierColumns = []string{"Unnamed: 0", "key"}

// FareBounds 车费离群步骤实际使用的过滤边界
type FareBounds struct {
	Lower float64
	Upper float64
}

// StepResult 单个清洗步骤的结果
type StepResult struct {
	Name    string
	Removed int
	Bounds  *FareBounds // 仅车费离群步骤填写
}

// CleaningReport 整个清洗阶段的不可变汇总，由驱动方组装，各步骤自身不持有状态
type CleaningReport struct {
	OriginalRows   int
	FinalRows      int
	Steps          []StepResult
	FareLowerBound float64 // 第三步实际使用的车费下界
	FareUpperBound float64 // 第三步实际使用的车费上界(IQR上界与FareCap取小)
}

// TotalRemoved 清洗阶段删除的总行数
func (r *CleaningReport) TotalRemoved() int {
	return r.OriginalRows - r.FinalRows
}

// RetentionRate 数据保留率，原始为空时返回NaN
func (r *CleaningReport) RetentionRate() float64 {
	if r.OriginalRows == 0 {
		return math.NaN()
	}
	return float64(r.FinalRows) / float64(r.OriginalRows)
}

// CleanStep 一个清洗步骤：纯函数 (df) -> (df, 步骤结果, 错误)
// 步骤顺序固定且有业务含义：车费IQR界在前两步过滤后的数据上计算
type CleanStep struct {
	Name  string
	Apply func(dataframe.DataFrame) (dataframe.DataFrame, StepResult, error)
}

// Cleaner 清洗阶段，规则全部来自DataConfig，自身不持有运行状态
type Cleaner struct {
	rules *config.DataConfig
}

func NewCleaner(rules *config.DataConfig) *Cleaner {
	if rules == nil {
		rules = config.DefaultDataConfig()
	}
	return &Cleaner{rules: rules}
}

// Steps 返回固定顺序的清洗步骤序列
func (c *Cleaner) Steps() []CleanStep {
	return []CleanStep{
		{Name: "missing_dropoff_removed", Apply: c.dropMissingDropoff},
		{Name: "negative_fares_removed", Apply: c.dropNonPositiveFares},
		{Name: "fare_outliers_removed", Apply: c.dropFareOutliers},
		{Name: "coordinate_outliers_removed", Apply: c.dropOutOfCityCoordinates},
		{Name: "passenger_outliers_removed", Apply: c.dropInvalidPassengerCounts},
		{Name: "unparsable_datetime_removed", Apply: c.coerceDatetime},
	}
}

// Run 依次执行全部清洗步骤并组装报告
// 返回的DataFrame已去除标识列，时间列为规范格式字符串
func (c *Cleaner) Run(df dataframe.DataFrame) (dataframe.DataFrame, *CleaningReport, error) {
	if df.Err != nil {
		return df, nil, fmt.Errorf("输入数据无效: %w", df.Err)
	}
	if err := checkSchema(df); err != nil {
		return df, nil, err
	}

	report := &CleaningReport{OriginalRows: df.Nrow()}

	for _, step := range c.Steps() {
		out, res, err := step.Apply(df)
		if err != nil {
			return df, report, fmt.Errorf("清洗步骤 %s 失败: %w", step.Name, err)
		}
		res.Name = step.Name
		report.Steps = append(report.Steps, res)
		if res.Bounds != nil {
			report.FareLowerBound = res.Bounds.Lower
			report.FareUpperBound = res.Bounds.Upper
		}
		df = out
	}

	df = dropIdentifierColumns(df)
	if df.Err != nil {
		return df, report, fmt.Errorf("去除标识列失败: %w", df.Err)
	}

	report.FinalRows = df.Nrow()
	return df, report, nil
}

func checkSchema(df dataframe.DataFrame) error {
	for _, col := range RequiredColumns {
		if !utils.HasColumn(df, col) {
			return fmt.Errorf("缺少必需列: %s", col)
		}
	}
	return nil
}

// 步骤1：去掉缺失下车坐标的行
func (c *Cleaner) dropMissingDropoff(df dataframe.DataFrame) (dataframe.DataFrame, StepResult, error) {
	before := df.Nrow()
	out := df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: "dropoff_longitude", Comparator: series.CompFunc, Comparando: isFiniteElement},
		dataframe.F{Colname: "dropoff_latitude", Comparator: series.CompFunc, Comparando: isFiniteElement},
	)
	if out.Err != nil {
		return df, StepResult{}, out.Err
	}
	return out, StepResult{Removed: before - out.Nrow()}, nil
}

// 步骤2：去掉车费非正的行
func (c *Cleaner) dropNonPositiveFares(df dataframe.DataFrame) (dataframe.DataFrame, StepResult, error) {
	before := df.Nrow()
	out := df.Filter(
		dataframe.F{Colname: "fare_amount", Comparator: series.Greater, Comparando: 0.0},
	)
	if out.Err != nil {
		return df, StepResult{}, out.Err
	}
	return out, StepResult{Removed: before - out.Nrow()}, nil
}

// 步骤3：按IQR去掉车费离群行，实际使用的界随结果一并返回
// 界在前两步过滤后的数据上计算；IQR为0时退化为[Q1,Q3]，避免误删全部数据；
// 上界与配置的FareCap取小
func (c *Cleaner) dropFareOutliers(df dataframe.DataFrame) (dataframe.DataFrame, StepResult, error) {
	if df.Nrow() == 0 {
		return df, StepResult{Bounds: &FareBounds{Lower: math.NaN(), Upper: math.NaN()}}, nil
	}

	fares := df.Col("fare_amount")
	q1 := fares.Quantile(0.25)
	q3 := fares.Quantile(0.75)
	iqr := q3 - q1

	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	if iqr == 0 {
		lower, upper = q1, q3
	}
	upper = math.Min(upper, c.rules.FareCap)

	before := df.Nrow()
	out := df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: "fare_amount", Comparator: series.GreaterEq, Comparando: lower},
		dataframe.F{Colname: "fare_amount", Comparator: series.LessEq, Comparando: upper},
	)
	if out.Err != nil {
		return df, StepResult{}, out.Err
	}
	res := StepResult{
		Removed: before - out.Nrow(),
		Bounds:  &FareBounds{Lower: lower, Upper: upper},
	}
	return out, res, nil
}

// 步骤4：去掉任一坐标超出城市范围的行
func (c *Cleaner) dropOutOfCityCoordinates(df dataframe.DataFrame) (dataframe.DataFrame, StepResult, error) {
	b := c.rules.CityBounds
	before := df.Nrow()
	out := df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: "pickup_longitude", Comparator: series.GreaterEq, Comparando: b.MinLon},
		dataframe.F{Colname: "pickup_longitude", Comparator: series.LessEq, Comparando: b.MaxLon},
		dataframe.F{Colname: "pickup_latitude", Comparator: series.GreaterEq, Comparando: b.MinLat},
		dataframe.F{Colname: "pickup_latitude", Comparator: series.LessEq, Comparando: b.MaxLat},
		dataframe.F{Colname: "dropoff_longitude", Comparator: series.GreaterEq, Comparando: b.MinLon},
		dataframe.F{Colname: "dropoff_longitude", Comparator: series.LessEq, Comparando: b.MaxLon},
		dataframe.F{Colname: "dropoff_latitude", Comparator: series.GreaterEq, Comparando: b.MinLat},
		dataframe.F{Colname: "dropoff_latitude", Comparator: series.LessEq, Comparando: b.MaxLat},
	)
	if out.Err != nil {
		return df, StepResult{}, out.Err
	}
	return out, StepResult{Removed: before - out.Nrow()}, nil
}

// 步骤5：去掉乘客数不在[最小,最大]范围内的行
func (c *Cleaner) dropInvalidPassengerCounts(df dataframe.DataFrame) (dataframe.DataFrame, StepResult, error) {
	before := df.Nrow()
	out := df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: "passenger_count", Comparator: series.GreaterEq, Comparando: c.rules.MinPassengers},
		dataframe.F{Colname: "passenger_count", Comparator: series.LessEq, Comparando: c.rules.MaxPassengers},
	)
	if out.Err != nil {
		return df, StepResult{}, out.Err
	}
	return out, StepResult{Removed: before - out.Nrow()}, nil
}

// 步骤6：时间列规范化
// 解析失败的行不会中断整个阶段，而是作为独立条目计入报告后删除，结果保持确定性
func (c *Cleaner) coerceDatetime(df dataframe.DataFrame) (dataframe.DataFrame, StepResult, error) {
	raw := df.Col("pickup_datetime").Records()

	var validIdx []int
	normalized := make([]string, 0, len(raw))
	for i, v := range raw {
		t, ok := parsePickupTime(v)
		if !ok {
			continue
		}
		validIdx = append(validIdx, i)
		normalized = append(normalized, t.Format(CanonicalTimeLayout))
	}

	removed := len(raw) - len(validIdx)
	if removed == 0 && len(raw) > 0 {
		// 全部可解析，只做格式统一
		out := df.Mutate(series.New(normalized, series.String, "pickup_datetime"))
		return out, StepResult{}, out.Err
	}

	out := df.Subset(validIdx)
	if out.Err != nil {
		return df, StepResult{}, out.Err
	}
	out = out.Mutate(series.New(normalized, series.String, "pickup_datetime"))
	return out, StepResult{Removed: removed}, out.Err
}

// parsePickupTime 按已知格式列表解析时间，不做时区换算
func parsePickupTime(v string) (time.Time, bool) {
	for _, layout := range acceptedTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dropIdentifierColumns(df dataframe.DataFrame) dataframe.DataFrame {
	var present []string
	for _, col := range identifierColumns {
		if utils.HasColumn(df, col) {
			present = append(present, col)
		}
	}
	if len(present) == 0 {
		return df
	}
	return df.Drop(present)
}

func isFiniteElement(el series.Element) bool {
	if el.IsNA() {
		return false
	}
	f := el.Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
