// analytics.go
package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"FareInsight/src/config"
	"FareInsight/src/utils"
)

// 估算平均时长用的城市均速(公里/小时)
const assumedAvgSpeedKMH = 25.0

// 星期的固定展示顺序
var DayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// 时间段的固定展示顺序
var TimePeriodOrder = []string{"Morning", "Afternoon", "Evening", "Night"}

// KPI 面向看板的核心指标
type KPI struct {
	TotalRides      int
	TotalRevenue    float64
	AvgFare         float64
	AvgDistanceKM   float64
	AvgDurationMin  float64 // 按均速估算
	BusiestHour     int
	BusiestDay      string
	PeakMonth       int
	TopBorough      string
	InterBoroughPct float64
}

// CorrelationResult 车费与某数值特征的皮尔逊相关
type CorrelationResult struct {
	Feature string
	R       float64
	PValue  float64
}

// TTestResult 韦尔奇t检验结果
type TTestResult struct {
	T      float64
	PValue float64
	Valid  bool
}

// AnovaResult 单因素方差分析结果
type AnovaResult struct {
	F      float64
	PValue float64
	Groups int
	Valid  bool
}

// AnalysisReport 聚合分析阶段的全部产出
type AnalysisReport struct {
	KPI               KPI
	Hourly            dataframe.DataFrame // pickup_hour分组
	Daily             dataframe.DataFrame // 星期名分组，按周一到周日排列
	Monthly           dataframe.DataFrame // pickup_month分组
	Borough           dataframe.DataFrame // pickup_borough分组
	Correlations      []CorrelationResult // 按|r|降序
	WeekendTTest      TTestResult
	TimePeriodAnova   AnovaResult
	Warnings          []string
	NonFiniteExcluded int // 聚合前剔除的含NaN行数
}

// 与车费做相关分析的数值特征列
var correlationColumns = []string{
	"passenger_count",
	"pickup_year", "pickup_month", "pickup_day", "pickup_hour",
	"pickup_minute", "pickup_weekday", "pickup_week",
	"is_weekend", "is_peak_hour",
	"trip_distance_km", "manhattan_distance_km", "fare_per_km",
	"is_inter_borough",
	"pickup_distance_from_center", "dropoff_distance_from_center",
	"fare_per_passenger",
}

// Analytics 聚合/统计阶段，只读取特征表，不修改数据
type Analytics struct {
	rules *config.DataConfig
}

func NewAnalytics(rules *config.DataConfig) *Analytics {
	if rules == nil {
		rules = config.DefaultDataConfig()
	}
	return &Analytics{rules: rules}
}

// Run 对特征表做分组聚合和统计检验
// 含NaN衍生值的行先被剔除并记入警告，保证聚合结果不被污染
func (a *Analytics) Run(df dataframe.DataFrame) (*AnalysisReport, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("输入数据无效: %w", df.Err)
	}

	report := &AnalysisReport{}

	clean := df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: "trip_distance_km", Comparator: series.CompFunc, Comparando: isFiniteElement},
		dataframe.F{Colname: "fare_amount", Comparator: series.CompFunc, Comparando: isFiniteElement},
	)
	if clean.Err != nil {
		return nil, fmt.Errorf("剔除无效行失败: %w", clean.Err)
	}
	report.NonFiniteExcluded = df.Nrow() - clean.Nrow()
	if report.NonFiniteExcluded > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("剔除了 %d 行含非有限衍生值的数据", report.NonFiniteExcluded))
	}
	if clean.Nrow() == 0 {
		report.Warnings = append(report.Warnings, "无有效数据，跳过全部聚合分析")
		return report, nil
	}

	report.Hourly = a.aggregateBy(clean, "pickup_hour")
	report.Daily = orderRowsBy(a.aggregateBy(clean, "day_of_week"), "day_of_week", DayOrder)
	report.Monthly = a.aggregateBy(clean, "pickup_month")
	report.Borough = a.aggregateBy(clean, "pickup_borough")

	report.KPI = a.computeKPI(clean)
	report.Correlations = a.fareCorrelations(clean, report)
	report.WeekendTTest = a.weekendTTest(clean, report)
	report.TimePeriodAnova = a.timePeriodAnova(clean, report)

	return report, nil
}

// aggregateBy 按key分组，输出 rides_count/avg_fare/total_revenue/avg_distance/avg_passengers
// 数值保留两位小数，行按key排序
func (a *Analytics) aggregateBy(df dataframe.DataFrame, key string) dataframe.DataFrame {
	agg := df.GroupBy(key).Aggregation(
		[]dataframe.AggregationType{
			dataframe.Aggregation_COUNT,
			dataframe.Aggregation_MEAN,
			dataframe.Aggregation_SUM,
			dataframe.Aggregation_MEAN,
			dataframe.Aggregation_MEAN,
		},
		[]string{"fare_amount", "fare_amount", "fare_amount", "trip_distance_km", "passenger_count"},
	)
	if agg.Err != nil {
		return agg
	}

	agg = agg.Rename("rides_count", "fare_amount_COUNT").
		Rename("avg_fare", "fare_amount_MEAN").
		Rename("total_revenue", "fare_amount_SUM").
		Rename("avg_distance", "trip_distance_km_MEAN").
		Rename("avg_passengers", "passenger_count_MEAN")
	if agg.Err != nil {
		return agg
	}

	for _, col := range []string{"avg_fare", "total_revenue", "avg_distance", "avg_passengers"} {
		vals := agg.Col(col).Float()
		rounded := make([]float64, len(vals))
		for i, v := range vals {
			rounded[i] = math.Round(v*100) / 100
		}
		agg = agg.Mutate(series.New(rounded, series.Float, col))
	}

	agg = agg.Select([]string{key, "rides_count", "avg_fare", "total_revenue", "avg_distance", "avg_passengers"})
	return agg.Arrange(dataframe.Sort(key))
}

// orderRowsBy 按给定值顺序重排行，不在列表中的值保持末尾原序
func orderRowsBy(df dataframe.DataFrame, col string, order []string) dataframe.DataFrame {
	if df.Err != nil || df.Nrow() == 0 {
		return df
	}
	values := df.Col(col).Records()

	var idx []int
	for _, want := range order {
		for i, v := range values {
			if v == want {
				idx = append(idx, i)
			}
		}
	}
	for i, v := range values {
		if !utils.Contains(order, v) {
			idx = append(idx, i)
		}
	}
	return df.Subset(idx)
}

func (a *Analytics) computeKPI(df dataframe.DataFrame) KPI {
	fares := df.Col("fare_amount").Float()
	distances := df.Col("trip_distance_km").Float()

	avgDistance := stat.Mean(distances, nil)
	kpi := KPI{
		TotalRides:     df.Nrow(),
		TotalRevenue:   floats.Sum(fares),
		AvgFare:        stat.Mean(fares, nil),
		AvgDistanceKM:  avgDistance,
		AvgDurationMin: avgDistance / assumedAvgSpeedKMH * 60,
	}

	kpi.BusiestHour = modeInt(df.Col("pickup_hour"))
	kpi.BusiestDay = modeString(df.Col("day_of_week"))
	kpi.PeakMonth = modeInt(df.Col("pickup_month"))
	kpi.TopBorough = modeString(df.Col("pickup_borough"))
	kpi.InterBoroughPct = stat.Mean(df.Col("is_inter_borough").Float(), nil) * 100
	return kpi
}

// fareCorrelations 车费与各数值特征的皮尔逊相关及显著性
// 方差为零的列给出警告并跳过，不视为错误
func (a *Analytics) fareCorrelations(df dataframe.DataFrame, report *AnalysisReport) []CorrelationResult {
	fares := df.Col("fare_amount").Float()
	n := len(fares)

	var results []CorrelationResult
	for _, col := range correlationColumns {
		if !utils.HasColumn(df, col) {
			continue
		}
		x := df.Col(col).Float()
		r := stat.Correlation(fares, x, nil)
		if math.IsNaN(r) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("列 %s 方差退化，相关系数不可用", col))
			continue
		}
		results = append(results, CorrelationResult{
			Feature: col,
			R:       r,
			PValue:  pearsonPValue(r, n),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return math.Abs(results[i].R) > math.Abs(results[j].R)
	})
	return results
}

// weekendTTest 周末与工作日车费的韦尔奇t检验
func (a *Analytics) weekendTTest(df dataframe.DataFrame, report *AnalysisReport) TTestResult {
	weekend := filterFares(df, "is_weekend", 1)
	weekday := filterFares(df, "is_weekend", 0)

	t, p, ok := welchTTest(weekend, weekday)
	if !ok {
		report.Warnings = append(report.Warnings, "周末/工作日样本退化，t检验跳过")
		return TTestResult{T: math.NaN(), PValue: math.NaN()}
	}
	return TTestResult{T: t, PValue: p, Valid: true}
}

// timePeriodAnova 四个时间段车费的单因素方差分析
func (a *Analytics) timePeriodAnova(df dataframe.DataFrame, report *AnalysisReport) AnovaResult {
	var groups [][]float64
	for _, period := range TimePeriodOrder {
		fares := filterStringFares(df, "time_period", period)
		if len(fares) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("时间段 %s 无样本，方差分析时跳过该组", period))
			continue
		}
		groups = append(groups, fares)
	}

	f, p, ok := oneWayANOVA(groups)
	if !ok {
		report.Warnings = append(report.Warnings, "样本退化，方差分析跳过")
		return AnovaResult{F: math.NaN(), PValue: math.NaN(), Groups: len(groups)}
	}
	return AnovaResult{F: f, PValue: p, Groups: len(groups), Valid: true}
}

func filterFares(df dataframe.DataFrame, col string, want int) []float64 {
	sub := df.Filter(dataframe.F{Colname: col, Comparator: series.Eq, Comparando: want})
	if sub.Err != nil || sub.Nrow() == 0 {
		return nil
	}
	return sub.Col("fare_amount").Float()
}

func filterStringFares(df dataframe.DataFrame, col, want string) []float64 {
	sub := df.Filter(dataframe.F{Colname: col, Comparator: series.Eq, Comparando: want})
	if sub.Err != nil || sub.Nrow() == 0 {
		return nil
	}
	return sub.Col("fare_amount").Float()
}

// pearsonPValue 相关系数的双侧p值，基于t分布
func pearsonPValue(r float64, n int) float64 {
	if n <= 2 || math.Abs(r) >= 1 {
		return math.NaN()
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * (1 - dist.CDF(math.Abs(t)))
}

// welchTTest 不等方差双样本t检验，样本不足或方差全零时返回ok=false
func welchTTest(x, y []float64) (t, p float64, ok bool) {
	if len(x) < 2 || len(y) < 2 {
		return 0, 0, false
	}
	mx, vx := stat.MeanVariance(x, nil)
	my, vy := stat.MeanVariance(y, nil)
	nx, ny := float64(len(x)), float64(len(y))

	se2 := vx/nx + vy/ny
	if se2 == 0 {
		return 0, 0, false
	}
	t = (mx - my) / math.Sqrt(se2)

	// Welch-Satterthwaite 自由度
	num := se2 * se2
	den := (vx/nx)*(vx/nx)/(nx-1) + (vy/ny)*(vy/ny)/(ny-1)
	nu := num / den

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}
	p = 2 * (1 - dist.CDF(math.Abs(t)))
	return t, p, true
}

// oneWayANOVA 单因素方差分析，组内方差为零或组数不足时返回ok=false
func oneWayANOVA(groups [][]float64) (f, p float64, ok bool) {
	if len(groups) < 2 {
		return 0, 0, false
	}

	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	grandMean := stat.Mean(all, nil)
	n := float64(len(all))
	k := float64(len(groups))

	var ssBetween, ssWithin float64
	for _, g := range groups {
		gm := stat.Mean(g, nil)
		ssBetween += float64(len(g)) * (gm - grandMean) * (gm - grandMean)
		for _, v := range g {
			ssWithin += (v - gm) * (v - gm)
		}
	}

	dfBetween := k - 1
	dfWithin := n - k
	if dfWithin <= 0 || ssWithin == 0 {
		return 0, 0, false
	}

	f = (ssBetween / dfBetween) / (ssWithin / dfWithin)
	dist := distuv.F{D1: dfBetween, D2: dfWithin}
	p = 1 - dist.CDF(f)
	return f, p, true
}

// modeInt 整数列的众数，并列时取较小值，保证结果确定
func modeInt(s series.Series) int {
	counts := map[int]int{}
	for _, v := range s.Float() {
		if !math.IsNaN(v) {
			counts[int(v)]++
		}
	}
	best, bestCount := 0, -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

// modeString 字符串列的众数，并列时按字典序取小
func modeString(s series.Series) string {
	counts := map[string]int{}
	for _, v := range s.Records() {
		counts[v]++
	}
	best, bestCount := "", -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
