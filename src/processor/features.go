// features.go
package processor

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"FareInsight/src/config"
)

// FarePerKMEpsilon 每公里类指标分母加的小量，避免零距离行程除零
// 导出侧的revenue_per_km也用同一个值
const FarePerKMEpsilon = 0.001

// FeatureReport 特征阶段的汇总信息
type FeatureReport struct {
	AddedColumns   []string
	NonFiniteRows  int // 衍生结果含NaN的行数，聚合统计时会跳过
	OriginalFields int
}

// FeatureEngineer 特征阶段：为清洗后的表追加衍生列
// 全部为现有列的纯函数，不删行、不改行序
type FeatureEngineer struct {
	rules *config.DataConfig
}

func NewFeatureEngineer(rules *config.DataConfig) *FeatureEngineer {
	if rules == nil {
		rules = config.DefaultDataConfig()
	}
	return &FeatureEngineer{rules: rules}
}

// Run 依次追加时间、距离、地理、乘客四组衍生列
func (fe *FeatureEngineer) Run(df dataframe.DataFrame) (dataframe.DataFrame, *FeatureReport, error) {
	if df.Err != nil {
		return df, nil, fmt.Errorf("输入数据无效: %w", df.Err)
	}
	report := &FeatureReport{OriginalFields: df.Ncol()}

	var err error
	for _, stage := range []func(dataframe.DataFrame, *FeatureReport) (dataframe.DataFrame, error){
		fe.temporalFeatures,
		fe.distanceFeatures,
		fe.locationFeatures,
		fe.passengerFeatures,
	} {
		df, err = stage(df, report)
		if err != nil {
			return df, report, err
		}
	}
	return df, report, nil
}

// temporalFeatures 时间分解，保持记录自带时区，不做换算
func (fe *FeatureEngineer) temporalFeatures(df dataframe.DataFrame, report *FeatureReport) (dataframe.DataFrame, error) {
	n := df.Nrow()
	raw := df.Col("pickup_datetime").Records()

	years := make([]int, n)
	months := make([]int, n)
	days := make([]int, n)
	hours := make([]int, n)
	minutes := make([]int, n)
	weekdays := make([]int, n)
	weeks := make([]int, n)
	dayNames := make([]string, n)
	monthNames := make([]string, n)
	periods := make([]string, n)
	weekends := make([]int, n)
	peaks := make([]int, n)

	for i := 0; i < n; i++ {
		t, err := time.Parse(CanonicalTimeLayout, raw[i])
		if err != nil {
			return df, fmt.Errorf("时间列未规范化(第%d行): %w", i, err)
		}

		wd := pandasWeekday(t.Weekday())
		_, isoWeek := t.ISOWeek()

		years[i] = t.Year()
		months[i] = int(t.Month())
		days[i] = t.Day()
		hours[i] = t.Hour()
		minutes[i] = t.Minute()
		weekdays[i] = wd
		weeks[i] = isoWeek
		dayNames[i] = t.Weekday().String()
		monthNames[i] = t.Month().String()
		periods[i] = TimePeriod(t.Hour())
		weekends[i] = boolToInt(wd >= 5)
		peaks[i] = boolToInt(IsPeakHour(t.Hour(), wd))
	}

	df = mutateAll(df, report,
		series.New(years, series.Int, "pickup_year"),
		series.New(months, series.Int, "pickup_month"),
		series.New(days, series.Int, "pickup_day"),
		series.New(hours, series.Int, "pickup_hour"),
		series.New(minutes, series.Int, "pickup_minute"),
		series.New(weekdays, series.Int, "pickup_weekday"),
		series.New(weeks, series.Int, "pickup_week"),
		series.New(dayNames, series.String, "day_of_week"),
		series.New(monthNames, series.String, "month_name"),
		series.New(periods, series.String, "time_period"),
		series.New(weekends, series.Int, "is_weekend"),
		series.New(peaks, series.Int, "is_peak_hour"),
	)
	return df, df.Err
}

// distanceFeatures 距离衍生：大圆距离、网格近似距离、每公里车费、距离分桶
func (fe *FeatureEngineer) distanceFeatures(df dataframe.DataFrame, report *FeatureReport) (dataframe.DataFrame, error) {
	n := df.Nrow()
	pLat := df.Col("pickup_latitude").Float()
	pLon := df.Col("pickup_longitude").Float()
	dLat := df.Col("dropoff_latitude").Float()
	dLon := df.Col("dropoff_longitude").Float()
	fares := df.Col("fare_amount").Float()

	trip := make([]float64, n)
	manhattan := make([]float64, n)
	farePerKM := make([]float64, n)
	categories := make([]string, n)

	nonFinite := 0
	for i := 0; i < n; i++ {
		trip[i] = HaversineKM(pLat[i], pLon[i], dLat[i], dLon[i])
		manhattan[i] = ManhattanKM(pLat[i], pLon[i], dLat[i], dLon[i])
		farePerKM[i] = fares[i] / (trip[i] + FarePerKMEpsilon)
		categories[i] = DistanceCategory(trip[i])
		if math.IsNaN(trip[i]) || math.IsNaN(farePerKM[i]) {
			nonFinite++
		}
	}
	report.NonFiniteRows += nonFinite

	df = mutateAll(df, report,
		series.New(trip, series.Float, "trip_distance_km"),
		series.New(manhattan, series.Float, "manhattan_distance_km"),
		series.New(farePerKM, series.Float, "fare_per_km"),
		series.New(categories, series.String, "distance_category"),
	)
	return df, df.Err
}

// locationFeatures 地理衍生：上下车行政区、跨区标记、距市中心距离
func (fe *FeatureEngineer) locationFeatures(df dataframe.DataFrame, report *FeatureReport) (dataframe.DataFrame, error) {
	n := df.Nrow()
	pLat := df.Col("pickup_latitude").Float()
	pLon := df.Col("pickup_longitude").Float()
	dLat := df.Col("dropoff_latitude").Float()
	dLon := df.Col("dropoff_longitude").Float()

	centerLat := fe.rules.CityCenter.Lat
	centerLon := fe.rules.CityCenter.Lon

	pickupBoroughs := make([]string, n)
	dropoffBoroughs := make([]string, n)
	interBorough := make([]int, n)
	pickupCenterDist := make([]float64, n)
	dropoffCenterDist := make([]float64, n)

	for i := 0; i < n; i++ {
		pickupBoroughs[i] = ClassifyBorough(fe.rules.Boroughs, pLat[i], pLon[i])
		dropoffBoroughs[i] = ClassifyBorough(fe.rules.Boroughs, dLat[i], dLon[i])
		interBorough[i] = boolToInt(pickupBoroughs[i] != dropoffBoroughs[i])
		pickupCenterDist[i] = DistanceFromCenterKM(pLat[i], pLon[i], centerLat, centerLon)
		dropoffCenterDist[i] = DistanceFromCenterKM(dLat[i], dLon[i], centerLat, centerLon)
	}

	df = mutateAll(df, report,
		series.New(pickupBoroughs, series.String, "pickup_borough"),
		series.New(dropoffBoroughs, series.String, "dropoff_borough"),
		series.New(interBorough, series.Int, "is_inter_borough"),
		series.New(pickupCenterDist, series.Float, "pickup_distance_from_center"),
		series.New(dropoffCenterDist, series.Float, "dropoff_distance_from_center"),
	)
	return df, df.Err
}

// passengerFeatures 乘客衍生：人均车费、乘客分类
// 清洗阶段已保证乘客数>=1，不存在除零
func (fe *FeatureEngineer) passengerFeatures(df dataframe.DataFrame, report *FeatureReport) (dataframe.DataFrame, error) {
	n := df.Nrow()
	fares := df.Col("fare_amount").Float()
	passengers := df.Col("passenger_count").Float()

	perPassenger := make([]float64, n)
	categories := make([]string, n)
	for i := 0; i < n; i++ {
		perPassenger[i] = fares[i] / passengers[i]
		categories[i] = PassengerCategory(int(passengers[i]))
	}

	df = mutateAll(df, report,
		series.New(perPassenger, series.Float, "fare_per_passenger"),
		series.New(categories, series.String, "passenger_category"),
	)
	return df, df.Err
}

// TimePeriod 按小时分桶：[5,12)早 [12,17)午 [17,21)晚 其余夜
func TimePeriod(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 17:
		return "Afternoon"
	case hour >= 17 && hour < 21:
		return "Evening"
	default:
		return "Night"
	}
}

// IsPeakHour 高峰判定，工作日与周末规则不同，边界均为闭区间
// 工作日：7-9点与17-19点；周末：11-14点与18-20点
func IsPeakHour(hour, weekday int) bool {
	if weekday < 5 {
		return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
	}
	return (hour >= 11 && hour <= 14) || (hour >= 18 && hour <= 20)
}

// DistanceCategory 行程距离五档分桶，NaN距离归入 Unknown 并由报告计数
func DistanceCategory(km float64) string {
	switch {
	case math.IsNaN(km):
		return "Unknown"
	case km < 1:
		return "Very Short"
	case km < 3:
		return "Short"
	case km < 7:
		return "Medium"
	case km < 15:
		return "Long"
	default:
		return "Very Long"
	}
}

// PassengerCategory 乘客数分类
func PassengerCategory(count int) string {
	switch {
	case count == 1:
		return "Solo"
	case count == 2:
		return "Couple"
	case count <= 4:
		return "Small Group"
	default:
		return "Large Group"
	}
}

// pandasWeekday 把Go的周日=0换算成周一=0的编号
func pandasWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mutateAll(df dataframe.DataFrame, report *FeatureReport, cols ...series.Series) dataframe.DataFrame {
	for _, col := range cols {
		df = df.Mutate(col)
		if df.Err != nil {
			return df
		}
		report.AddedColumns = append(report.AddedColumns, col.Name)
	}
	return df
}
