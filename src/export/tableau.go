// tableau.go
package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"FareInsight/src/processor"
)

// Exporter 导出阶段：把清洗表、特征表和聚合结果写成看板方需要的文件
type Exporter struct {
	outputDir string
	prefix    string // 文件名前缀，如 uber
}

func NewExporter(outputDir, prefix string) *Exporter {
	return &Exporter{outputDir: outputDir, prefix: prefix}
}

func (e *Exporter) path(suffix string) string {
	return filepath.Join(e.outputDir, fmt.Sprintf("%s_%s", e.prefix, suffix))
}

func (e *Exporter) ensureDir() error {
	return os.MkdirAll(e.outputDir, 0755)
}

// WriteCSV 把DataFrame写成带表头的csv文件
func (e *Exporter) WriteCSV(df dataframe.DataFrame, suffix string) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	filePath := e.path(suffix)
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	defer f.Close()

	if err := df.WriteCSV(f, dataframe.WriteHeader(true)); err != nil {
		return "", fmt.Errorf("写入csv失败: %w", err)
	}
	return filePath, nil
}

// WriteCleaned 导出清洗后的表
func (e *Exporter) WriteCleaned(df dataframe.DataFrame) (string, error) {
	return e.WriteCSV(df, "cleaned.csv")
}

// WriteEnhanced 导出特征增强后的表
func (e *Exporter) WriteEnhanced(df dataframe.DataFrame) (string, error) {
	return e.WriteCSV(df, "enhanced.csv")
}

// BuildTableauReady 在特征表上追加看板专用展示列
// 这些列只为方便看板展示，不参与任何计算
func BuildTableauReady(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	n := df.Nrow()
	raw := df.Col("pickup_datetime").Records()

	dates := make([]string, n)
	times := make([]string, n)
	yearMonths := make([]string, n)
	hourMinutes := make([]string, n)
	for i, v := range raw {
		t, err := time.Parse(processor.CanonicalTimeLayout, v)
		if err != nil {
			return df, fmt.Errorf("时间列未规范化(第%d行): %w", i, err)
		}
		dates[i] = t.Format("2006-01-02")
		times[i] = t.Format("15:04:05")
		yearMonths[i] = t.Format("2006-01")
		hourMinutes[i] = t.Format("15:04")
	}

	fares := df.Col("fare_amount").Float()
	distances := df.Col("trip_distance_km").Float()
	revenuePerKM := make([]float64, n)
	tripsPerHour := make([]int, n)
	for i := range fares {
		revenuePerKM[i] = fares[i] / (distances[i] + processor.FarePerKMEpsilon)
		tripsPerHour[i] = 1 // 看板端聚合用
	}

	out := df.
		Mutate(series.New(dates, series.String, "pickup_date")).
		Mutate(series.New(times, series.String, "pickup_time")).
		Mutate(series.New(yearMonths, series.String, "year_month")).
		Mutate(series.New(hourMinutes, series.String, "hour_minute")).
		Mutate(series.New(fares, series.Float, "total_revenue")).
		Mutate(series.New(revenuePerKM, series.Float, "revenue_per_km")).
		Mutate(series.New(tripsPerHour, series.Int, "trips_per_hour"))

	// 坐标取四位小数，减轻看板端渲染压力
	for _, pair := range [][2]string{
		{"pickup_latitude", "pickup_lat_rounded"},
		{"pickup_longitude", "pickup_lon_rounded"},
		{"dropoff_latitude", "dropoff_lat_rounded"},
		{"dropoff_longitude", "dropoff_lon_rounded"},
	} {
		vals := df.Col(pair[0]).Float()
		rounded := make([]float64, len(vals))
		for i, v := range vals {
			rounded[i] = math.Round(v*10000) / 10000
		}
		out = out.Mutate(series.New(rounded, series.Float, pair[1]))
	}

	return out, out.Err
}

// WriteTableauReady 追加展示列并导出看板主数据文件
func (e *Exporter) WriteTableauReady(df dataframe.DataFrame) (string, error) {
	ready, err := BuildTableauReady(df)
	if err != nil {
		return "", err
	}
	return e.WriteCSV(ready, "tableau_ready.csv")
}

// WriteKPISummary 导出KPI汇总，两列: Metric,Value
func (e *Exporter) WriteKPISummary(kpi processor.KPI) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	filePath := e.path("kpi_summary.csv")
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	rows := [][]string{
		{"Metric", "Value"},
		{"Total Rides", fmt.Sprintf("%d", kpi.TotalRides)},
		{"Total Revenue", fmt.Sprintf("$%.2f", kpi.TotalRevenue)},
		{"Average Fare", fmt.Sprintf("$%.2f", kpi.AvgFare)},
		{"Average Distance", fmt.Sprintf("%.2f km", kpi.AvgDistanceKM)},
		{"Average Duration (min)", fmt.Sprintf("%.1f", kpi.AvgDurationMin)},
		{"Busiest Hour", fmt.Sprintf("%d:00", kpi.BusiestHour)},
		{"Busiest Day", kpi.BusiestDay},
		{"Peak Month", fmt.Sprintf("Month %d", kpi.PeakMonth)},
		{"Top Borough", kpi.TopBorough},
		{"Inter-Borough Trips (%)", fmt.Sprintf("%.1f%%", kpi.InterBoroughPct)},
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("写入kpi失败: %w", err)
	}
	return filePath, nil
}

// WriteAggregations 导出小时/星期/行政区三份聚合文件
func (e *Exporter) WriteAggregations(report *processor.AnalysisReport) ([]string, error) {
	var paths []string
	for _, item := range []struct {
		df     dataframe.DataFrame
		suffix string
	}{
		{report.Hourly, "hourly_aggregation.csv"},
		{report.Daily, "daily_aggregation.csv"},
		{report.Borough, "borough_aggregation.csv"},
	} {
		if item.df.Err != nil {
			return paths, fmt.Errorf("聚合结果无效(%s): %w", item.suffix, item.df.Err)
		}
		p, err := e.WriteCSV(item.df, item.suffix)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteInstructions 导出看板搭建说明文本
func (e *Exporter) WriteInstructions() (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	filePath := filepath.Join(e.outputDir, "tableau_dashboard_instructions.txt")
	if err := os.WriteFile(filePath, []byte(e.instructionsText()), 0644); err != nil {
		return "", fmt.Errorf("写入说明文件失败: %w", err)
	}
	return filePath, nil
}

func (e *Exporter) instructionsText() string {
	return fmt.Sprintf(`TABLEAU PUBLIC DASHBOARD CREATION GUIDE
======================================

1. DATA CONNECTION:
   - Open Tableau Public
   - Connect to Text file: %[1]s_tableau_ready.csv
   - Also connect to the aggregated files for summary views

2. RECOMMENDED DASHBOARD STRUCTURE:

   A. OVERVIEW PAGE:
      - KPI Cards: Total Rides, Revenue, Avg Fare, Avg Distance
      - Fare Distribution Histogram
      - Rides by Hour Line Chart
      - Geographic Map with Pickup Locations

   B. TEMPORAL ANALYSIS PAGE:
      - Hourly Pattern Line Chart
      - Daily Pattern Bar Chart
      - Monthly Trends (if multiple months)
      - Peak vs Off-Peak Comparison

   C. GEOGRAPHIC ANALYSIS PAGE:
      - NYC Map with Pickup/Dropoff Density
      - Borough Comparison Charts
      - Inter-Borough vs Intra-Borough Analysis
      - Distance from Center Analysis

3. KEY VISUALIZATIONS TO CREATE:
   - Map: use pickup_lat_rounded / pickup_lon_rounded for performance
   - Time Series: use pickup_datetime for temporal analysis
   - Heatmap: Hour vs Day of Week for fare patterns
   - Scatter Plot: Distance vs Fare relationship
   - Bar Charts: Borough, Time Period, Passenger Category comparisons

4. FILTERS TO ADD:
   - Date Range Filter
   - Borough Filter
   - Time Period Filter
   - Distance Category Filter
   - Passenger Count Filter

5. KEY FILES:
   - %[1]s_tableau_ready.csv (main dataset)
   - %[1]s_kpi_summary.csv (KPI metrics)
   - %[1]s_hourly_aggregation.csv
   - %[1]s_daily_aggregation.csv
   - %[1]s_borough_aggregation.csv

6. PERFORMANCE OPTIMIZATION:
   - Use data extracts instead of live connections
   - Limit map visualizations to reasonable sample sizes
   - Use aggregated data for summary views
`, e.prefix)
}
