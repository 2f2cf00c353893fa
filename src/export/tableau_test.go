package export

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"FareInsight/src/datasource/file"
	"FareInsight/src/processor"
)

// 清洗+特征两阶段跑出来的真实增强表，供导出侧测试复用
func derivedTripFrame(t *testing.T) dataframe.DataFrame {
	t.Helper()
	raw := dataframe.LoadRecords([][]string{
		{"fare_amount", "pickup_datetime", "pickup_longitude", "pickup_latitude",
			"dropoff_longitude", "dropoff_latitude", "passenger_count"},
		{"12.5", "2015-03-14 08:30:00 UTC", "-73.985456", "40.758123", "-73.997012", "40.730789", "2"},
		{"8", "2015-03-15 19:45:00 UTC", "-73.991234", "40.751234", "-73.954321", "40.781234", "1"},
		{"10", "2015-03-16 02:10:00 UTC", "-73.971111", "40.762222", "-74.001111", "40.723333", "4"},
	}, dataframe.WithTypes(map[string]series.Type{
		"fare_amount":       series.Float,
		"pickup_datetime":   series.String,
		"pickup_longitude":  series.Float,
		"pickup_latitude":   series.Float,
		"dropoff_longitude": series.Float,
		"dropoff_latitude":  series.Float,
		"passenger_count":   series.Int,
	}))
	if raw.Err != nil {
		t.Fatalf("构造测试数据失败: %v", raw.Err)
	}

	cleaned, _, err := processor.NewCleaner(nil).Run(raw)
	if err != nil {
		t.Fatalf("清洗失败: %v", err)
	}
	enhanced, _, err := processor.NewFeatureEngineer(nil).Run(cleaned)
	if err != nil {
		t.Fatalf("特征计算失败: %v", err)
	}
	return enhanced
}

// 写出的增强表读回后，数值列应在1e-6内与内存中一致
func TestWriteEnhancedRoundTrip(t *testing.T) {
	enhanced := derivedTripFrame(t)

	e := NewExporter(t.TempDir(), "uber")
	path, err := e.WriteEnhanced(enhanced)
	if err != nil {
		t.Fatalf("WriteEnhanced失败: %v", err)
	}

	back, err := file.ReadCSV(path)
	if err != nil {
		t.Fatalf("读回增强表失败: %v", err)
	}
	if back.Nrow() != enhanced.Nrow() {
		t.Fatalf("行数 = %d, want %d", back.Nrow(), enhanced.Nrow())
	}

	numericCols := []string{
		"fare_amount",
		"trip_distance_km",
		"manhattan_distance_km",
		"fare_per_km",
		"fare_per_passenger",
		"pickup_distance_from_center",
		"dropoff_distance_from_center",
	}
	for _, col := range numericCols {
		want := enhanced.Col(col).Float()
		got := back.Col(col).Float()
		if len(got) != len(want) {
			t.Fatalf("%s 列长度 = %d, want %d", col, len(got), len(want))
		}
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-6 {
				t.Errorf("%s 第%d行 = %v, want %v", col, i, got[i], want[i])
			}
		}
	}
}

// revenue_per_km与特征侧的fare_per_km共用同一个分母小量，两边口径不允许漂移
func TestRevenuePerKMMatchesFarePerKM(t *testing.T) {
	enhanced := derivedTripFrame(t)

	ready, err := BuildTableauReady(enhanced)
	if err != nil {
		t.Fatalf("BuildTableauReady失败: %v", err)
	}

	fpk := enhanced.Col("fare_per_km").Float()
	rpk := ready.Col("revenue_per_km").Float()
	for i := range fpk {
		if math.Abs(rpk[i]-fpk[i]) > 1e-9 {
			t.Errorf("第%d行 revenue_per_km = %v, fare_per_km = %v", i, rpk[i], fpk[i])
		}
	}
}

func enhancedFrame() dataframe.DataFrame {
	return dataframe.LoadRecords([][]string{
		{"fare_amount", "pickup_datetime", "trip_distance_km",
			"pickup_latitude", "pickup_longitude", "dropoff_latitude", "dropoff_longitude"},
		{"12.5", "2015-03-14 08:30:00", "3.2", "40.758123", "-73.985456", "40.730789", "-73.997012"},
	}, dataframe.WithTypes(map[string]series.Type{
		"fare_amount":       series.Float,
		"pickup_datetime":   series.String,
		"trip_distance_km":  series.Float,
		"pickup_latitude":   series.Float,
		"pickup_longitude":  series.Float,
		"dropoff_latitude":  series.Float,
		"dropoff_longitude": series.Float,
	}))
}

func TestBuildTableauReady(t *testing.T) {
	ready, err := BuildTableauReady(enhancedFrame())
	if err != nil {
		t.Fatalf("BuildTableauReady失败: %v", err)
	}

	wantStrings := map[string]string{
		"pickup_date": "2015-03-14",
		"pickup_time": "08:30:00",
		"year_month":  "2015-03",
		"hour_minute": "08:30",
	}
	for col, want := range wantStrings {
		if got := ready.Col(col).Records()[0]; got != want {
			t.Errorf("%s = %q, want %q", col, got, want)
		}
	}

	if rev := ready.Col("total_revenue").Float()[0]; math.Abs(rev-12.5) > 1e-9 {
		t.Errorf("total_revenue = %v, want 12.5", rev)
	}
	wantRPK := 12.5 / (3.2 + 0.001)
	if rpk := ready.Col("revenue_per_km").Float()[0]; math.Abs(rpk-wantRPK) > 1e-9 {
		t.Errorf("revenue_per_km = %v, want %v", rpk, wantRPK)
	}
	if tph := int(ready.Col("trips_per_hour").Float()[0]); tph != 1 {
		t.Errorf("trips_per_hour = %d, want 1", tph)
	}

	// 坐标保留四位小数
	if lat := ready.Col("pickup_lat_rounded").Float()[0]; math.Abs(lat-40.7581) > 1e-9 {
		t.Errorf("pickup_lat_rounded = %v, want 40.7581", lat)
	}
	if lon := ready.Col("dropoff_lon_rounded").Float()[0]; math.Abs(lon-(-73.9970)) > 1e-9 {
		t.Errorf("dropoff_lon_rounded = %v, want -73.9970", lon)
	}
}

func TestBuildTableauReadyBadDatetime(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"fare_amount", "pickup_datetime", "trip_distance_km",
			"pickup_latitude", "pickup_longitude", "dropoff_latitude", "dropoff_longitude"},
		{"12.5", "not-a-date", "3.2", "40.758", "-73.985", "40.730", "-73.997"},
	})
	if _, err := BuildTableauReady(df); err == nil {
		t.Fatal("未规范化的时间应返回错误")
	}
}

func TestWriteKPISummary(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir, "uber")

	kpi := processor.KPI{
		TotalRides:   100,
		TotalRevenue: 1234.5,
		AvgFare:      12.35,
		BusiestHour:  18,
		BusiestDay:   "Friday",
		TopBorough:   "Manhattan",
	}
	filePath, err := e.WriteKPISummary(kpi)
	if err != nil {
		t.Fatalf("WriteKPISummary失败: %v", err)
	}
	if filepath.Base(filePath) != "uber_kpi_summary.csv" {
		t.Errorf("文件名 = %s", filepath.Base(filePath))
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"Metric,Value",
		"Total Rides,100",
		"Total Revenue,$1234.50",
		"Busiest Day,Friday",
		"Top Borough,Manhattan",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("kpi_summary缺少 %q:\n%s", want, content)
		}
	}
}

func TestWriteCSVAndInstructions(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir, "uber")

	filePath, err := e.WriteCleaned(enhancedFrame())
	if err != nil {
		t.Fatalf("WriteCleaned失败: %v", err)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "fare_amount") {
		t.Error("导出csv缺少表头")
	}

	insPath, err := e.WriteInstructions()
	if err != nil {
		t.Fatalf("WriteInstructions失败: %v", err)
	}
	ins, err := os.ReadFile(insPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(ins), "uber_tableau_ready.csv") {
		t.Error("说明文件未引用主数据文件")
	}
}
