package processor

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"FareInsight/src/utils"
)

// 测试用列类型，与读取层保持一致
var testColumnTypes = map[string]series.Type{
	"fare_amount":       series.Float,
	"pickup_datetime":   series.String,
	"pickup_longitude":  series.Float,
	"pickup_latitude":   series.Float,
	"dropoff_longitude": series.Float,
	"dropoff_latitude":  series.Float,
	"passenger_count":   series.Int,
}

func rawTripFrame(rows [][]string) dataframe.DataFrame {
	records := [][]string{{
		"Unnamed: 0", "key", "fare_amount", "pickup_datetime",
		"pickup_longitude", "pickup_latitude",
		"dropoff_longitude", "dropoff_latitude", "passenger_count",
	}}
	records = append(records, rows...)
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(testColumnTypes),
	)
}

// 每种问题数据各给一行，逐步核对每个步骤删除的行数
func TestCleanerRun(t *testing.T) {
	df := rawTripFrame([][]string{
		{"0", "k0", "10", "2009-06-15 17:26:21 UTC", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"1", "k1", "12", "2010-01-05 16:52:16", "-73.98", "40.75", "-73.97", "40.76", "2"},
		{"2", "k2", "9", "2011-08-18T00:35:00Z", "-73.98", "40.75", "-73.97", "40.76", "3"},
		{"3", "k3", "11", "2012-04-21", "-73.98", "40.75", "-73.97", "40.76", "4"},
		{"4", "k4", "10", "2013-01-01 08:00:00", "-73.98", "40.75", "NaN", "NaN", "1"},
		{"5", "k5", "-5", "2013-01-02 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"6", "k6", "500", "2013-01-03 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"7", "k7", "9", "2013-01-04 08:00:00", "0", "40.75", "-73.97", "40.76", "1"},
		{"8", "k8", "10", "2013-01-05 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "0"},
		{"9", "k9", "10", "2013-01-06 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "7"},
		{"10", "k10", "10", "not-a-date", "-73.98", "40.75", "-73.97", "40.76", "1"},
	})
	if df.Err != nil {
		t.Fatalf("构造测试数据失败: %v", df.Err)
	}

	cleaned, report, err := NewCleaner(nil).Run(df)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	if report.OriginalRows != 11 {
		t.Errorf("OriginalRows = %d, want 11", report.OriginalRows)
	}
	if report.FinalRows != 4 {
		t.Errorf("FinalRows = %d, want 4", report.FinalRows)
	}
	if report.TotalRemoved() != 7 {
		t.Errorf("TotalRemoved = %d, want 7", report.TotalRemoved())
	}

	wantSteps := map[string]int{
		"missing_dropoff_removed":     1,
		"negative_fares_removed":      1,
		"fare_outliers_removed":       1,
		"coordinate_outliers_removed": 1,
		"passenger_outliers_removed":  2,
		"unparsable_datetime_removed": 1,
	}
	if len(report.Steps) != len(wantSteps) {
		t.Fatalf("步骤数 = %d, want %d", len(report.Steps), len(wantSteps))
	}
	for _, step := range report.Steps {
		if want, ok := wantSteps[step.Name]; !ok || step.Removed != want {
			t.Errorf("步骤 %s 删除 %d 行, want %d", step.Name, step.Removed, want)
		}
	}

	// 标识列在最后被去掉
	if utils.HasColumn(cleaned, "key") || utils.HasColumn(cleaned, "Unnamed: 0") {
		t.Errorf("标识列未被去除: %v", cleaned.Names())
	}

	// 时间列全部规范化
	for i, v := range cleaned.Col("pickup_datetime").Records() {
		if _, ok := parsePickupTime(v); !ok {
			t.Errorf("第%d行时间未规范化: %q", i, v)
		}
		if len(v) != len(CanonicalTimeLayout) {
			t.Errorf("第%d行时间格式不统一: %q", i, v)
		}
	}
}

// 清洗结果再清洗一遍不应再删任何行
func TestCleanerIdempotent(t *testing.T) {
	df := rawTripFrame([][]string{
		{"0", "k0", "10", "2013-01-01 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"1", "k1", "12", "2013-01-02 09:00:00", "-73.99", "40.74", "-73.96", "40.77", "2"},
		{"2", "k2", "11", "2013-01-03 10:00:00", "-74.00", "40.73", "-73.95", "40.78", "3"},
		{"3", "k3", "-1", "2013-01-04 11:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
	})

	cleaned, _, err := NewCleaner(nil).Run(df)
	if err != nil {
		t.Fatalf("第一次Run失败: %v", err)
	}

	again, report, err := NewCleaner(nil).Run(cleaned)
	if err != nil {
		t.Fatalf("第二次Run失败: %v", err)
	}
	if report.TotalRemoved() != 0 {
		t.Errorf("二次清洗删除了 %d 行, want 0", report.TotalRemoved())
	}
	if again.Nrow() != cleaned.Nrow() {
		t.Errorf("二次清洗行数 %d != %d", again.Nrow(), cleaned.Nrow())
	}
}

// 车费全部相同时IQR为0，界退化为[Q1,Q3]，不应删掉正常行
func TestCleanerDegenerateIQR(t *testing.T) {
	df := rawTripFrame([][]string{
		{"0", "k0", "10", "2013-01-01 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"1", "k1", "10", "2013-01-02 09:00:00", "-73.98", "40.75", "-73.97", "40.76", "2"},
		{"2", "k2", "10", "2013-01-03 10:00:00", "-73.98", "40.75", "-73.97", "40.76", "3"},
		{"3", "k3", "10", "2013-01-04 11:00:00", "-73.98", "40.75", "-73.97", "40.76", "4"},
	})

	cleaned, report, err := NewCleaner(nil).Run(df)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if cleaned.Nrow() != 4 {
		t.Errorf("行数 = %d, want 4", cleaned.Nrow())
	}
	if report.FareLowerBound != 10 || report.FareUpperBound != 10 {
		t.Errorf("退化界 = [%v, %v], want [10, 10]",
			report.FareLowerBound, report.FareUpperBound)
	}
}

// 上界始终不超过配置的车费上限
func TestCleanerFareCap(t *testing.T) {
	df := rawTripFrame([][]string{
		{"0", "k0", "60", "2013-01-01 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"1", "k1", "80", "2013-01-02 09:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"2", "k2", "95", "2013-01-03 10:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"3", "k3", "120", "2013-01-04 11:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"4", "k4", "150", "2013-01-05 12:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
	})

	cleaned, report, err := NewCleaner(nil).Run(df)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if report.FareUpperBound > 100 {
		t.Errorf("车费上界 %v 超过上限100", report.FareUpperBound)
	}
	for _, f := range cleaned.Col("fare_amount").Float() {
		if f > 100 {
			t.Errorf("清洗结果仍含超限车费: %v", f)
		}
	}
}

func TestCleanerMissingColumn(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"fare_amount", "pickup_datetime"},
		{"10", "2013-01-01 08:00:00"},
	})

	if _, _, err := NewCleaner(nil).Run(df); err == nil {
		t.Fatal("缺列时应返回错误")
	}
}

func TestRetentionRateEmpty(t *testing.T) {
	r := &CleaningReport{}
	if !math.IsNaN(r.RetentionRate()) {
		t.Errorf("空数据保留率应为NaN, got %v", r.RetentionRate())
	}
}

// 车费离群步骤把实际使用的界随结果返回，Cleaner自身不留任何运行状态
func TestFareOutlierStepReturnsBounds(t *testing.T) {
	df := rawTripFrame([][]string{
		{"0", "k0", "9", "2013-01-01 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"1", "k1", "10", "2013-01-02 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"2", "k2", "10", "2013-01-03 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"3", "k3", "11", "2013-01-04 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
		{"4", "k4", "12", "2013-01-05 08:00:00", "-73.98", "40.75", "-73.97", "40.76", "1"},
	})
	if df.Err != nil {
		t.Fatalf("构造测试数据失败: %v", df.Err)
	}

	steps := NewCleaner(nil).Steps()
	fareStep := steps[2]
	if fareStep.Name != "fare_outliers_removed" {
		t.Fatalf("第三步应为车费离群步骤, got %s", fareStep.Name)
	}

	// Q1=10, Q3=11, IQR=1 -> [8.5, 12.5]
	_, res, err := fareStep.Apply(df)
	if err != nil {
		t.Fatalf("步骤执行失败: %v", err)
	}
	if res.Bounds == nil {
		t.Fatal("车费离群步骤应返回过滤边界")
	}
	if res.Bounds.Lower != 8.5 || res.Bounds.Upper != 12.5 {
		t.Errorf("边界 = [%v, %v], want [8.5, 12.5]", res.Bounds.Lower, res.Bounds.Upper)
	}
	if res.Removed != 0 {
		t.Errorf("Removed = %d, want 0", res.Removed)
	}

	// 同一步骤重复执行结果一致
	_, again, err := fareStep.Apply(df)
	if err != nil {
		t.Fatalf("重复执行失败: %v", err)
	}
	if again.Bounds == nil || *again.Bounds != *res.Bounds || again.Removed != res.Removed {
		t.Errorf("重复执行结果不一致: %+v vs %+v", again, res)
	}

	// 其余步骤不带边界
	_, other, err := steps[0].Apply(df)
	if err != nil {
		t.Fatalf("步骤执行失败: %v", err)
	}
	if other.Bounds != nil {
		t.Errorf("非车费步骤不应返回边界: %+v", other.Bounds)
	}
}
