// excel.go
package export

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	"FareInsight/src/processor"
)

// WriteWorkbook 把KPI与各维度聚合写入一个多sheet工作簿
func (e *Exporter) WriteWorkbook(report *processor.AnalysisReport) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "KPI"); err != nil {
		return "", fmt.Errorf("重命名sheet失败: %w", err)
	}
	if err := writeKPISheet(f, "KPI", report.KPI); err != nil {
		return "", err
	}

	for _, item := range []struct {
		name string
		df   dataframe.DataFrame
	}{
		{"Hourly", report.Hourly},
		{"Daily", report.Daily},
		{"Monthly", report.Monthly},
		{"Borough", report.Borough},
	} {
		if _, err := f.NewSheet(item.name); err != nil {
			return "", fmt.Errorf("创建sheet失败(%s): %w", item.name, err)
		}
		if err := writeFrameSheet(f, item.name, item.df); err != nil {
			return "", err
		}
	}

	filePath := e.path("analysis.xlsx")
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("保存工作簿失败: %w", err)
	}
	return filePath, nil
}

func writeKPISheet(f *excelize.File, sheet string, kpi processor.KPI) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Rides", kpi.TotalRides},
		{"Total Revenue", kpi.TotalRevenue},
		{"Average Fare", kpi.AvgFare},
		{"Average Distance (km)", kpi.AvgDistanceKM},
		{"Average Duration (min)", kpi.AvgDurationMin},
		{"Busiest Hour", kpi.BusiestHour},
		{"Busiest Day", kpi.BusiestDay},
		{"Peak Month", kpi.PeakMonth},
		{"Top Borough", kpi.TopBorough},
		{"Inter-Borough Trips (%)", kpi.InterBoroughPct},
	}
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("计算单元格坐标失败: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("写入单元格失败: %w", err)
			}
		}
	}
	return nil
}

func writeFrameSheet(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("聚合结果无效(%s): %w", sheet, df.Err)
	}
	for r, row := range df.Records() {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("计算单元格坐标失败: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("写入单元格失败: %w", err)
			}
		}
	}
	return nil
}
