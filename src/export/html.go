// html.go
package export

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"

	"FareInsight/src/processor"
)

// 报告页面模板：纯静态HTML，不依赖外部资源，可直接用浏览器打开
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Taxi Fare Analysis Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; color: #222; }
h1 { border-bottom: 2px solid #36c; padding-bottom: 8px; }
h2 { color: #36c; margin-top: 32px; }
.kpi { display: inline-block; background: #f2f6ff; border: 1px solid #cdf;
       border-radius: 6px; padding: 12px 20px; margin: 6px; text-align: center; }
.kpi .value { font-size: 1.5em; font-weight: bold; }
.kpi .label { font-size: 0.85em; color: #668; }
table { border-collapse: collapse; margin-top: 8px; }
th, td { border: 1px solid #bbb; padding: 4px 10px; text-align: right; }
th { background: #eef; }
td:first-child, th:first-child { text-align: left; }
.note { color: #966; font-size: 0.9em; }
</style>
</head>
<body>
<h1>Taxi Fare Analysis Report</h1>
<p>Generated at {{.GeneratedAt}}</p>

<h2>Key Metrics</h2>
{{range .KPICards}}<div class="kpi"><div class="value">{{.Value}}</div><div class="label">{{.Label}}</div></div>{{end}}

<h2>Fare Correlations</h2>
<table>
<tr><th>Feature</th><th>Pearson r</th><th>p-value</th></tr>
{{range .Correlations}}<tr><td>{{.Feature}}</td><td>{{printf "%.4f" .R}}</td><td>{{printf "%.4g" .PValue}}</td></tr>{{end}}
</table>

<h2>Statistical Tests</h2>
<p>Weekend vs weekday fares (Welch t-test): t = {{printf "%.3f" .TTest.T}}, p = {{printf "%.4g" .TTest.PValue}}</p>
<p>Fares across time periods (one-way ANOVA): F = {{printf "%.3f" .Anova.F}}, p = {{printf "%.4g" .Anova.PValue}}</p>

{{range .Tables}}
<h2>{{.Title}}</h2>
<table>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
</table>
{{end}}

{{if .Warnings}}
<h2>Warnings</h2>
{{range .Warnings}}<p class="note">{{.}}</p>{{end}}
{{end}}
</body>
</html>
`

type kpiCard struct {
	Label string
	Value string
}

type htmlTable struct {
	Title  string
	Header []string
	Rows   [][]string
}

type reportData struct {
	GeneratedAt  string
	KPICards     []kpiCard
	Correlations []processor.CorrelationResult
	TTest        processor.TTestResult
	Anova        processor.AnovaResult
	Tables       []htmlTable
	Warnings     []string
}

// WriteHTMLReport 渲染分析结果为静态HTML报告
func (e *Exporter) WriteHTMLReport(report *processor.AnalysisReport, generatedAt string) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	kpi := report.KPI
	data := reportData{
		GeneratedAt: generatedAt,
		KPICards: []kpiCard{
			{"Total Rides", fmt.Sprintf("%d", kpi.TotalRides)},
			{"Total Revenue", fmt.Sprintf("$%.2f", kpi.TotalRevenue)},
			{"Average Fare", fmt.Sprintf("$%.2f", kpi.AvgFare)},
			{"Average Distance", fmt.Sprintf("%.2f km", kpi.AvgDistanceKM)},
			{"Busiest Hour", fmt.Sprintf("%d:00", kpi.BusiestHour)},
			{"Busiest Day", kpi.BusiestDay},
			{"Top Borough", kpi.TopBorough},
		},
		Correlations: report.Correlations,
		TTest:        report.WeekendTTest,
		Anova:        report.TimePeriodAnova,
		Warnings:     report.Warnings,
	}
	for _, item := range []struct {
		title string
		df    dataframe.DataFrame
	}{
		{"Rides by Hour", report.Hourly},
		{"Rides by Day of Week", report.Daily},
		{"Rides by Month", report.Monthly},
		{"Rides by Borough", report.Borough},
	} {
		records := item.df.Records()
		if len(records) == 0 {
			continue
		}
		data.Tables = append(data.Tables, htmlTable{
			Title:  item.title,
			Header: records[0],
			Rows:   records[1:],
		})
	}

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("解析报告模板失败: %w", err)
	}

	filePath := filepath.Join(e.outputDir, fmt.Sprintf("%s_analysis_report.html", e.prefix))
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("创建报告文件失败: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("渲染报告失败: %w", err)
	}
	return filePath, nil
}
