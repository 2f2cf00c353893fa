// eda.go
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"FareInsight/src/processor"
)

// Printer 把各阶段结果渲染成控制台文本报告
// 输出内容面向看板方，保持英文；只做展示，不碰数据
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) banner(title string) {
	fmt.Fprintln(p.w, strings.Repeat("=", 70))
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, strings.Repeat("=", 70))
}

func (p *Printer) section(title string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, strings.Repeat("-", 60))
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, strings.Repeat("-", 60))
}

// CleaningSummary 清洗阶段汇总
func (p *Printer) CleaningSummary(r *processor.CleaningReport) {
	p.banner("DATA CLEANING SUMMARY")
	fmt.Fprintf(p.w, "Original rows:      %d\n", r.OriginalRows)
	fmt.Fprintf(p.w, "Final rows:         %d\n", r.FinalRows)
	fmt.Fprintf(p.w, "Total rows removed: %d\n", r.TotalRemoved())
	if rate := r.RetentionRate(); rate == rate { // NaN检查
		fmt.Fprintf(p.w, "Retention rate:     %.2f%%\n", rate*100)
	}
	fmt.Fprintf(p.w, "Fare bounds used:   [%.2f, %.2f]\n", r.FareLowerBound, r.FareUpperBound)

	p.section("Per-step removal counts")
	for _, step := range r.Steps {
		fmt.Fprintf(p.w, "  %-32s %d\n", step.Name+":", step.Removed)
	}
}

// FeatureSummary 特征阶段汇总
func (p *Printer) FeatureSummary(r *processor.FeatureReport) {
	p.banner("FEATURE ENGINEERING SUMMARY")
	fmt.Fprintf(p.w, "Original features: %d\n", r.OriginalFields)
	fmt.Fprintf(p.w, "New features:      %d\n", len(r.AddedColumns))
	for i, col := range r.AddedColumns {
		fmt.Fprintf(p.w, "  %2d. %s\n", i+1, col)
	}
	if r.NonFiniteRows > 0 {
		fmt.Fprintf(p.w, "WARNING: %d rows produced non-finite derived values\n", r.NonFiniteRows)
	}
}

// AnalysisSummary 聚合和统计检验结果
func (p *Printer) AnalysisSummary(r *processor.AnalysisReport) {
	p.banner("ADVANCED ANALYSIS")

	p.section("Key Performance Indicators")
	k := r.KPI
	fmt.Fprintf(p.w, "  Total Rides:          %d\n", k.TotalRides)
	fmt.Fprintf(p.w, "  Total Revenue:        $%.2f\n", k.TotalRevenue)
	fmt.Fprintf(p.w, "  Average Fare:         $%.2f\n", k.AvgFare)
	fmt.Fprintf(p.w, "  Average Distance:     %.2f km\n", k.AvgDistanceKM)
	fmt.Fprintf(p.w, "  Average Duration:     %.1f min\n", k.AvgDurationMin)
	fmt.Fprintf(p.w, "  Busiest Hour:         %d:00\n", k.BusiestHour)
	fmt.Fprintf(p.w, "  Busiest Day:          %s\n", k.BusiestDay)
	fmt.Fprintf(p.w, "  Peak Month:           Month %d\n", k.PeakMonth)
	fmt.Fprintf(p.w, "  Top Borough:          %s\n", k.TopBorough)
	fmt.Fprintf(p.w, "  Inter-Borough Trips:  %.1f%%\n", k.InterBoroughPct)

	p.section("Strongest correlations with fare_amount")
	limit := 10
	if len(r.Correlations) < limit {
		limit = len(r.Correlations)
	}
	for _, c := range r.Correlations[:limit] {
		direction := "positive"
		if c.R < 0 {
			direction = "negative"
		}
		fmt.Fprintf(p.w, "  %-30s r=%+.3f (%s, p=%.2e)\n", c.Feature, c.R, direction, c.PValue)
	}

	p.section("Statistical tests")
	if r.WeekendTTest.Valid {
		fmt.Fprintf(p.w, "  Weekend vs Weekday t-test: t=%.3f, p-value=%.2e\n",
			r.WeekendTTest.T, r.WeekendTTest.PValue)
	} else {
		fmt.Fprintln(p.w, "  Weekend vs Weekday t-test: skipped (degenerate samples)")
	}
	if r.TimePeriodAnova.Valid {
		fmt.Fprintf(p.w, "  Time period ANOVA:         F=%.3f, p-value=%.2e (%d groups)\n",
			r.TimePeriodAnova.F, r.TimePeriodAnova.PValue, r.TimePeriodAnova.Groups)
	} else {
		fmt.Fprintln(p.w, "  Time period ANOVA:         skipped (degenerate samples)")
	}

	p.section("Hourly aggregation")
	p.table(r.Hourly)
	p.section("Daily aggregation")
	p.table(r.Daily)
	p.section("Monthly aggregation")
	p.table(r.Monthly)
	p.section("Borough aggregation")
	p.table(r.Borough)

	if len(r.Warnings) > 0 {
		p.section("Warnings")
		for _, w := range r.Warnings {
			fmt.Fprintf(p.w, "  - %s\n", w)
		}
	}
}

func (p *Printer) table(df dataframe.DataFrame) {
	if df.Err != nil {
		fmt.Fprintf(p.w, "  (unavailable: %v)\n", df.Err)
		return
	}
	if df.Nrow() == 0 {
		fmt.Fprintln(p.w, "  (empty)")
		return
	}

	names := df.Names()
	fmt.Fprint(p.w, " ")
	for _, n := range names {
		fmt.Fprintf(p.w, " %14s", n)
	}
	fmt.Fprintln(p.w)

	records := df.Records()[1:] // 首行为表头
	for _, row := range records {
		fmt.Fprint(p.w, " ")
		for _, v := range row {
			fmt.Fprintf(p.w, " %14s", v)
		}
		fmt.Fprintln(p.w)
	}
}
