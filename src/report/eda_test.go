package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"

	"FareInsight/src/processor"
)

func TestPrinterSummaries(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	cleaning := &processor.CleaningReport{
		OriginalRows: 100,
		FinalRows:    80,
		Steps: []processor.StepResult{
			{Name: "negative_fares_removed", Removed: 20},
		},
		FareLowerBound: 2.5,
		FareUpperBound: 50,
	}
	p.CleaningSummary(cleaning)

	features := &processor.FeatureReport{
		AddedColumns:   []string{"pickup_hour", "trip_distance_km"},
		OriginalFields: 7,
	}
	p.FeatureSummary(features)

	analysis := &processor.AnalysisReport{
		KPI: processor.KPI{
			TotalRides:   80,
			TotalRevenue: 800,
			AvgFare:      10,
			BusiestDay:   "Friday",
			TopBorough:   "Manhattan",
		},
		Hourly: dataframe.LoadRecords([][]string{
			{"pickup_hour", "rides_count", "avg_fare"},
			{"8", "40", "9.5"},
			{"18", "40", "10.5"},
		}),
		Correlations: []processor.CorrelationResult{
			{Feature: "trip_distance_km", R: 0.82, PValue: 0.001},
		},
		WeekendTTest:    processor.TTestResult{T: 1.2, PValue: 0.23, Valid: true},
		TimePeriodAnova: processor.AnovaResult{F: 3.4, PValue: 0.02, Groups: 4, Valid: true},
		Warnings:        []string{"something minor"},
	}
	p.AnalysisSummary(analysis)

	out := buf.String()
	for _, want := range []string{
		"100", "80",
		"negative_fares_removed",
		"trip_distance_km",
		"Friday", "Manhattan",
		"rides_count",
		"something minor",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("输出缺少 %q", want)
		}
	}
}
