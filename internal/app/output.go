package app

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/promille/internal/models"
)

const timeLayout = "Jan 02 15:04"

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// highestPeak returns the model with the highest peak, "" for an empty map
func highestPeak(results models.ResultMap) models.ModelID {
	ids := results.Models()
	if len(ids) == 0 {
		return ""
	}
	return lo.MaxBy(ids, func(a, b models.ModelID) bool {
		return results[a].PeakBAC > results[b].PeakBAC
	})
}

func printResults(w io.Writer, results models.ResultMap) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No model produced a result")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tR\tELIM ‰/h\tPEAK ‰\tPEAK AT\tNOW ‰\t≤ 0.5 ‰\t≤ 0.05 ‰")
	for _, id := range results.Models() {
		r := results[id]
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%s\t%.3f\t%s\t%s\n",
			id, r.RFactor, r.EliminationRate, r.PeakBAC, formatTime(r.PeakTime),
			r.CurrentBAC, formatOptionalTime(r.TimeTo05), formatOptionalTime(r.TimeTo005))
	}
	_ = tw.Flush()

	first := results[results.Models()[0]]
	fmt.Fprintf(w, "%.1f g alcohol in %d drinks, evaluated at %s\n",
		first.TotalAlcoholGrams, len(first.Contributions), formatTime(first.EvaluatedAt))
}

func printReport(w io.Writer, report *models.ValidationReport) {
	fmt.Fprintf(w, "Measured %.3f ‰ at %s (%s, ±%.3f ‰)\n\n",
		report.MeasuredBAC, formatTime(report.MeasuredAt), report.Method, report.AnalyticalUncertainty)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPREDICTED ‰\tDEVIATION ‰\tREL %\tσ ‰\t95% BAND\t99% BAND\tRESULT")
	for _, row := range report.Rows {
		if !row.Evaluated() {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\terror: %s\n", row.Model, row.Error)
			continue
		}

		result := string(row.Classification)
		if row.Direction != models.DirectionNone {
			result += " (" + string(row.Direction) + ")"
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.1f\t%.3f\t%.3f–%.3f\t%.3f–%.3f\t%s\n",
			row.Model, row.PredictedBAC, row.AbsoluteDeviation, row.RelativeDeviation,
			row.CombinedUncertainty, row.CI95.Lower, row.CI95.Upper, row.CI99.Lower, row.CI99.Upper, result)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nAggregate: %s (%d consistent, %d borderline, %d inconsistent of %d evaluated)\n",
		report.Aggregate,
		report.Counts[models.Consistent], report.Counts[models.Borderline], report.Counts[models.Inconsistent],
		report.Evaluated)
}

func printBatch(w io.Writer, rows []batchRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tFILE\tMODELS\tMAX PEAK ‰\tNOW ‰\tSOBER AT\tVALIDATION")
	for _, row := range rows {
		file := filepath.Base(row.Path)
		if row.Err != nil {
			fmt.Fprintf(tw, "-\t%s\t-\t-\t-\t-\terror: %v\n", file, row.Err)
			continue
		}

		out := row.Outcome
		validation := "-"
		if out.Report != nil {
			validation = string(out.Report.Aggregate)
		}

		id := highestPeak(out.Results)
		if id == "" {
			fmt.Fprintf(tw, "%s\t%s\t0\t-\t-\t-\t%s\n", out.Scenario.Name, file, validation)
			continue
		}
		res := out.Results[id]
		_, current := out.Results.MaxCurrentBAC()
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f (%s)\t%.3f\t%s\t%s\n",
			out.Scenario.Name, file, len(out.Results), res.PeakBAC, id, current,
			formatOptionalTime(res.TimeTo005), validation)
	}
	_ = tw.Flush()
}
