package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"opsmap/internal/domain"
)

// ResultsHeader is the column layout of the results export
var ResultsHeader = []string{"case", "source", "target", "flow", "capacity", "congestion", "delay", "length"}

// ResultsFilename returns the download name for results exported at t
func ResultsFilename(t time.Time) string {
	return "simulation_results_" + t.Format("20060102_150405") + ".csv"
}

// ExportResults writes one CSV row per scored edge of every case, cases in
// name order
func ExportResults(resp *domain.ParetoResponse, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultsHeader); err != nil {
		return fmt.Errorf("failed to write results header: %w", err)
	}

	cases := resp.Cases()
	names := make([]string, 0, len(cases))
	for name := range cases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, e := range cases[name].Edges {
			record := []string{
				name,
				e.Source,
				e.Target,
				formatFloat(e.Flow),
				formatFloat(e.Capacity),
				formatFloat(e.Congestion),
				formatFloat(e.Delay),
				formatFloat(e.Length),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write results row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
