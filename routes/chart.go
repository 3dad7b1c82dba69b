/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/flamego/flamego"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/melvkunst/tcc/crossmatch"
	"github.com/melvkunst/tcc/db"
)

// CrossmatchChart renders the allele values of a saved run as an HTML bar
// chart, one series per recipient, with the compatibility threshold marked.
func CrossmatchChart(c flamego.Context, recorder *crossmatch.Recorder) {
	id, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	run, err := recorder.Get(c.Request().Context(), id)
	if err != nil {
		writeFailure(c, err)
		return
	}

	html, err := renderRunChart(run)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.ResponseWriter().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.ResponseWriter().WriteHeader(http.StatusOK)
	_, _ = c.ResponseWriter().Write(html)
}

func renderRunChart(run *db.CrossmatchRun) ([]byte, error) {
	seen := make(map[string]struct{})

	var names []string

	series := make([]map[string]float64, len(run.PatientResults))

	for i, pr := range run.PatientResults {
		series[i] = chartValues(pr.AlleleResults)

		for label := range series[i] {
			if _, ok := seen[label]; ok {
				continue
			}

			seen[label] = struct{}{}
			names = append(names, label)
		}
	}

	sort.Strings(names)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Virtual crossmatch",
			Subtitle: run.DonorName + " (" + run.DonorBloodType + ")",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "MFI",
		}),
	)

	bar.SetXAxis(names)

	threshold := []interface{}{
		opts.MarkLineNameYAxisItem{
			Name:  "Threshold",
			YAxis: crossmatch.CompatibilityThreshold,
		},
	}

	for i, pr := range run.PatientResults {
		values := series[i]

		data := make([]opts.BarData, 0, len(names))
		for _, name := range names {
			if v, ok := values[name]; ok {
				data = append(data, opts.BarData{Value: v})
			} else {
				data = append(data, opts.BarData{})
			}
		}

		bar.AddSeries(pr.PatientName, data, func(s *charts.SingleSeries) {
			s.MarkLines = &opts.MarkLines{
				Data: threshold,
				MarkLineStyle: opts.MarkLineStyle{
					Symbol: []string{"none", "none"},
					LineStyle: &opts.LineStyle{
						Color: "rgba(128, 128, 128, 0.6)",
						Type:  "dashed",
						Width: 1.5,
					},
				},
			}
		})
	}

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// chartValues keys a recipient's results by category label. A name repeated
// within one recipient gets a " (n)" suffix from its second occurrence on.
func chartValues(results []db.CrossmatchAlleleResult) map[string]float64 {
	values := make(map[string]float64, len(results))
	occurrences := make(map[string]int, len(results))

	for _, ar := range results {
		occurrences[ar.AlleleName]++

		label := ar.AlleleName
		if n := occurrences[ar.AlleleName]; n > 1 {
			label = fmt.Sprintf("%s (%d)", ar.AlleleName, n)
		}

		values[label] = ar.AlleleValue
	}

	return values
}
