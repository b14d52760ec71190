package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"bento-route-planner/internal/models"
	"bento-route-planner/internal/sysinfo"
)

// Report is the JSON document written by `routectl route --report`
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	SolveTime   string          `json:"solve_time"`
	TwoOpt      bool            `json:"two_opt"`
	StopCount   int             `json:"stop_count"`
	TotalKm     float64         `json:"total_km"`
	Route       *models.Route   `json:"route"`
	System      sysinfo.SysInfo `json:"system"`
}

func newReport(route *models.Route, elapsed time.Duration, twoOpt bool) *Report {
	return &Report{
		GeneratedAt: time.Now(),
		SolveTime:   elapsed.String(),
		TwoOpt:      twoOpt,
		StopCount:   len(route.Stops),
		TotalKm:     route.TotalDistanceMeters / 1000,
		Route:       route,
		System:      sysinfo.Collect(),
	}
}

func writeReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func formatKm(meters float64) string {
	return humanize.FormatFloat("#,###.#", meters/1000) + " km"
}

func printRoute(w io.Writer, route *models.Route) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range route.Stops {
		marker := fmt.Sprintf("%d", s.Order)
		if s.IsDepot {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, s.Name, s.Address, formatKm(s.CumulativeDistanceMeters))
	}
	tw.Flush()

	fmt.Fprintf(w, "total: %s (%s stops)\n", formatKm(route.TotalDistanceMeters), humanize.Comma(int64(len(route.Stops)-1)))
	for _, e := range route.Estimates {
		fmt.Fprintf(w, "  %g km/h: %d min\n", e.SpeedKmh, e.Minutes)
	}
}
