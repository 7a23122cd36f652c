package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func writeResults(w io.Writer, format string, results []fileResult) error {
	if results == nil {
		results = []fileResult{}
	}
	switch format {
	case "yaml":
		data, err := yaml.Marshal(results)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "table":
		for _, r := range results {
			if err := writeTable(w, r); err != nil {
				return err
			}
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

func writeTable(w io.Writer, r fileResult) error {
	rep := r.Report
	verified := ""
	if rep.Verified {
		verified = "verified"
	}
	writef(w, "%s (%s)\n", r.File, joinNonEmpty(
		string(rep.Source),
		strconv.Itoa(rep.TotalDays)+" days",
		formatDistance(rep.TotalDistanceKm),
		verified,
	))

	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header("Date", "Start", "End", "Distance")
	for _, d := range rep.Days {
		row := []string{
			d.Date,
			strconv.Itoa(d.StartOdometer),
			strconv.Itoa(d.EndOdometer),
			formatDistance(d.DistanceKm),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
