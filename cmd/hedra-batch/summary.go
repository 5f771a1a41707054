package main

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fpang/hedra-batch/internal/batch"
)

// renderSummary formats the per-file outcomes of a run as a table for the
// console. The log file carries the same information as structured events.
func renderSummary(results []batch.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Audio", "Video ID", "Status", "Output", "Elapsed"})

	for _, r := range results {
		tw.AppendRow(table.Row{r.Audio, r.VideoID, r.Status, r.Output, formatElapsed(r.Elapsed)})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
