package report

import (
	"bufio"

	"github.com/guptarohit/asciigraph"

	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/usage"
)

const defaultChartHeight = 8

// writeChart plots, for every tool that was ever dominant, the number of
// teams using it across the resolved buckets.
func (w *Writer) writeChart(b *bufio.Writer, reg *tool.Registry, tl *usage.Timeline) error {
	var buckets []int64
	for _, bucket := range tl.Buckets() {
		if len(tl.Counts(bucket)) > 0 {
			buckets = append(buckets, bucket)
		}
	}
	if len(buckets) == 0 {
		_, err := b.WriteString("no tool usage observed\n")
		return err
	}

	first := w.bucketTime(tl, buckets[0])
	last := w.bucketTime(tl, buckets[len(buckets)-1])
	for _, t := range reg.ToolsWithUnknown() {
		series := make([]float64, len(buckets))
		used := false
		for i, bucket := range buckets {
			n := tl.Counts(bucket)[t.ID]
			series[i] = float64(n)
			used = used || n > 0
		}
		if !used {
			continue
		}
		graph := asciigraph.Plot(series,
			asciigraph.Height(w.chartHeight),
			asciigraph.Caption(string(t.ID)+" teams, "+first+" - "+last),
		)
		if _, err := b.WriteString(graph + "\n\n"); err != nil {
			return err
		}
	}
	return nil
}
