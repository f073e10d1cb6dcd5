package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/nusim/internal/storage"
)

// PlotOptions sizes a probability plot.
type PlotOptions struct {
	Width   int
	Height  int
	Caption string
}

// PlotColumns draws the named table columns against the row index, one
// series per column, on a fixed [0, 1] axis.
func PlotColumns(table storage.Table, columns []string, opts PlotOptions) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("viz: no columns to plot")
	}
	series := make([][]float64, 0, len(columns))
	for _, name := range columns {
		col, err := table.Column(name)
		if err != nil {
			return "", err
		}
		if len(col) == 0 {
			return "", fmt.Errorf("viz: column %s is empty", name)
		}
		series = append(series, col)
	}

	colors := make([]asciigraph.AnsiColor, len(series))
	for i := range colors {
		colors[i] = CurrentTheme.Series[i%len(CurrentTheme.Series)]
	}
	caption := opts.Caption
	if caption == "" {
		caption = strings.Join(columns, " ")
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	), nil
}

// FlavorColumns returns the probability columns of a table, skipping the
// energy and zenith columns.
func FlavorColumns(table storage.Table) []string {
	var cols []string
	for _, h := range table.Header {
		if strings.HasPrefix(h, "nu_") || strings.HasPrefix(h, "nubar_") {
			cols = append(cols, h)
		}
	}
	return cols
}
