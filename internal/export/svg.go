package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/nusim/internal/storage"
)

var ErrNoData = errors.New("export: nothing to draw")

var palette = []string{"#00ffff", "#ff00ff", "#ffff00", "#00ff88", "#ff4444", "#4488ff"}

// SpectrumOptions sizes a spectrum SVG. With LogX the energy axis is
// logarithmic.
type SpectrumOptions struct {
	Width  int
	Height int
	LogX   bool
	XLabel string
}

// SpectrumSVG draws the named probability columns against the energy_gev
// column on a fixed [0, 1] axis, one path per column.
func SpectrumSVG(table storage.Table, columns []string, opts SpectrumOptions) (string, error) {
	xs, err := table.Column("energy_gev")
	if err != nil {
		return "", err
	}
	if len(xs) < 2 || len(columns) == 0 {
		return "", ErrNoData
	}
	if opts.XLabel == "" {
		opts.XLabel = "E [GeV]"
	}

	scaleX := func(v float64) float64 { return v }
	if opts.LogX {
		for _, x := range xs {
			if x <= 0 {
				return "", fmt.Errorf("export: log axis needs positive energies, got %g", x)
			}
		}
		scaleX = math.Log10
	}
	minX, maxX := scaleX(xs[0]), scaleX(xs[0])
	for _, x := range xs {
		minX = math.Min(minX, scaleX(x))
		maxX = math.Max(maxX, scaleX(x))
	}
	rangeX := maxX - minX
	if rangeX == 0 {
		rangeX = 1
	}

	const margin = 40.0
	w, h := float64(opts.Width), float64(opts.Height)
	plotW, plotH := w-2*margin, h-2*margin

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g stroke="#444466" fill="none"><rect x="%.1f" y="%.1f" width="%.1f" height="%.1f"/></g>
`, opts.Width, opts.Height, opts.Width, opts.Height, margin, margin, plotW, plotH))

	for i, name := range columns {
		ys, err := table.Column(name)
		if err != nil {
			return "", err
		}
		color := palette[i%len(palette)]
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for j := range xs {
			x := margin + (scaleX(xs[j])-minX)/rangeX*plotW
			y := margin + (1-clamp01(ys[j]))*plotH
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="%s" font-size="12">%s</text>
`, margin+plotW-60, margin+14*float64(i+1), color, name))
	}

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="#888899" font-size="12">%s</text>
</svg>`, margin+plotW/2, h-margin/3, opts.XLabel))
	return sb.String(), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
