package attribution

import (
	"fmt"
	"html"
	"html/template"
	"math"
	"strings"
)

const (
	svgWidth    = 720
	labelGutter = 250
	rightPad    = 70
	rowHeight   = 26
	axisHeight  = 40

	colorHigher = "#ff0051"
	colorLower  = "#008bfb"
)

// linearScale maps a value domain onto a pixel range.
type linearScale struct {
	lo, hi       float64
	pxLo, pxHigh float64
}

func newScale(values []float64, pxLo, pxHigh float64) linearScale {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 0) {
		lo, hi = 0, 1
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-0.5, hi+0.5
	}
	pad := (hi - lo) * 0.05
	return linearScale{lo: lo - pad, hi: hi + pad, pxLo: pxLo, pxHigh: pxHigh}
}

func (s linearScale) at(v float64) float64 {
	return s.pxLo + (v-s.lo)/(s.hi-s.lo)*(s.pxHigh-s.pxLo)
}

func color(c float64) string {
	if c >= 0 {
		return colorHigher
	}
	return colorLower
}

func signed(c float64) string {
	if c >= 0 {
		return fmt.Sprintf("+%.3f", c)
	}
	return fmt.Sprintf("%.3f", c)
}

func openSVG(b *strings.Builder, class string, height int, title string) {
	fmt.Fprintf(b, `<svg class="attribution %s" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="100%%" role="img" aria-label="%s">`,
		class, svgWidth, height, html.EscapeString(title))
	b.WriteString(`<style>text{font:12px sans-serif;fill:#ddd}.muted{fill:#999}</style>`)
}

// WaterfallSVG renders the waterfall view as inline SVG.
func WaterfallSVG(w Waterfall) template.HTML {
	height := len(w.Steps)*rowHeight + axisHeight + 10
	values := []float64{w.Baseline, w.Output}
	for _, s := range w.Steps {
		values = append(values, s.Start, s.End)
	}
	scale := newScale(values, labelGutter, svgWidth-rightPad)

	var b strings.Builder
	openSVG(&b, "waterfall", height, "Waterfall of feature contributions")

	for i, s := range w.Steps {
		y := i*rowHeight + 4
		x0, x1 := scale.at(s.Start), scale.at(s.End)
		left, width := math.Min(x0, x1), math.Max(math.Abs(x1-x0), 1)
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end">%s</text>`,
			labelGutter-8, y+16, html.EscapeString(s.Label))
		fmt.Fprintf(&b, `<rect x="%.1f" y="%d" width="%.1f" height="%d" fill="%s"><title>%s</title></rect>`,
			left, y+2, width, rowHeight-6, color(s.Contribution), html.EscapeString(signed(s.Contribution)))
		fmt.Fprintf(&b, `<text x="%.1f" y="%d">%s</text>`, left+width+4, y+16, signed(s.Contribution))
	}

	axisY := len(w.Steps)*rowHeight + 8
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#666"/>`, labelGutter, axisY, svgWidth-rightPad, axisY)
	bx, ox := scale.at(w.Baseline), scale.at(w.Output)
	fmt.Fprintf(&b, `<line x1="%.1f" y1="0" x2="%.1f" y2="%d" stroke="#888" stroke-dasharray="3,3"/>`, bx, bx, axisY)
	fmt.Fprintf(&b, `<text class="muted" x="%.1f" y="%d" text-anchor="middle">E[f(x)] = %.3f</text>`, bx, axisY+16, w.Baseline)
	fmt.Fprintf(&b, `<text x="%.1f" y="%d" text-anchor="middle">f(x) = %.3f</text>`, ox, axisY+30, w.Output)

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

// BarSVG renders the bar view as inline SVG.
func BarSVG(bar Bar) template.HTML {
	height := len(bar.Bars)*rowHeight + axisHeight
	values := []float64{0}
	for _, c := range bar.Bars {
		values = append(values, c.Contribution)
	}
	scale := newScale(values, labelGutter, svgWidth-rightPad)
	zero := scale.at(0)

	var b strings.Builder
	openSVG(&b, "bar", height, "Feature contributions ranked by magnitude")

	for i, c := range bar.Bars {
		y := i*rowHeight + 4
		x := scale.at(c.Contribution)
		left, width := math.Min(zero, x), math.Max(math.Abs(x-zero), 1)
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end">%s</text>`,
			labelGutter-8, y+16, html.EscapeString(FeatureLabel(c.Feature, c.Value)))
		fmt.Fprintf(&b, `<rect x="%.1f" y="%d" width="%.1f" height="%d" fill="%s"/>`,
			left, y+2, width, rowHeight-6, color(c.Contribution))
		fmt.Fprintf(&b, `<text x="%.1f" y="%d">%s</text>`, left+width+4, y+16, signed(c.Contribution))
	}

	axisY := len(bar.Bars)*rowHeight + 8
	fmt.Fprintf(&b, `<line x1="%.1f" y1="0" x2="%.1f" y2="%d" stroke="#888"/>`, zero, zero, axisY)
	fmt.Fprintf(&b, `<text class="muted" x="%.1f" y="%d" text-anchor="middle">SHAP value</text>`, zero, axisY+18)

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

// ForceSVG renders the additive force view: contributions pushing higher stack
// up to the output from the left, those pushing lower from the right.
func ForceSVG(f Force) template.HTML {
	var higher, lower float64
	for _, c := range f.Higher {
		higher += c.Contribution
	}
	for _, c := range f.Lower {
		lower += c.Contribution
	}
	start := f.Output - higher
	end := f.Output - lower

	scale := newScale([]float64{f.Baseline, f.Output, start, end}, 20, svgWidth-20)
	const barY, barH = 40, 28

	var b strings.Builder
	openSVG(&b, "force", 120, "Force view of feature contributions")

	segment := func(c Contribution, from, to float64) {
		x0, x1 := scale.at(from), scale.at(to)
		left, width := math.Min(x0, x1), math.Max(math.Abs(x1-x0), 0.5)
		fmt.Fprintf(&b, `<rect x="%.1f" y="%d" width="%.1f" height="%d" fill="%s" stroke="#111"><title>%s (%s)</title></rect>`,
			left, barY, width, barH, color(c.Contribution),
			html.EscapeString(FeatureLabel(c.Feature, c.Value)), signed(c.Contribution))
		if width > 60 {
			fmt.Fprintf(&b, `<text x="%.1f" y="%d" text-anchor="middle">%s</text>`,
				left+width/2, barY+barH+16, html.EscapeString(c.Feature))
		}
	}

	// Largest pushes sit closest to the output marker.
	pos := f.Output
	for _, c := range f.Higher {
		segment(c, pos-c.Contribution, pos)
		pos -= c.Contribution
	}
	pos = f.Output
	for _, c := range f.Lower {
		segment(c, pos, pos-c.Contribution)
		pos -= c.Contribution
	}

	ox, bx := scale.at(f.Output), scale.at(f.Baseline)
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#fff" stroke-width="2"/>`, ox, barY-12, ox, barY+barH+4)
	fmt.Fprintf(&b, `<text x="%.1f" y="%d" text-anchor="middle">f(x) = %.3f</text>`, ox, barY-16, f.Output)
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#888" stroke-dasharray="3,3"/>`, bx, barY-4, bx, barY+barH+24)
	fmt.Fprintf(&b, `<text class="muted" x="%.1f" y="%d" text-anchor="middle">base value = %.3f</text>`, bx, barY+barH+36, f.Baseline)
	fmt.Fprintf(&b, `<text x="20" y="16" style="fill:%s">higher</text><text x="%d" y="16" text-anchor="end" style="fill:%s">lower</text>`,
		colorHigher, svgWidth-20, colorLower)

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
