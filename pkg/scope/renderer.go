package scope

import (
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	traceColor = color.RGBA{R: 255, G: 165, B: 0, A: 255} // Orange
)

const (
	numHLines = 8
	numVLines = 10

	marginLeft   = float32(60)
	marginRight  = float32(20)
	marginTop    = float32(20)
	marginBottom = float32(40)

	xAxisLabel = "seconds (s)"
)

// renderer draws the scope widget.
type renderer struct {
	scope *Scope

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

// MinSize returns the minimum size of the widget.
func (r *renderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *renderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.Refresh()
}

// Refresh rebuilds the grid, labels and trace from the current data.
func (r *renderer) Refresh() {
	r.scope.mu.RLock()
	display := r.scope.display
	points := make([]fyne.Position, 0, len(display))
	units := r.scope.units
	xMax, yMin, yMax := r.scope.xMax, r.scope.yMin, r.scope.yMax

	size := r.scope.Size()
	plotX, plotY := marginLeft, marginTop
	plotW := size.Width - marginLeft - marginRight
	plotH := size.Height - marginTop - marginBottom

	for _, p := range display {
		x := plotX + float32(p.Seconds/xMax)*plotW
		y := plotY + plotH - float32((p.Value-yMin)/(yMax-yMin))*plotH
		points = append(points, fyne.NewPos(x, y))
	}
	r.scope.mu.RUnlock()

	r.objects = []fyne.CanvasObject{r.bg}
	if plotW <= 0 || plotH <= 0 {
		return
	}

	r.drawGrid(plotX, plotY, plotW, plotH, xMax, yMin, yMax)
	r.drawAxisLabels(plotX, plotY, plotW, plotH, units)
	r.drawTrace(points)
}

// drawGrid draws the grid and the tick values of both axes.
func (r *renderer) drawGrid(plotX, plotY, plotW, plotH float32, xMax, yMin, yMax float64) {
	for i := 0; i < numHLines+1; i++ {
		y := plotY + float32(i)*plotH/numHLines
		r.line(gridColor, 1, fyne.NewPos(plotX, y), fyne.NewPos(plotX+plotW, y))

		value := yMax - float64(i)*(yMax-yMin)/numHLines
		text := r.text(formatValue(value), 10, fyne.TextAlignTrailing)
		text.Move(fyne.NewPos(plotX-5, y-6))
	}

	for i := 0; i < numVLines+1; i++ {
		x := plotX + float32(i)*plotW/numVLines
		r.line(gridColor, 1, fyne.NewPos(x, plotY), fyne.NewPos(x, plotY+plotH))

		seconds := float64(i) * xMax / numVLines
		text := r.text(formatValue(seconds), 10, fyne.TextAlignCenter)
		text.Move(fyne.NewPos(x-20, plotY+plotH+5))
	}
}

func (r *renderer) drawAxisLabels(plotX, plotY, plotW, plotH float32, units string) {
	x := r.text(xAxisLabel, 11, fyne.TextAlignCenter)
	x.Move(fyne.NewPos(plotX+plotW/2-30, plotY+plotH+20))

	if units != "" {
		y := r.text(units, 11, fyne.TextAlignLeading)
		y.Move(fyne.NewPos(5, plotY-15))
	}
}

// drawTrace connects consecutive points.
func (r *renderer) drawTrace(points []fyne.Position) {
	for i := 0; i < len(points)-1; i++ {
		r.line(traceColor, 1.5, points[i], points[i+1])
	}
}

func (r *renderer) line(c color.Color, width float32, from, to fyne.Position) *canvas.Line {
	l := canvas.NewLine(c)
	l.Position1 = from
	l.Position2 = to
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
	return l
}

func (r *renderer) text(s string, size float32, align fyne.TextAlign) *canvas.Text {
	t := canvas.NewText(s, labelColor)
	t.TextSize = size
	t.Alignment = align
	r.objects = append(r.objects, t)
	return t
}

// Objects returns all canvas objects for rendering.
func (r *renderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *renderer) Destroy() {}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
