package scope

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/pmscollect/pkg/collect"
)

// DefaultMaxDisplayPoints limits the number of points drawn per trace.
const DefaultMaxDisplayPoints = 1000

// Scope is a Fyne widget plotting the points of a measurement run against
// time in seconds, redrawn as each point arrives.
type Scope struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu      sync.RWMutex
	points  []collect.Point
	display []collect.Point
	units   string

	// Auto-scaling
	span       float64 // seconds the x axis covers at least
	xMax       float64
	yMin, yMax float64

	maxDisplayPoints int
}

// New creates an empty scope.
func New() *Scope {
	s := &Scope{
		display:          make([]collect.Point, 0, DefaultMaxDisplayPoints),
		maxDisplayPoints: DefaultMaxDisplayPoints,
	}
	s.updateAutoScale()
	s.ExtendBaseWidget(s)
	return s
}

// Reset clears the plot for a new run. span is the expected run length in
// seconds; the x axis never shrinks below it.
func (s *Scope) Reset(units string, span float64) {
	s.mu.Lock()
	s.points = s.points[:0]
	s.display = s.display[:0]
	s.units = units
	s.span = span
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Add appends a point and redraws. Must be called on the Fyne thread.
func (s *Scope) Add(p collect.Point) {
	s.mu.Lock()
	s.points = append(s.points, p)
	s.display = downsample(s.display, s.points, s.maxDisplayPoints)
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Points returns a copy of every point of the current run.
func (s *Scope) Points() []collect.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]collect.Point(nil), s.points...)
}

// Units returns the y axis label of the current run.
func (s *Scope) Units() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units
}

// Bounds returns the plotted ranges: x from 0 to xMax seconds, y from yMin
// to yMax.
func (s *Scope) Bounds() (xMax, yMin, yMax float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.xMax, s.yMin, s.yMax
}

// updateAutoScale recalculates the axis ranges. Must be called with mu held.
func (s *Scope) updateAutoScale() {
	s.xMax = s.span
	if s.xMax <= 0 {
		s.xMax = 1
	}

	if len(s.display) == 0 {
		s.yMin = 0
		s.yMax = 1
		return
	}

	s.yMin = s.display[0].Value
	s.yMax = s.display[0].Value
	for _, p := range s.display {
		s.yMin = min(s.yMin, p.Value)
		s.yMax = max(s.yMax, p.Value)
	}

	// Add 10% margin
	r := s.yMax - s.yMin
	if r == 0 {
		r = 1
	}
	s.yMin -= r * 0.1
	s.yMax += r * 0.1

	if last := s.display[len(s.display)-1].Seconds; last > s.xMax {
		s.xMax = last
	}
}

// CreateRenderer creates the widget renderer.
func (s *Scope) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &renderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
