// Package gui is the desktop front end: channel, samples and interval
// controls, a live scope of the running measurement and a data logger list.
package gui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/itohio/pmscollect/pkg/channel"
	"github.com/itohio/pmscollect/pkg/collect"
	"github.com/itohio/pmscollect/pkg/config"
	"github.com/itohio/pmscollect/pkg/daq"
	"github.com/itohio/pmscollect/pkg/record"
	"github.com/itohio/pmscollect/pkg/scope"
)

const boardTimeout = 2 * time.Second

// UI holds the widgets of the main window and the state of the current run.
type UI struct {
	cfg    *config.Config
	col    *collect.Collector
	log    logrus.FieldLogger
	window fyne.Window
	now    func() time.Time

	scope     *scope.Scope
	channel   *widget.Select
	samples   *widget.Entry
	interval  *widget.Entry
	startBtn  *widget.Button
	stopBtn   *widget.Button
	saveBtn   *widget.Button
	boardBtn  *widget.Button
	status    *widget.Label
	dataTable *widget.List

	// Run state (protected by mu)
	mu      sync.Mutex
	points  []collect.Point
	units   string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds the main window content for dev and sets it on window.
func New(window fyne.Window, cfg *config.Config, dev daq.Device, logger logrus.FieldLogger) *UI {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	u := &UI{
		cfg:    cfg,
		col:    collect.New(dev, logger),
		log:    logger,
		window: window,
		now:    time.Now,
		scope:  scope.New(),
		status: widget.NewLabel("Ready"),
	}

	names := make([]string, len(cfg.Channels))
	for i, cc := range cfg.Channels {
		names[i] = fmt.Sprintf("%d: %s", i, cc.Name)
	}
	u.samples = widget.NewEntry()
	u.interval = widget.NewEntry()
	u.channel = widget.NewSelect(names, func(string) { u.loadChannel() })

	u.startBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), u.Start)
	u.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), u.Stop)
	u.stopBtn.Disable()
	u.saveBtn = widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), u.Save)
	u.saveBtn.Disable()
	u.boardBtn = widget.NewButtonWithIcon("Board", theme.InfoIcon(), u.QueryBoard)

	u.dataTable = widget.NewList(
		func() int {
			u.mu.Lock()
			defer u.mu.Unlock()
			return len(u.points)
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			u.mu.Lock()
			defer u.mu.Unlock()
			if id < len(u.points) {
				o.(*widget.Label).SetText(fmt.Sprintf("%d: %g", id+1, u.points[id].Value))
			}
		},
	)

	u.col.OnPoint(func(p collect.Point) {
		u.mu.Lock()
		u.points = append(u.points, p)
		u.mu.Unlock()

		fyne.Do(func() {
			u.scope.Add(p)
			u.dataTable.Refresh()
			u.dataTable.ScrollToBottom()
		})
	})

	if len(names) > 0 {
		u.channel.SetSelectedIndex(0)
	}

	window.SetContent(u.layout())
	return u
}

func (u *UI) layout() fyne.CanvasObject {
	toolbar := container.NewHBox(
		widget.NewLabel("Channel"), u.channel,
		widget.NewLabel("Samples"), u.samples,
		widget.NewLabel("Interval (ms)"), u.interval,
		u.startBtn, u.stopBtn, u.saveBtn, u.boardBtn,
	)

	logger := container.NewBorder(widget.NewLabel("Data Logger:"), nil, nil, nil, u.dataTable)
	split := container.NewHSplit(u.scope, logger)
	split.Offset = 0.8

	return container.NewBorder(toolbar, u.status, nil, nil, split)
}

// loadChannel fills the samples and interval entries from the selected
// channel's configuration.
func (u *UI) loadChannel() {
	idx := u.channel.SelectedIndex()
	if idx < 0 {
		return
	}
	ch, err := u.cfg.Channels[idx].Channel()
	if err != nil {
		u.status.SetText(err.Error())
		return
	}
	u.samples.SetText(strconv.Itoa(ch.SamplesToTake()))
	u.interval.SetText(strconv.FormatUint(uint64(ch.SampleInterval()), 10))
}

// selectedChannel builds the channel to run from the configuration and the
// samples and interval entries.
func (u *UI) selectedChannel() (int, *channel.Channel, error) {
	idx := u.channel.SelectedIndex()
	if idx < 0 {
		return 0, nil, errors.New("no channel selected")
	}

	ch, err := u.cfg.Channels[idx].Channel()
	if err != nil {
		return 0, nil, err
	}

	samples, err := strconv.Atoi(u.samples.Text)
	if err != nil {
		return 0, nil, fmt.Errorf("samples %q: %w", u.samples.Text, err)
	}
	interval, err := strconv.ParseUint(u.interval.Text, 10, 32)
	if err != nil {
		return 0, nil, fmt.Errorf("interval %q: %w", u.interval.Text, err)
	}
	ch.SetSamplesToTake(samples)
	ch.SetSampleInterval(uint32(interval))

	if err := ch.Validate(); err != nil {
		return 0, nil, err
	}
	return idx, ch, nil
}

// Start begins a measurement on the selected channel. Must be called on the
// Fyne thread.
func (u *UI) Start() {
	idx, ch, err := u.selectedChannel()
	if err != nil {
		dialog.ShowError(err, u.window)
		return
	}

	u.mu.Lock()
	if u.cancel != nil {
		u.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	u.cancel = cancel
	u.done = done
	u.points = u.points[:0]
	u.units = ch.Units()
	u.started = u.now()
	u.mu.Unlock()

	span := float64(ch.SamplesToTake()-1) * ch.Interval().Seconds()
	u.scope.Reset(ch.Units(), span)
	u.dataTable.Refresh()
	u.startBtn.Disable()
	u.saveBtn.Disable()
	u.stopBtn.Enable()
	u.status.SetText(fmt.Sprintf("Measuring %s", u.channel.Selected))

	go func() {
		points, err := u.col.Run(ctx, idx, ch)

		u.mu.Lock()
		u.cancel = nil
		u.mu.Unlock()
		cancel()

		fyne.Do(func() { u.finish(len(points), err) })
		close(done)
	}()
}

func (u *UI) finish(n int, err error) {
	u.startBtn.Enable()
	u.stopBtn.Disable()
	if n > 0 {
		u.saveBtn.Enable()
	}

	switch {
	case err == nil:
		u.status.SetText(fmt.Sprintf("Measurement complete: %d points", n))
	case errors.Is(err, context.Canceled):
		u.status.SetText(fmt.Sprintf("Measurement stopped: %d points", n))
	default:
		u.log.WithError(err).Error("Measurement failed")
		u.status.SetText("Measurement failed")
		dialog.ShowError(err, u.window)
	}
}

// Stop aborts the running measurement.
func (u *UI) Stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current measurement, if any, has finished.
func (u *UI) Wait() {
	u.mu.Lock()
	done := u.done
	u.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Running reports whether a measurement is in progress.
func (u *UI) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancel != nil
}

// Points returns a copy of the points collected by the last run.
func (u *UI) Points() []collect.Point {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]collect.Point(nil), u.points...)
}

// Save writes the last run to the output directory as CSV.
func (u *UI) Save() {
	u.mu.Lock()
	points := append([]collect.Point(nil), u.points...)
	units, started := u.units, u.started
	u.mu.Unlock()

	if len(points) == 0 {
		return
	}

	path, err := record.Save(u.cfg.Output.Dir, started, units, points)
	if err != nil {
		dialog.ShowError(err, u.window)
		return
	}
	u.log.WithField("path", path).Info("Saved measurement")
	u.status.SetText("Saved " + path)
}

// QueryBoard asks the board to identify itself and shows the answer in the
// status line.
func (u *UI) QueryBoard() {
	ctx, cancel := context.WithTimeout(context.Background(), boardTimeout)
	defer cancel()

	info, err := u.col.Board(ctx)
	if err != nil {
		u.log.WithError(err).Warn("Board did not identify itself")
		u.status.SetText("Board not responding")
		return
	}
	u.status.SetText(fmt.Sprintf("Board %s %s, %d channels", info.Name, info.Version, info.Channels))
}
