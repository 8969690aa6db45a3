// flightwatch-scope is a radar-style tview/tcell scope plotting every
// tracked aircraft around a center point by bearing and range, colored by
// its classified launch method — the same custom tview.Box + tcell.Screen.Draw
// idiom cmd/termgl-client uses for its sky view.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/soarwatch/flighttrack/pkg/config"
	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
	"github.com/soarwatch/flighttrack/pkg/geo"
	"github.com/soarwatch/flighttrack/pkg/trackfactory"
)

var (
	feedPath  = flag.String("feed", "", "path to a newline-delimited JSON PositionUpdate file; stdin if empty")
	centerLat = flag.Float64("center-lat", 0, "scope center latitude; 0 auto-centers on the first tracked aircraft")
	centerLon = flag.Float64("center-lon", 0, "scope center longitude")
	rangeM    = flag.Float64("range", 20000, "scope range in metres from center to edge")
)

// App holds the factory and the scope's mutable view state.
type App struct {
	tviewApp *tview.Application
	factory  *trackfactory.Factory
	scope    *ScopeView
	log      *tview.TextView

	mu          sync.RWMutex
	center      geo.Point
	centerSet   bool
	rangeMetres float64
	stopChan    chan struct{}
}

// ScopeView is a custom tview primitive drawing aircraft as bearing/range
// points around App.center.
type ScopeView struct {
	*tview.Box
	app *App
}

func NewScopeView(app *App) *ScopeView {
	sv := &ScopeView{Box: tview.NewBox(), app: app}
	sv.SetBorder(true).SetTitle(" Scope ")
	return sv
}

func (sv *ScopeView) Draw(screen tcell.Screen) {
	sv.Box.DrawForSubclass(screen, sv)
	x, y, width, height := sv.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	centerX := x + width/2
	centerY := y + height/2
	radius := width / 2
	if height < width {
		radius = height
	}

	sv.app.mu.RLock()
	center := sv.app.center
	haveCenter := sv.app.centerSet
	rangeMetres := sv.app.rangeMetres
	sv.app.mu.RUnlock()

	gridStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	screen.SetContent(centerX, centerY, '+', nil, gridStyle)
	for _, frac := range []float64{0.33, 0.66, 1.0} {
		drawCircle(screen, centerX, centerY, int(float64(radius)*frac), '·', gridStyle)
	}

	if !haveCenter {
		return
	}

	for _, snap := range sv.app.factory.Nearby("") {
		if len(snap.Flight.PositionUpdates) == 0 {
			continue
		}
		pos := geo.Point{Latitude: snap.Position.Latitude, Longitude: snap.Position.Longitude}
		dist := geo.Distance(center, pos)
		if dist > rangeMetres {
			continue
		}
		bearing := geo.Heading(center, pos)
		theta := (bearing - 90) * math.Pi / 180 // screen x grows right, bearing 0 is up
		scale := float64(radius) * (dist / rangeMetres)
		px := centerX + int(scale*math.Cos(theta))
		py := centerY + int(scale*math.Sin(theta)*0.5) // terminal cells are roughly 2:1 tall

		style := styleForLaunch(snap.Flight.LaunchMethod)
		screen.SetContent(px, py, 'o', nil, style)
		label := snap.AircraftID
		for i, ch := range label {
			if px+1+i >= x+width {
				break
			}
			screen.SetContent(px+1+i, py, ch, nil, style)
		}
	}
}

func styleForLaunch(m flight.LaunchMethod) tcell.Style {
	switch {
	case m.Has(flight.LaunchWinch):
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case m.Has(flight.LaunchAerotow):
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case m.Has(flight.LaunchSelf):
		return tcell.StyleDefault.Foreground(tcell.ColorLightBlue)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorWhite)
	}
}

func drawCircle(screen tcell.Screen, cx, cy, r int, ch rune, style tcell.Style) {
	if r <= 0 {
		return
	}
	steps := r * 8
	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(float64(r)*math.Cos(theta))
		y := cy + int(float64(r)*math.Sin(theta)*0.5)
		screen.SetContent(x, y, ch, nil, style)
	}
}

func NewApp(factory *trackfactory.Factory) *App {
	a := &App{
		factory:     factory,
		rangeMetres: *rangeM,
		stopChan:    make(chan struct{}),
	}
	if *centerLat != 0 || *centerLon != 0 {
		a.center = geo.Point{Latitude: *centerLat, Longitude: *centerLon}
		a.centerSet = true
	}

	a.tviewApp = tview.NewApplication()
	a.scope = NewScopeView(a)
	a.log = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	a.log.SetBorder(true).SetTitle(" Events ")

	root := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.scope, 0, 7, true).
		AddItem(a.log, 0, 3, false)
	a.tviewApp.SetRoot(root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)

	for _, t := range []flightcontext.EventType{
		flightcontext.EventTakeoff,
		flightcontext.EventLanding,
		flightcontext.EventRadarContact,
		flightcontext.EventCompletedWithErrors,
		flightcontext.EventContextDisposed,
	} {
		factory.Subscribe(t, a.onEvent)
	}

	return a
}

func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	if event.Rune() == 'q' {
		a.tviewApp.Stop()
		return nil
	}
	return event
}

func (a *App) onEvent(e flightcontext.Event) {
	a.mu.Lock()
	if !a.centerSet && len(e.Flight.PositionUpdates) > 0 {
		last := e.Flight.PositionUpdates[len(e.Flight.PositionUpdates)-1]
		a.center = geo.Point{Latitude: last.Latitude, Longitude: last.Longitude}
		a.centerSet = true
	}
	a.mu.Unlock()

	a.tviewApp.QueueUpdateDraw(func() {
		fmt.Fprintf(a.log, "%s  %-18s %s\n", e.Time.Format("15:04:05"), e.Type, e.AircraftID)
	})
}

func (a *App) startRedrawLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.tviewApp.QueueUpdateDraw(func() {})
			case <-a.stopChan:
				return
			}
		}
	}()
}

func main() {
	flag.Parse()

	opts := config.DefaultOptions()
	logger := log.New(os.Stderr, "[flightwatch-scope] ", log.LstdFlags)
	factory := trackfactory.New(opts, logger)

	app := NewApp(factory)
	app.startRedrawLoop()

	go feedReports(factory)

	if err := app.tviewApp.Run(); err != nil {
		log.Fatalf("flightwatch-scope: %v", err)
	}
	close(app.stopChan)
}

func feedReports(f *trackfactory.Factory) {
	src := os.Stdin
	if *feedPath != "" {
		file, err := os.Open(*feedPath)
		if err != nil {
			log.Printf("flightwatch-scope: opening feed %s: %v", *feedPath, err)
			return
		}
		defer file.Close()
		src = file
	}

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var update flight.PositionUpdate
		if err := json.Unmarshal([]byte(line), &update); err != nil {
			log.Printf("flightwatch-scope: skipping malformed report: %v", err)
			continue
		}
		f.Enqueue([]flight.PositionUpdate{update})
	}
}
