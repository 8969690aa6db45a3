// flightwatch-tui is a live bubbletea dashboard over a trackfactory.Factory:
// a scrolling feed of the five observable events plus a summary line per
// tracked aircraft, refreshed on a tick the way cmd/tui-viewfinder refreshes
// its sky view.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soarwatch/flighttrack/pkg/config"
	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
	"github.com/soarwatch/flighttrack/pkg/trackfactory"
)

const maxFeedLines = 12

var feedPath = flag.String("feed", "", "path to a newline-delimited JSON PositionUpdate file; stdin if empty")

type model struct {
	factory *trackfactory.Factory
	events  chan flightcontext.Event
	feed    []string
	err     error
}

type eventMsg flightcontext.Event
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEvent(events chan flightcontext.Event) tea.Cmd {
	return func() tea.Msg { return eventMsg(<-events) }
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), waitForEvent(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case eventMsg:
		line := formatEvent(flightcontext.Event(msg))
		m.feed = append(m.feed, line)
		if len(m.feed) > maxFeedLines {
			m.feed = m.feed[len(m.feed)-maxFeedLines:]
		}
		return m, waitForEvent(m.events)
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func formatEvent(e flightcontext.Event) string {
	return fmt.Sprintf("%s  %-8s  %s", e.Time.Format("15:04:05"), e.Type, e.AircraftID)
}

func (m model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	eventStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("flightwatch"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("tracked aircraft"))
	b.WriteString("\n")
	for _, line := range aircraftSummaryLines(m.factory) {
		b.WriteString("  " + line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("recent events"))
	b.WriteString("\n")
	if len(m.feed) == 0 {
		b.WriteString(dimStyle.Render("  (none yet)") + "\n")
	}
	for _, line := range m.feed {
		b.WriteString("  " + eventStyle.Render(line) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("q to quit") + "\n")
	return b.String()
}

func aircraftSummaryLines(f *trackfactory.Factory) []string {
	snaps := f.Nearby("")
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].AircraftID < snaps[j].AircraftID })

	lines := make([]string, 0, len(snaps))
	for _, s := range snaps {
		lines = append(lines, fmt.Sprintf("%-10s  alt=%.0fm  spd=%.0fkt  launch=%s",
			s.AircraftID, s.Position.Altitude, s.Position.Speed, s.Flight.LaunchMethod))
	}
	if len(lines) == 0 {
		lines = append(lines, "(none tracked)")
	}
	return lines
}

func main() {
	flag.Parse()

	opts := config.DefaultOptions()
	f := trackfactory.New(opts, log.New(os.Stderr, "[flightwatch-tui] ", log.LstdFlags))

	events := make(chan flightcontext.Event, 256)
	for _, t := range []flightcontext.EventType{
		flightcontext.EventTakeoff,
		flightcontext.EventLanding,
		flightcontext.EventRadarContact,
		flightcontext.EventCompletedWithErrors,
		flightcontext.EventContextDisposed,
	} {
		f.Subscribe(t, func(e flightcontext.Event) {
			select {
			case events <- e:
			default:
			}
		})
	}

	go feedReports(f)

	p := tea.NewProgram(model{factory: f, events: events})
	if _, err := p.Run(); err != nil {
		log.Fatalf("flightwatch-tui: %v", err)
	}
}

// feedReports decodes newline-delimited JSON PositionUpdate records from
// -feed (or stdin) and forwards them to the factory. The wire format and
// its transport are external to this module; this is a demo ingestion path.
func feedReports(f *trackfactory.Factory) {
	src := os.Stdin
	if *feedPath != "" {
		file, err := os.Open(*feedPath)
		if err != nil {
			log.Printf("flightwatch-tui: opening feed %s: %v", *feedPath, err)
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
			log.Printf("flightwatch-tui: skipping malformed report: %v", err)
			continue
		}
		f.Enqueue([]flight.PositionUpdate{update})
	}
}
