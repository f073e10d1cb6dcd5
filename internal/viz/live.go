package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/lv"
	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/units"
)

const historyCapacity = 600

var flavorLabels = []string{"e", "mu", "tau", "s1", "s2", "s3"}

type TickMsg time.Time

// Snapshot is the flavor content of the watched node at one distance.
type Snapshot struct {
	DistanceKm float64
	Probs      []float64
}

// LiveConfig describes a live propagation.
type LiveConfig struct {
	BaselineKm    float64
	SegmentKm     float64
	DtKm          float64
	NewIntegrator func() dynamo.Integrator
	Title         string
}

// Model propagates a system segment by segment and plots the flavor
// content of one energy node as it goes.
type Model struct {
	initial *lv.System
	sys     *lv.System
	cfg     LiveConfig
	integ   dynamo.Integrator

	node     int
	traveled float64
	history  []Snapshot
	playHead int
	running  bool
	showHelp bool
	err      error
	canvas   *Canvas
}

// NewModel copies sys so that reset can restore it.
func NewModel(sys *lv.System, cfg LiveConfig) Model {
	if cfg.SegmentKm <= 0 {
		cfg.SegmentKm = cfg.DtKm
	}
	m := Model{
		initial:  sys.Clone(),
		sys:      sys.Clone(),
		cfg:      cfg,
		integ:    cfg.NewIntegrator(),
		history:  make([]Snapshot, 0, historyCapacity),
		playHead: -1,
		running:  true,
		canvas:   NewCanvas(36, 6),
	}
	m.record()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "tab":
			m.node = (m.node + 1) % m.sys.Nodes()
			m.history = m.history[:0]
			m.record()
		case "up", "k":
			m.scaleCouplings(1.25)
		case "down", "j":
			m.scaleCouplings(0.8)
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "t":
			SetTheme(NextTheme(CurrentTheme.Name))
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.err == nil {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) Done() bool { return m.traveled >= m.cfg.BaselineKm }
func (m Model) Err() error { return m.err }

// step propagates one segment.
func (m *Model) step() {
	if m.Done() {
		m.running = false
		return
	}
	seg := m.cfg.SegmentKm
	if rest := m.cfg.BaselineKm - m.traveled; seg > rest {
		seg = rest
	}
	dt := m.cfg.DtKm
	if dt > seg {
		dt = seg
	}
	_, err := m.sys.Propagate(context.Background(), m.integ, seg*units.Km, osc.Run{Dt: dt * units.Km})
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.traveled += seg
	m.record()
}

func (m *Model) record() {
	probs := make([]float64, m.sys.Flavors())
	for flv := range probs {
		p, err := m.sys.EvalFlavorAtNode(flv, m.node, 0)
		if err != nil {
			m.err = err
			return
		}
		probs[flv] = p
	}
	m.history = append(m.history, Snapshot{DistanceKm: m.traveled, Probs: probs})
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

// scaleCouplings rescales both couplings, which invalidates the cached
// perturbation exactly like any other reconfiguration.
func (m *Model) scaleCouplings(f float64) {
	p, ok := m.sys.Perturbation().Parameters()
	if !ok {
		return
	}
	p.CEMu *= complex(f, 0)
	p.CMuTau *= complex(f, 0)
	if err := m.sys.SetFromParameters(p); err != nil {
		m.err = err
	}
}

func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

func (m *Model) reset() {
	m.sys = m.initial.Clone()
	m.integ = m.cfg.NewIntegrator()
	m.traveled = 0
	m.history = m.history[:0]
	m.playHead = -1
	m.err = nil
	m.running = true
	m.record()
}

func (m Model) current() Snapshot {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead]
	}
	if len(m.history) == 0 {
		return Snapshot{Probs: make([]float64, m.sys.Flavors())}
	}
	return m.history[len(m.history)-1]
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED")
	case m.playHead != -1:
		return StatusPaused.Render(fmt.Sprintf("REPLAY (%.0f km)", m.current().DistanceKm))
	case m.Done():
		return StatusRunning.Render("ARRIVED")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render("PROPAGATING")
}

// spectrum returns the probability of flv over all energy nodes.
func (m Model) spectrum(flv int) []float64 {
	out := make([]float64, m.sys.Nodes())
	for ie := range out {
		out[ie], _ = m.sys.EvalFlavorAtNode(flv, ie, 0)
	}
	return out
}

func (m Model) graph() string {
	if len(m.history) < 2 {
		return ""
	}
	n := m.sys.Flavors()
	series := make([][]float64, n)
	for _, snap := range m.history {
		for flv := 0; flv < n; flv++ {
			series[flv] = append(series[flv], snap.Probs[flv])
		}
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(8),
		asciigraph.Width(48),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(CurrentTheme.Series[:n]...),
		asciigraph.Caption("P(flavor) vs distance"),
	)
}

func (m Model) View() string {
	snap := m.current()

	var s strings.Builder
	title := m.cfg.Title
	if title == "" {
		title = "nusim live"
	}
	s.WriteString(headerStyle().Render(strings.ToUpper(title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	s.WriteString(labelStyle.Render("Energy") + valueStyle.Render(fmt.Sprintf("%.3g GeV", m.sys.Energy(m.node)/units.GeV)) + "\n")
	s.WriteString(labelStyle.Render("Distance") + valueStyle.Render(fmt.Sprintf("%.0f / %.0f km", snap.DistanceKm, m.cfg.BaselineKm)) + "\n")
	s.WriteString(labelStyle.Render("Progress") + ProgressBar(m.traveled/m.cfg.BaselineKm, 20) + "\n")
	s.WriteString(labelStyle.Render("Perturbation") + valueStyle.Render(m.sys.Status().String()) + "\n")
	if p, ok := m.sys.Perturbation().Parameters(); ok {
		s.WriteString(labelStyle.Render("c_emu") + valueStyle.Render(fmt.Sprintf("%.3g", p.CEMu)) + "\n")
		s.WriteString(labelStyle.Render("c_mutau") + valueStyle.Render(fmt.Sprintf("%.3g", p.CMuTau)) + "\n")
	}
	s.WriteString(labelStyle.Render("Power") + valueStyle.Render(fmt.Sprintf("E^%d", m.sys.EnergyPower())) + "\n\n")

	for flv, p := range snap.Probs {
		s.WriteString(labelStyle.Render("P("+flavorLabels[flv]+")") + valueStyle.Render(fmt.Sprintf("%.4f", p)) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + StatusFailed.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("SP:Pause R:Reset Q:Quit\nTab:Node ↑↓:Couplings\n[ ]:Replay T:Theme ?:Help"))
	stats := statsStyle.Render(s.String())

	m.canvas.Clear()
	m.canvas.Curve(m.spectrum(1%m.sys.Flavors()), 0, 1)
	spectrum := BoxWithTitle("P(mu) over energy", m.canvas.String(), 38)

	left := lipgloss.JoinVertical(lipgloss.Left, m.graph(), spectrum)
	view := lipgloss.JoinHorizontal(lipgloss.Top, left, stats)
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
  Space    pause or resume
  R        restart from the source
  Tab      watch the next energy node
  Up/K     scale couplings by 1.25
  Down/J   scale couplings by 0.8
  [ ]      replay recorded distances
  T        cycle themes
  Q        quit
`
