package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gpsdxo-mon/internal/series"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	footerStyle = lipgloss.NewStyle().Faint(true)
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

type tickMsg time.Time

// Options configures the terminal dashboard.
type Options struct {
	// Refresh is the drain and redraw interval.
	Refresh time.Duration
	// Window is the time span shown on the charts.
	Window time.Duration
	// Status, when set, provides a one-line transport summary for the footer.
	Status func() string
}

// Model is the bubbletea model of the live dashboard. It drains the
// telemetry queue on every tick and never waits for data.
type Model struct {
	pump *Pump
	opts Options
	now  func() time.Time

	width  int
	height int
	err    error
}

func NewModel(pump *Pump, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = 100 * time.Millisecond
	}
	if opts.Window <= 0 {
		opts.Window = 300 * time.Second
	}
	now := time.Now
	if pump != nil && pump.Now != nil {
		now = pump.Now
	}
	return Model{pump: pump, opts: opts, now: now, width: defaultWidth, height: defaultHeight}
}

// Err is the link error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if _, err := m.pump.Drain(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	store := m.pump.Store
	now := m.now()
	from := now.Add(-m.opts.Window)

	table := m.renderTable(store.Table())
	footer := footerStyle.Render(m.footer())

	remaining := m.height - lipgloss.Height(table) - lipgloss.Height(footer)
	if remaining < 9 {
		return lipgloss.JoinVertical(lipgloss.Left, table, footer)
	}
	h1 := remaining * 2 / 7
	h2 := (remaining - h1) / 2
	h3 := remaining - h1 - h2

	current := Chart{
		Title: "Current",
		From:  from, To: now,
		Sets: []Dataset{{Name: "Current", Samples: store.Window(series.Current, now, m.opts.Window), Marker: '•', Style: cyanStyle}},
	}
	current.Lo, current.Hi = series.Current.Bounds()

	deviationHz := Chart{
		Title: "Deviation(Hz)",
		From:  from, To: now,
		Sets: []Dataset{
			{Name: "Current", Samples: store.Window(series.DeviationCurrent, now, m.opts.Window), Marker: '•', Style: cyanStyle},
			{Name: "Accumulated", Samples: store.Window(series.DeviationAccumulated, now, m.opts.Window), Marker: '•', Style: redStyle},
		},
	}
	deviationHz.Lo, deviationHz.Hi = series.DeviationCurrent.Bounds()

	deviationPPB := Chart{
		Title: "Deviation(ppb)",
		From:  from, To: now,
		Sets: []Dataset{{Name: "Deviation", Samples: store.Window(series.DeviationPPB, now, m.opts.Window), Marker: '•', Style: cyanStyle}},
	}
	deviationPPB.Lo, deviationPPB.Hi = series.DeviationPPB.Bounds()

	return lipgloss.JoinVertical(lipgloss.Left,
		table,
		current.Render(m.width, h1, boxStyle),
		deviationHz.Render(m.width, h2, boxStyle),
		deviationPPB.Render(m.width, h3, boxStyle),
		footer,
	)
}

func (m Model) renderTable(rows []series.Row) string {
	innerW := m.width - boxStyle.GetHorizontalFrameSize()
	if innerW < 10 {
		innerW = 10
	}
	col := innerW / 2

	var b strings.Builder
	b.WriteString(titleStyle.Render("GPSDXO Data"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(nameStyle.Width(col).Render(r.Name))
		b.WriteString(r.Value)
	}
	return boxStyle.Width(innerW).Render(b.String())
}

func (m Model) footer() string {
	s := "q: quit"
	if m.opts.Status != nil {
		if st := m.opts.Status(); st != "" {
			s = st + "  " + s
		}
	}
	return s
}

// Run shows the dashboard until the user quits, ctx is cancelled, or a link
// error arrives. A link error is returned so the caller can report it after
// the terminal is restored.
func Run(ctx context.Context, pump *Pump, opts Options, progOpts ...tea.ProgramOption) error {
	if pump == nil || pump.Queue == nil || pump.Store == nil {
		return fmt.Errorf("dashboard pump is incomplete")
	}
	progOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, progOpts...)
	program := tea.NewProgram(NewModel(pump, opts), progOpts...)
	final, err := program.Run()
	if fm, ok := final.(Model); ok && fm.err != nil {
		return fm.err
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
