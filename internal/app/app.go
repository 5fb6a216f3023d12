package app

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/screen"
	"github.com/abhisek/lexiz/internal/screens/decks"
	"github.com/abhisek/lexiz/internal/screens/study"
	"github.com/abhisek/lexiz/internal/ui/layout"
)

// StatusFunc loads the header status for the current user.
type StatusFunc func(ctx context.Context) (layout.Status, error)

// Options wires the TUI to the study core.
type Options struct {
	Engine   study.Engine
	Decks    decks.Lister
	Status   StatusFunc
	UserID   string
	Location *time.Location

	// DeckID, when set, opens a session on that deck right away.
	DeckID string

	Log *logger.Logger
}

type statusMsg struct {
	status layout.Status
	err    error
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	opts   Options
	status layout.Status
	width  int
	height int
}

func newAppModel(opts Options) AppModel {
	opts.Log = logger.OrNop(opts.Log)
	home := decks.New(opts.Decks, opts.Engine, opts.UserID, opts.Location)
	return AppModel{
		router: router.New(home),
		opts:   opts,
	}
}

func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.router.Active().Init(), m.refreshStatus()}
	if m.opts.DeckID != "" {
		s := study.New(m.opts.Engine, m.opts.UserID, m.opts.DeckID)
		cmds = append(cmds, func() tea.Msg { return router.PushScreenMsg{Screen: s} })
	}
	return tea.Batch(cmds...)
}

func (m AppModel) refreshStatus() tea.Cmd {
	load := m.opts.Status
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		st, err := load(context.Background())
		return statusMsg{status: st, err: err}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.opts.Log.Warn("could not load status", "err", msg.err)
			return m, nil
		}
		m.status = msg.status
		return m, nil

	case router.PopScreenMsg, router.ReplaceScreenMsg:
		// A session just ended or was abandoned.
		return m, tea.Batch(m.router.Update(msg), m.refreshStatus())

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.render())
	return v
}

func (m AppModel) render() string {
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	header := layout.RenderHeader(active.Title(), m.status, m.width)
	footer := layout.RenderFooter(footerHints(active), m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := m.router.View(m.width, contentHeight)
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

func footerHints(s screen.Screen) []layout.KeyHint {
	var hints []layout.KeyHint
	if p, ok := s.(screen.KeyHintProvider); ok {
		hints = append(hints, p.KeyHints()...)
	}
	return append(hints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
