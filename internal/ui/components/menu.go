package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lexiz/internal/ui/theme"
)

// MenuItem is one selectable row.
type MenuItem struct {
	Label  string
	Detail string
	Action func() tea.Cmd

	// Disabled rows are shown but skipped by navigation.
	Disabled bool
}

// Menu is a vertical list navigated with arrows or j/k.
type Menu struct {
	Items    []MenuItem
	Selected int
}

// NewMenu selects the first enabled item.
func NewMenu(items []MenuItem) Menu {
	m := Menu{Items: items, Selected: -1}
	m.move(0, 1)
	return m
}

// move selects the next enabled item from start in direction step.
func (m *Menu) move(start, step int) {
	for i := start; i >= 0 && i < len(m.Items); i += step {
		if !m.Items[i].Disabled {
			m.Selected = i
			return
		}
	}
}

func (m Menu) Update(msg tea.Msg) (Menu, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch kmsg.String() {
	case "up", "k":
		m.move(m.Selected-1, -1)
	case "down", "j":
		m.move(m.Selected+1, 1)
	case "enter":
		if m.Selected >= 0 && m.Selected < len(m.Items) {
			if it := m.Items[m.Selected]; it.Action != nil && !it.Disabled {
				return m, it.Action()
			}
		}
	}
	return m, nil
}

func (m Menu) View() string {
	var b strings.Builder
	for i, it := range m.Items {
		label := "    " + it.Label
		style := theme.Unselected
		switch {
		case it.Disabled:
			style = theme.Dim
		case i == m.Selected:
			label, style = "  ▸ "+it.Label, theme.Selected
		}
		b.WriteString(style.Render(label))
		if it.Detail != "" {
			b.WriteString("  " + theme.Dim.Render(it.Detail))
		}
		b.WriteString("\n")
	}
	return b.String()
}
