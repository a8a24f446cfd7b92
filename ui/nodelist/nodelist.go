package nodelist

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/ui/common"
	"github.com/deemkeen/nodelink/util"
)

var (
	nodeStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_GREEN)).
			Bold(true)

	inactiveStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_RED))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DARK_GREY)).
			Italic(true)
)

type Model struct {
	Registry *registry.Registry
	Nodes    []domain.Node
	Selected int
	Status   string
	Error    string
}

func InitialModel(reg *registry.Registry) Model {
	return Model{Registry: reg}
}

func (m Model) Init() tea.Cmd {
	return m.loadNodes()
}

type nodesLoadedMsg struct {
	nodes []domain.Node
	err   error
}

type nodeToggledMsg struct {
	node   domain.Node
	active bool
	err    error
}

func (m Model) loadNodes() tea.Cmd {
	reg := m.Registry
	return func() tea.Msg {
		ctx, cancel := common.CommandContext()
		defer cancel()
		nodes, err := reg.List(ctx)
		return nodesLoadedMsg{nodes: nodes, err: err}
	}
}

func (m Model) setActive(node domain.Node, active bool) tea.Cmd {
	reg := m.Registry
	return func() tea.Msg {
		ctx, cancel := common.CommandContext()
		defer cancel()
		err := reg.SetActive(ctx, node.Id, active)
		return nodeToggledMsg{node: node, active: active, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case nodesLoadedMsg:
		if msg.err != nil {
			util.Logger().WithPrefix("Console").Error("failed to load nodes", "err", msg.err)
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Nodes = msg.nodes
		if m.Selected >= len(m.Nodes) {
			m.Selected = max(0, len(m.Nodes)-1)
		}
		return m, nil

	case nodeToggledMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		state := "deactivated"
		if msg.active {
			state = "activated"
		}
		m.Status = fmt.Sprintf("%s %s", msg.node.BaseURL, state)
		m.Error = ""
		return m, m.loadNodes()

	case common.NodeAddedMsg:
		return m, m.loadNodes()

	case tea.KeyMsg:
		m.Status = ""
		m.Error = ""

		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if len(m.Nodes) > 0 && m.Selected < len(m.Nodes)-1 {
				m.Selected++
			}
		case "r":
			return m, m.loadNodes()
		case " ", "enter":
			if len(m.Nodes) == 0 {
				return m, nil
			}
			node := m.Nodes[m.Selected]
			if node.IsLocal {
				m.Error = "Cannot deactivate the local node"
				return m, nil
			}
			return m, m.setActive(node, !node.IsActive)
		}
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("nodes (%d)", len(m.Nodes))))
	s.WriteString("\n\n")

	if len(m.Nodes) == 0 {
		s.WriteString(emptyStyle.Render("No nodes registered."))
	} else {
		for i, node := range m.Nodes {
			prefix := "  "
			style := nodeStyle
			suffix := ""

			if i == m.Selected {
				prefix = "> "
				style = selectedStyle
			}
			if !node.IsActive {
				style = inactiveStyle
				suffix = " [INACTIVE]"
			}
			if node.IsLocal {
				suffix += " [LOCAL]"
			}

			s.WriteString(style.Render(fmt.Sprintf("%s%s (%s)%s", prefix, node.BaseURL, node.Username, suffix)))
			s.WriteString("\n")
		}

		s.WriteString("\n")
		s.WriteString(common.HelpStyle.Render("space: toggle active • r: reload • ↑/↓: navigate • tab: add node"))
		s.WriteString("\n")
	}

	if m.Status != "" {
		s.WriteString("\n")
		s.WriteString(common.StatusStyle.Render(m.Status))
	}
	if m.Error != "" {
		s.WriteString("\n")
		s.WriteString(common.ErrorStyle.Render("Error: " + m.Error))
	}

	return s.String()
}
