package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/ui/addnode"
	"github.com/deemkeen/nodelink/ui/common"
	"github.com/deemkeen/nodelink/ui/header"
	"github.com/deemkeen/nodelink/ui/nodelist"
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)
)

// MainModel is the operator console: the node list on the left and the
// add-node form on the right.
type MainModel struct {
	width        int
	height       int
	state        common.SessionState
	headerModel  header.Model
	listModel    nodelist.Model
	addNodeModel addnode.Model
}

func NewModel(reg *registry.Registry, localBaseURL, admin string, width, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	return MainModel{
		width:        width,
		height:       height,
		state:        common.NodeListView,
		headerModel:  header.Model{Width: width, BaseURL: localBaseURL, Admin: admin},
		listModel:    nodelist.InitialModel(reg),
		addNodeModel: addnode.InitialModel(reg),
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.listModel.Init(), m.addNodeModel.Init())
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = common.DefaultWindowWidth(msg.Width)
		m.height = common.DefaultWindowHeight(msg.Height)
		m.headerModel.Width = m.width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if msg.String() == "q" && m.state == common.AddNodeView {
				break
			}
			return m, tea.Quit
		case "tab", "shift+tab":
			if m.state == common.NodeListView {
				m.state = common.AddNodeView
			} else {
				m.state = common.NodeListView
			}
			return m, nil
		}

		// keyboard input only reaches the focused view
		switch m.state {
		case common.NodeListView:
			m.listModel, cmd = m.listModel.Update(msg)
		case common.AddNodeView:
			m.addNodeModel, cmd = m.addNodeModel.Update(msg)
		}
		return m, cmd
	}

	m.listModel, cmd = m.listModel.Update(msg)
	cmds = append(cmds, cmd)
	m.addNodeModel, cmd = m.addNodeModel.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m MainModel) View() string {
	availableHeight := m.height - 10
	leftPanelWidth := m.width / 2
	rightPanelWidth := m.width - leftPanelWidth - 6

	panel := func(w int, content string) string {
		return lipgloss.NewStyle().
			MaxHeight(availableHeight).
			Height(availableHeight).
			Width(w).
			MaxWidth(w).
			Render(content)
	}
	list := panel(leftPanelWidth, m.listModel.View())
	form := panel(rightPanelWidth, m.addNodeModel.View())

	s := m.headerModel.View() + "\n"
	if m.state == common.NodeListView {
		s += lipgloss.JoinHorizontal(lipgloss.Top, focusedModelStyle.Render(list), modelStyle.Render(form))
	} else {
		s += lipgloss.JoinHorizontal(lipgloss.Top, modelStyle.Render(list), focusedModelStyle.Render(form))
	}

	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: switch view • ctrl-c: exit", m.currentFocusedModel()))
	return s
}

func (m MainModel) currentFocusedModel() string {
	if m.state == common.AddNodeView {
		return "add node"
	}
	return "nodes"
}
