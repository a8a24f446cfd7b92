package addnode

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/ui/common"
)

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_LIGHTBLUE)).Width(20)

const (
	fieldBaseURL = iota
	fieldUsername
	fieldPassword
	fieldOutboundUsername
	fieldOutboundPassword
	fieldCount
)

var labels = [fieldCount]string{
	"base url",
	"inbound username",
	"inbound password",
	"outbound username",
	"outbound password",
}

type Model struct {
	Registry *registry.Registry
	Inputs   []textinput.Model
	Focused  int
	Status   string
	Error    string
}

type nodeRegisteredMsg struct {
	baseURL string
	err     error
}

func InitialModel(reg *registry.Registry) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 200
		ti.Width = 50
		inputs[i] = ti
	}
	inputs[fieldBaseURL].Placeholder = "https://peer.example/api/"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldOutboundPassword].EchoMode = textinput.EchoPassword
	inputs[fieldBaseURL].Focus()

	return Model{Registry: reg, Inputs: inputs}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// NewNode reads the form into a registration request.
func (m Model) NewNode() registry.NewNode {
	value := func(i int) string { return strings.TrimSpace(m.Inputs[i].Value()) }
	return registry.NewNode{
		BaseURL:          value(fieldBaseURL),
		Username:         value(fieldUsername),
		Password:         value(fieldPassword),
		OutboundUsername: value(fieldOutboundUsername),
		OutboundPassword: value(fieldOutboundPassword),
	}
}

func (m Model) register() tea.Cmd {
	reg, n := m.Registry, m.NewNode()
	return func() tea.Msg {
		ctx, cancel := common.CommandContext()
		defer cancel()
		_, err := reg.Register(ctx, n)
		return nodeRegisteredMsg{baseURL: n.BaseURL, err: err}
	}
}

func (m *Model) focus(i int) tea.Cmd {
	m.Inputs[m.Focused].Blur()
	m.Focused = (i + fieldCount) % fieldCount
	return m.Inputs[m.Focused].Focus()
}

func (m *Model) reset() {
	for i := range m.Inputs {
		m.Inputs[i].SetValue("")
	}
	m.focus(fieldBaseURL)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case nodeRegisteredMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
			m.Status = ""
			return m, nil
		}
		m.Status = fmt.Sprintf("✓ Registered %s", msg.baseURL)
		m.Error = ""
		m.reset()
		return m, func() tea.Msg { return common.NodeAddedMsg{} }

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			return m, m.focus(m.Focused - 1)
		case "down":
			return m, m.focus(m.Focused + 1)
		case "enter":
			if m.Focused < fieldCount-1 {
				return m, m.focus(m.Focused + 1)
			}
			n := m.NewNode()
			if n.BaseURL == "" || n.Username == "" || n.Password == "" {
				m.Error = "Base url, inbound username and password are required"
				return m, nil
			}
			m.Status = fmt.Sprintf("Registering %s...", n.BaseURL)
			m.Error = ""
			return m, m.register()
		case "esc":
			m.reset()
			m.Status = ""
			m.Error = ""
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Inputs[m.Focused], cmd = m.Inputs[m.Focused].Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("add remote node"))
	s.WriteString("\n\n")
	for i := range m.Inputs {
		s.WriteString(labelStyle.Render(labels[i]))
		s.WriteString(m.Inputs[i].View())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render("enter: next / register • ↑/↓: field • esc: clear • tab: switch view"))

	return s.String()
}
