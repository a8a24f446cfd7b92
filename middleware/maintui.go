package middleware

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/ui"
	"github.com/deemkeen/nodelink/util"
	"github.com/muesli/termenv"
)

// MainTui serves the node console to operator sessions.
func MainTui(reg *registry.Registry, localBaseURL string) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}

		m := ui.NewModel(reg, localBaseURL, s.User(), pty.Window.Width, pty.Window.Height)
		util.Logger().WithPrefix("SSH").Debug("starting console", "user", s.User())
		return tea.NewProgram(m, tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}
