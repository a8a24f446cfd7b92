package header

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/nodelink/ui/common"
	"github.com/deemkeen/nodelink/util"
)

type Model struct {
	Width   int
	BaseURL string
	Admin   string
}

func (m Model) View() string {
	return GetHeaderStyle(m.BaseURL, m.Admin, m.Width)
}

// GetHeaderStyle renders three boxes: local node, version and operator.
// Each box adds 4 chars of padding and border to its content width.
func GetHeaderStyle(baseURL, admin string, width int) string {
	overhead := 12
	availableWidth := width - overhead
	if availableWidth < 40 {
		availableWidth = 40
	}

	nodeWidth := availableWidth / 2
	versionWidth := availableWidth / 4
	adminWidth := availableWidth - nodeWidth - versionWidth

	box := func(s string, w int, bg string) string {
		return lipgloss.
			NewStyle().
			SetString(s).
			Align(lipgloss.Left).
			Background(lipgloss.Color(bg)).
			Padding(1).
			Height(2).
			Width(w).
			MaxWidth(w + 4).
			Border(lipgloss.NormalBorder(), true, false, true, false).
			BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
			String()
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		box(baseURL, nodeWidth, common.COLOR_PURPLE),
		box(util.GetNameAndVersion(), versionWidth, common.COLOR_GREY),
		box("operator: "+admin, adminWidth, common.COLOR_MAGENTA),
	)
}
