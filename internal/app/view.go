package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwulff/evening/internal/recorder"
	"github.com/jwulff/evening/internal/ui"
)

// View renders the current screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	if m.screen == ScreenHome {
		return m.renderHome()
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderRecorder())

	if m.session.Status == recorder.StatusStopped {
		sections = append(sections, m.renderPreview())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	if m.savedPath != "" {
		sections = append(sections, ui.NoticeStyle.Render("Saved to "+m.savedPath))
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHome() string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		ui.TitleStyle.Render("Yo Welcome to Where My Evening Went"),
		"",
		ui.LinkStyle.Render("Lets Go🚀"),
		"",
		ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Go")+"  "+
			ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"),
	)
	if m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) renderHeader() string {
	return ui.TitleStyle.Render("EVENING") + ui.DimStyle.Render(" — Record your evening")
}

func (m Model) renderRecorder() string {
	var dot string
	switch m.session.Status {
	case recorder.StatusRecording:
		dot = ui.RecordingDotStyle.Render("● REC")
	case recorder.StatusStopped:
		dot = ui.IdleDotStyle.Render("■ STOPPED")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	timer := ui.TimerStyle.Render(m.session.Time())

	var button string
	switch {
	case m.session.Pending:
		button = ui.DimStyle.Render("  …  ")
	case m.session.Status == recorder.StatusRecording:
		button = ui.StopButtonStyle.Render("STOP")
	default:
		button = ui.RecordButtonStyle.Render("REC")
	}

	status := ui.DimStyle.Render(m.statusText)
	return dot + "  " + timer + "  " + button + "  " + status
}

func (m Model) renderPreview() string {
	title := ui.PanelTitleStyle.Render("Preview")

	var body string
	switch {
	case m.previewErr != "":
		empty := strings.Repeat(strings.Repeat(" ", m.surface().Width)+"\n", m.previewHeight-1) +
			strings.Repeat(" ", m.surface().Width)
		body = empty + "\n" + ui.ErrorTextStyle.Render("Preview unavailable: "+m.previewErr)
	case m.session.Pending:
		body = ui.DimStyle.Render("Starting...")
	case m.preview == nil:
		body = ui.DimStyle.Render("Loading waveform...")
	default:
		state := "▶ Play"
		if m.preview.Playing() {
			state = "❚❚ Pause"
		}
		body = m.preview.View() + "\n" + ui.DimStyle.Render(state)
	}

	return ui.PanelStyle.Render(title + "\n" + body)
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	switch m.session.Status {
	case recorder.StatusRecording:
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Stop"))
	case recorder.StatusStopped:
		parts = append(parts, ui.FooterKeyStyle.Render("p")+ui.FooterDescStyle.Render(" Play/Pause"))
		parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Re-record"))
		parts = append(parts, ui.FooterKeyStyle.Render("s")+ui.FooterDescStyle.Render(" Save"))
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Record again"))
	default:
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Record"))
	}
	if m.session.Status != recorder.StatusRecording {
		parts = append(parts, ui.FooterKeyStyle.Render("b")+ui.FooterDescStyle.Render(" Back"))
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}
