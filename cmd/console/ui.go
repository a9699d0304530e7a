package main

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/pantheonmod/pantheon/pkg/deity"
	"github.com/pantheonmod/pantheon/pkg/prayer"
)

const PlaceHolderText = "Speak your prayer here..."

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")). // gold
			Bold(true)

	deityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	deniedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

type consoleLine struct {
	speaker string // "you", "deity", "denied", "error", "status"
	text    string
}

// ConsoleUI is the BubbleTea model that runs the prayer console.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config   *ConsoleConfig
	client   *apiClient
	eff      *deity.Effective
	viewport viewport.Model
	textarea textarea.Model
	lines    []consoleLine
	ready    bool
	width    int
	height   int
	loading  bool
	status   string
}

type prayerResponseMsg struct {
	response *prayer.Response
	err      error
}

func NewConsoleUI(cfg *ConsoleConfig, client *apiClient, eff *deity.Effective) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = statusStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	vp := viewport.New(50, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		config:   cfg,
		client:   client,
		eff:      eff,
		textarea: ta,
		viewport: vp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
	)
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 6
		m.viewport.Height = msg.Height - 8
		m.textarea.SetWidth(msg.Width - 6)
		m.ready = true
		m.writeContent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlY:
			if last := m.lastDeityLine(); last != "" {
				if err := clipboard.WriteAll(last); err != nil {
					m.status = "Copy failed: " + err.Error()
				} else {
					m.status = "Response copied to clipboard"
				}
				m.writeContent()
			}

		case tea.KeyEnter:
			text := strings.TrimSpace(m.textarea.Value())
			if text == "" || m.loading {
				break
			}
			m.textarea.Reset()
			m.status = ""
			m.lines = append(m.lines, consoleLine{speaker: "you", text: text})
			m.loading = true
			m.writeContent()
			return m, tea.Batch(taCmd, vpCmd, m.sendPrayer(text))
		}

	case prayerResponseMsg:
		m.loading = false
		switch {
		case msg.err != nil:
			m.lines = append(m.lines, consoleLine{speaker: "error", text: msg.err.Error()})
		case msg.response.Denied:
			m.lines = append(m.lines, consoleLine{speaker: "denied", text: msg.response.DisplayText})
		default:
			m.lines = append(m.lines, consoleLine{speaker: "deity", text: msg.response.DisplayText})
			if n := msg.response.ActionsDispatched; n > 0 {
				m.status = fmt.Sprintf("%d divine action(s) dispatched", n)
			}
		}
		m.writeContent()
	}

	return m, tea.Batch(taCmd, vpCmd)
}

func (m *ConsoleUI) sendPrayer(text string) tea.Cmd {
	req := prayer.Request{
		RequesterID: m.config.RequesterID,
		DeityID:     m.config.DeityID,
		PrayerType:  m.config.PrayerType,
		Message:     text,
	}
	return func() tea.Msg {
		resp, err := m.client.submitPrayer(req)
		return prayerResponseMsg{response: resp, err: err}
	}
}

func (m *ConsoleUI) lastDeityLine() string {
	for i := len(m.lines) - 1; i >= 0; i-- {
		if m.lines[i].speaker == "deity" {
			return m.lines[i].text
		}
	}
	return ""
}

func (m *ConsoleUI) writeContent() {
	wrapWidth := m.viewport.Width - 6
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("PANTHEON") + "\n\n")
	content.WriteString(fmt.Sprintf("Praying to %s (%s).\n", m.config.DeityID, m.config.PrayerType))
	content.WriteString(fmt.Sprintf("Cooldown %s, up to %d action(s) per answer.\n\n",
		m.eff.Cooldown, m.eff.MaxActions))
	content.WriteString(separatorStyle.Render(strings.Repeat("─", wrapWidth)) + "\n\n")

	for _, line := range m.lines {
		switch line.speaker {
		case "you":
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(line.text, wrapWidth) + "\n\n")
		case "deity":
			content.WriteString(speakerStyle.Render(m.config.DeityID+": ") +
				deityStyle.Render(wordwrap.String(line.text, wrapWidth)) + "\n\n")
		case "denied":
			content.WriteString(deniedStyle.Render(wordwrap.String(line.text, wrapWidth)) + "\n\n")
		case "error":
			content.WriteString(errorStyle.Render("Error: "+wordwrap.String(line.text, wrapWidth)) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(statusStyle.Render("The heavens consider your words...") + "\n")
	}
	if m.status != "" {
		content.WriteString(statusStyle.Render(m.status) + "\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Initializing..."
	}

	help := statusStyle.Render("Enter: pray │ Ctrl+Y: copy last answer │ Ctrl+C: quit")
	return chatPanelStyle.Render(m.viewport.View()) + "\n" +
		m.textarea.View() + "\n" + help
}
