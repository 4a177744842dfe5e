package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/conversations"
)

const (
	defaultWidth  = 80
	headerHeight  = 5
	footerHeight  = 2
	minViewHeight = 3
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	modelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	sourceStyle = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type connectionStateMsg orchestration.ConnectionState

type volumeMsg orchestration.VolumeLevel

type transcriptMsg []conversations.Message

type errorMsg struct{ err error }

type controller interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

type model struct {
	controller controller

	state      orchestration.ConnectionState
	volume     orchestration.VolumeLevel
	transcript []conversations.Message
	err        error

	spinner   spinner.Model
	inputBar  progress.Model
	outputBar progress.Model
	viewport  viewport.Model
	width     int
}

func newModel(controller controller) model {
	return model{
		controller: controller,
		state:      orchestration.StateDisconnected,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		inputBar:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		outputBar:  progress.New(progress.WithSolidFill("213"), progress.WithoutPercentage()),
		viewport:   viewport.New(defaultWidth, minViewHeight),
		width:      defaultWidth,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) connect() tea.Msg {
	if err := m.controller.Connect(context.Background()); err != nil {
		return errorMsg{err: err}
	}
	return nil
}

func (m model) disconnect() tea.Msg {
	if err := m.controller.Disconnect(); err != nil {
		return errorMsg{err: err}
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			if !m.state.IsActive() {
				return m, m.connect
			}
			return m, nil
		case "d":
			return m, m.disconnect
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.inputBar.Width = max(msg.Width-12, 10)
		m.outputBar.Width = m.inputBar.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, minViewHeight)
		m.refreshTranscript()
		return m, nil

	case connectionStateMsg:
		m.state = orchestration.ConnectionState(msg)
		if m.state == orchestration.StateConnecting {
			// A new session starts with an empty transcript.
			m.err = nil
			m.transcript = nil
			m.refreshTranscript()
			return m, m.spinner.Tick
		}
		return m, nil

	case volumeMsg:
		m.volume = orchestration.VolumeLevel(msg)
		return m, nil

	case transcriptMsg:
		m.transcript = append(m.transcript, msg...)
		m.refreshTranscript()
		return m, nil

	case errorMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.state != orchestration.StateConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) refreshTranscript() {
	m.viewport.SetContent(renderTranscript(m.transcript, m.width))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ema live"))
	b.WriteString("  ")
	b.WriteString(m.stateLine())
	b.WriteString("\n\n")
	b.WriteString("in   " + m.inputBar.ViewAs(m.volume.Input) + "\n")
	b.WriteString("out  " + m.outputBar.ViewAs(m.volume.Output) + "\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("c connect • d disconnect • q quit"))
	return b.String()
}

func (m model) stateLine() string {
	switch m.state {
	case orchestration.StateConnecting:
		return m.spinner.View() + stateStyle.Render(" Connecting")
	case orchestration.StateConnected:
		return stateStyle.Render("Connected, start speaking")
	case orchestration.StateError:
		return errorStyle.Render("Connection interrupted")
	default:
		if m.err != nil {
			return errorStyle.Render(m.err.Error())
		}
		return stateStyle.Render("Disconnected")
	}
}

func renderTranscript(messages []conversations.Message, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	for _, message := range messages {
		label := userStyle.Render("You")
		if message.Sender == conversations.SenderModel {
			label = modelStyle.Render("Yash")
		}
		b.WriteString(label + "\n")

		text := strings.TrimSpace(message.Text)
		if text == "" {
			text = sourceStyle.Render("(nothing heard)")
		}
		b.WriteString(wordwrap.String(text, width) + "\n")

		for _, source := range message.GroundingMetadata.Sources() {
			b.WriteString(sourceStyle.Render(wordwrap.String(fmt.Sprintf("  ↳ %s %s", source.Title, source.URI), width)) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
