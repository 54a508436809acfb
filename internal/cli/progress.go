package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/project-dream/dreamaudio/internal/core/downloader"
	"github.com/project-dream/dreamaudio/internal/core/playback"
)

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	pauseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// tickMsg triggers UI updates
type tickMsg time.Time

// fetchModel shows a playing fetch and lets the user pause or cancel it
type fetchModel struct {
	ctx      context.Context
	player   *playback.Player
	sink     *fileSink
	progress progress.Model
	spinner  spinner.Model

	title     string
	kind      string
	start     time.Time
	cancelled bool
}

func newFetchModel(ctx context.Context, player *playback.Player, sink *fileSink, title, kind string) fetchModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return fetchModel{
		ctx:      ctx,
		player:   player,
		sink:     sink,
		progress: p,
		spinner:  s,
		title:    title,
		kind:     kind,
		start:    time.Now(),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m fetchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m fetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		case " ", "p":
			// errors here only mean playback already ended
			if m.player.State() == playback.StatePaused {
				_ = m.player.Play(m.ctx)
			} else {
				_ = m.player.Pause()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		switch m.player.State() {
		case playback.StateFinished, playback.StateFailed, playback.StateIdle:
			return m, tea.Quit
		}

		cmds := []tea.Cmd{tickCmd()}
		if total := m.sink.total.Load(); total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(m.sink.written.Load())/float64(total)))
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m fetchModel) View() string {
	written, total := m.sink.written.Load(), m.sink.total.Load()

	var s string
	s += "\n"

	status := m.spinner.View()
	if m.player.State() == playback.StatePaused {
		status = pauseStyle.Render("||")
	}
	s += fmt.Sprintf("  %s %s %s\n\n", status, infoStyle.Render(m.title), helpStyle.Render("("+m.kind+")"))
	s += fmt.Sprintf("  %s\n\n", m.progress.View())

	speed := float64(written) / max(time.Since(m.start).Seconds(), 0.001)
	if total > 0 {
		s += fmt.Sprintf("  %.1f%%  |  %s/%s  |  %s/s\n",
			float64(written)*100/float64(total),
			downloader.FormatBytes(written),
			downloader.FormatBytes(total),
			downloader.FormatBytes(int64(speed)),
		)
	} else {
		s += fmt.Sprintf("  %s  |  %s/s\n", downloader.FormatBytes(written), downloader.FormatBytes(int64(speed)))
	}

	s += "\n"
	s += helpStyle.Render("  space to pause, q to cancel")
	s += "\n"
	return s
}
