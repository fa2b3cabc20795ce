package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/config"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/engine"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/errmsg"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/mpris"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/output"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/server"
)

var playerBarStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240"))

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("203"))

// seekStep is how far the arrow keys jump.
const seekStep = 30.0

// sleepSteps is the minutes-mode cycle bound to the m key.
var sleepSteps = []time.Duration{
	15 * time.Minute, 30 * time.Minute, 45 * time.Minute, 60 * time.Minute,
}

type tickMsg time.Time

type model struct {
	engine    *engine.Engine
	itemID    string
	sleepStep int
	width     int
}

func initialModel(itemID string) (model, *engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return model{}, nil, fmt.Errorf("%s", errmsg.Format(errmsg.OpConfigLoad, err))
	}
	if !cfg.HasServerConfig() {
		return model{}, nil, fmt.Errorf("no media server configured; set server.url and server.token in config.toml")
	}

	deviceID, err := config.DeviceID()
	if err != nil {
		return model{}, nil, fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}

	client := server.New(cfg.Server.URL, cfg.Server.Token)
	eng := engine.New(client, output.New(), engine.Config{
		Device: server.DeviceInfo{
			DeviceID:      deviceID,
			ClientName:    cfg.Playback.DeviceName,
			ClientVersion: version,
		},
		GuardWindow:    cfg.Playback.SleepGuardSeconds,
		FlushThreshold: cfg.Sync.FlushSeconds,
	}, feedOption(client, cfg)...)
	eng.SetRate(cfg.Playback.Rate)

	return model{engine: eng, itemID: itemID, sleepStep: -1}, eng, nil
}

// feedOption wires the remote progress feed when polling is enabled.
func feedOption(client *server.Client, cfg *config.Config) []engine.Option {
	if cfg.Sync.PollSeconds <= 0 {
		return nil
	}
	feed := server.NewFeed(client, time.Duration(cfg.Sync.PollSeconds*float64(time.Second)))
	return []engine.Option{engine.WithProgressFeed(feed.Updates())}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), tickCmd())
}

// loadCmd runs the blocking engine load off the UI loop.
func (m model) loadCmd() tea.Cmd {
	eng, itemID := m.engine, m.itemID
	return func() tea.Msg {
		eng.Load(context.Background(), itemID, nil)
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.engine.Destroy()
			return m, tea.Quit
		case " ":
			m.engine.Toggle()
		case "left", "h":
			m.engine.Seek(-seekStep)
		case "right", "l":
			m.engine.Seek(seekStep)
		case "n":
			m.engine.NextChapter()
		case "p":
			m.engine.PreviousChapter()
		case "+", "=":
			m.engine.SetRate(m.engine.Status().Rate + 0.1)
		case "-":
			m.engine.SetRate(m.engine.Status().Rate - 0.1)
		case "c":
			// End-of-chapter sleep; pressing again extends by a chapter.
			st := m.engine.Status()
			if st.SleepMode == engine.SleepChapters {
				m.engine.SetSleepChapters(st.SleepRemaining + 1)
			} else {
				m.engine.SetSleepChapters(1)
			}
		case "m":
			m.sleepStep++
			if m.sleepStep >= len(sleepSteps) {
				m.sleepStep = -1
				m.engine.ClearSleep()
			} else {
				m.engine.SetSleepMinutes(sleepSteps[m.sleepStep])
			}
		case "s":
			m.sleepStep = -1
			m.engine.ClearSleep()
		case "r":
			// Re-load clears a stall.
			if m.engine.Status().Err != nil {
				return m, m.loadCmd()
			}
		}

	case tickMsg:
		return m, tickCmd()
	}

	return m, nil
}

func (m model) View() string {
	st := m.engine.Status()
	innerWidth := m.width - 2
	if innerWidth < 10 {
		innerWidth = 78
	}

	var lines []string
	lines = append(lines, titleLine(st, innerWidth))
	lines = append(lines, positionLine(st, innerWidth))
	if st.Err != nil {
		lines = append(lines, errorStyle.Render(truncate(
			errmsg.Format(errmsg.OpPlaybackStart, st.Err)+"  (r to retry)", innerWidth)))
	}

	bar := playerBarStyle.Width(innerWidth).Render(strings.Join(lines, "\n"))
	help := " space play/pause  ←/→ ±30s  n/p chapter  +/- speed  c/m sleep  q quit"
	return bar + "\n" + lipgloss.NewStyle().Faint(true).Render(truncate(help, m.width))
}

func titleLine(st engine.Status, width int) string {
	glyph := stateGlyph(st)
	title := st.DisplayTitle
	if title == "" {
		title = "…"
	}
	left := fmt.Sprintf(" %s  %s", glyph, title)
	if st.DisplayAuthor != "" {
		left += " — " + st.DisplayAuthor
	}
	right := ""
	if st.CurrentChapter != "" {
		right = st.CurrentChapter + " "
	}
	return spread(left, right, width)
}

func positionLine(st engine.Status, width int) string {
	left := fmt.Sprintf("    %s / %s", formatClock(st.CurrentTime), formatClock(st.Duration))
	if st.Rate != 1.0 {
		left += fmt.Sprintf("  %.1fx", st.Rate)
	}
	right := sleepIndicator(st)
	if right != "" {
		right += " "
	}
	return spread(left, right, width)
}

func stateGlyph(st engine.Status) string {
	switch st.State {
	case engine.StatePlaying:
		return "▶"
	case engine.StatePaused, engine.StateReady:
		return "⏸"
	case engine.StateLoading, engine.StateSeeking:
		return "…"
	case engine.StateEnded:
		return "■"
	default:
		return " "
	}
}

func sleepIndicator(st engine.Status) string {
	switch st.SleepMode {
	case engine.SleepMinutes:
		left := time.Until(st.SleepDeadline)
		if left < 0 {
			left = 0
		}
		return fmt.Sprintf("☾ %dm", int(left.Minutes())+1)
	case engine.SleepChapters:
		if st.SleepRemaining == 1 {
			return "☾ end of chapter"
		}
		return fmt.Sprintf("☾ %d chapters", st.SleepRemaining)
	default:
		return ""
	}
}

// spread left-aligns left, right-aligns right, padding between.
func spread(left, right string, width int) string {
	pad := width - lipgloss.Width(left) - lipgloss.Width(right)
	if pad < 1 {
		return truncate(left+" "+right, width)
	}
	return left + strings.Repeat(" ", pad) + right
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width || width <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}

func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

const version = "0.1.0"

func main() {
	logrus.SetLevel(logrus.WarnLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: hark <item-id>")
		os.Exit(1)
	}

	m, eng, err := initialModel(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	adapter, err := mpris.New(eng)
	if err == nil {
		defer adapter.Close()
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	eng.Destroy()
}
