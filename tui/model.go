package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the browser login countdown.
type tickMsg time.Time

// state is the session as this window sees it.
type state int

const (
	stateInit       state = iota
	stateSignedOut        // no session
	stateSigningIn        // password login in flight
	stateBrowser          // waiting for the external login callback
	stateRefreshing       // refresh in flight, requests queued
	stateSignedIn
	stateError // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

const maxStatusLines = 12

// Model is the BubbleTea model for a window's session view.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	title    string
	user     string
	degraded bool

	// External login
	loginURL     string
	loginExpires time.Time
	remaining    time.Duration

	// Last learning result
	resultOp   string
	resultText string

	errMsg string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleResultBox = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 1)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
		title:   "SpeakNative",
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state != stateBrowser {
			return m, nil
		}
		m.remaining = max(time.Until(m.loginExpires), 0)
		if m.remaining > 0 {
			return m, tickAfterSecond()
		}
		return m, nil

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── session messages ─────────────────────────────────────────────────────

	case MsgBanner:
		if msg.Title != "" {
			m.title = msg.Title
		}
		return m, nil

	case MsgSessionRestored:
		m.user = msg.User
		m.state = stateSignedIn
		m.addStatus(statusOK, "Session restored for "+msg.User)
		return m, nil

	case MsgSessionMissing:
		m.user = ""
		m.state = stateSignedOut
		m.addStatus(statusInfo, "Not signed in")
		return m, nil

	case MsgLoginStarted:
		m.state = stateSigningIn
		m.addStatus(statusInfo, "Signing in as "+msg.Email)
		return m, nil

	case MsgBrowserOpened:
		m.loginURL = msg.URL
		m.loginExpires = msg.Expires
		m.remaining = time.Until(msg.Expires)
		m.state = stateBrowser
		m.addStatus(statusInfo, "Browser opened for sign-in")
		return m, tickAfterSecond()

	case MsgSignedIn:
		m.user = msg.User
		m.loginURL = ""
		m.state = stateSignedIn
		m.addStatus(statusOK, "Signed in as "+msg.User)
		return m, nil

	case MsgLoginFailed:
		m.loginURL = ""
		m.state = stateSignedOut
		m.addStatus(statusWarn, fmt.Sprintf("Sign-in failed: %v", msg.Err))
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Session expired, refreshing...")
		return m, nil

	case MsgRefreshed:
		m.state = stateSignedIn
		m.addStatus(statusOK, "Session refreshed")
		return m, nil

	case MsgSessionEnded:
		m.user = ""
		m.state = stateSignedOut
		m.addStatus(statusWarn, fmt.Sprintf("Session ended: %v", msg.Err))
		return m, nil

	case MsgFocused:
		m.addStatus(statusInfo, "Focused")
		return m, nil

	case MsgHidden:
		m.addStatus(statusInfo, "Hidden")
		return m, nil

	case MsgDegraded:
		m.degraded = msg.Err != nil
		if m.degraded {
			m.addStatus(statusWarn, fmt.Sprintf("App shell unreachable: %v", msg.Err))
		} else {
			m.addStatus(statusOK, "Reconnected to the app shell")
		}
		return m, nil

	case MsgResult:
		m.resultOp = msg.Op
		m.resultText = msg.Text
		return m, nil

	case MsgAPICallFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Request failed: %v", msg.Err))
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	if m.state == stateError {
		return tea.NewView(m.viewError())
	}
	return tea.NewView(m.viewMain())
}

func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  " + m.title + "  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateSignedIn:
		b.WriteString(styleOK.Render("● "))
		b.WriteString(styleBold.Render(m.user))
		b.WriteString("\n")

	case stateSignedOut:
		b.WriteString(styleDim.Render("○ Not signed in"))
		b.WriteString("\n")

	case stateSigningIn:
		b.WriteString(m.spinner.View())
		b.WriteString(" Signing in...\n")

	case stateBrowser:
		b.WriteString(styleBold.Render("Continue in your browser:"))
		b.WriteString("\n")
		b.WriteString(m.loginURL)
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View())
		b.WriteString(" Waiting for sign-in...  ")
		if m.remaining > 0 {
			b.WriteString(styleDim.Render(formatDuration(m.remaining) + " remaining"))
		}
		b.WriteString("\n")

	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing session...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Loading session...\n")
	}

	if m.degraded {
		b.WriteString(styleWarn.Render("⚠ offline from app shell"))
		b.WriteString("\n")
	}

	if m.resultText != "" {
		b.WriteString("\n")
		b.WriteString(styleDim.Render(m.resultOp))
		b.WriteString("\n")
		b.WriteString(styleResultBox.Render(m.resultText))
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ " + m.title + " stopped"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log, keeping the newest lines.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
	if n := len(m.statusLines); n > maxStatusLines {
		m.statusLines = m.statusLines[n-maxStatusLines:]
	}
}

// tickAfterSecond returns a command that fires tickMsg after one second.
func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
