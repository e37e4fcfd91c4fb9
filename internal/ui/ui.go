package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/formatter"
	"github.com/desertthunder/snipx/internal/gate"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	FormView ViewState = iota
	SnippetView
)

// SharedAccess unlocks shared snippets. [*gate.Gate] implements it.
type SharedAccess interface {
	FetchSharedSnippet(ctx context.Context, uuid, password string) (*models.SharedSnippetView, error)
	RequestReview(ctx context.Context, uuid, password string) (string, error)
}

var _ SharedAccess = (*gate.Gate)(nil)

const (
	fieldLink = iota
	fieldPassword
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	access   SharedAccess
	logger   *log.Logger
	view     ViewState
	width    int
	height   int
	link     textinput.Model
	password textinput.Model
	focus    int
	viewport viewport.Model
	help     help.Model
	keys     keyMap

	gen       uint64
	loading   bool
	reviewing bool
	shareID   string
	secret    string
	snippet   *models.SharedSnippetView
	err       string
}

// NewModel creates a new TUI model. link pre-fills the link field.
func NewModel(ctx context.Context, access SharedAccess, logger *log.Logger, link string) *Model {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	li := textinput.New()
	li.Placeholder = "https://example.com/shared/<id>"
	li.Prompt = "Link:     "
	li.CharLimit = 512
	li.SetValue(link)

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.Prompt = "Password: "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 256

	m := &Model{
		ctx:      ctx,
		access:   access,
		logger:   shared.WithLogger(logger, "component", "tui"),
		view:     FormView,
		link:     li,
		password: pw,
		viewport: viewport.New(80, 20),
		help:     help.New(),
		keys:     newKeyMap(),
	}
	if link != "" {
		m.focus = fieldPassword
	}
	m.applyFocus()
	return m
}

// Init starts the cursor blinking.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-8, 5)
		m.link.Width = max(msg.Width-16, 20)
		if m.snippet != nil {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case FormView:
			return m.handleFormKeys(msg)
		case SnippetView:
			return m.handleSnippetKeys(msg)
		}

	case Msg:
		return m.handleResponse(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.exit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		if m.loading {
			m.cancelPending()
			return m, nil
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		m.focus = (m.focus + 1) % 2
		return m, m.applyFocus()
	case key.Matches(msg, m.keys.submit):
		return m, m.submit()
	}
	return m.updateInputs(msg)
}

func (m *Model) handleSnippetKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.close()
		return m, m.applyFocus()
	case key.Matches(msg, m.keys.review):
		return m, m.requestReview()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != FormView {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var linkCmd, pwCmd tea.Cmd
	m.link, linkCmd = m.link.Update(msg)
	m.password, pwCmd = m.password.Update(msg)
	return m, tea.Batch(linkCmd, pwCmd)
}

func (m *Model) applyFocus() tea.Cmd {
	if m.focus == fieldLink {
		m.password.Blur()
		return m.link.Focus()
	}
	m.link.Blur()
	return m.password.Focus()
}

// cancelPending bumps the generation so any in-flight response is ignored.
func (m *Model) cancelPending() {
	m.gen++
	m.loading = false
	m.reviewing = false
}

// close discards the unlocked snippet and its password and returns to the form.
func (m *Model) close() {
	m.cancelPending()
	m.snippet = nil
	m.shareID = ""
	m.secret = ""
	m.err = ""
	m.password.SetValue("")
	m.viewport.SetContent("")
	m.view = FormView
	m.focus = fieldPassword
}

func (m *Model) submit() tea.Cmd {
	id, ok := gate.ResolveShareID(m.link.Value())
	if !ok {
		m.err = "That doesn't look like a share link."
		m.focus = fieldLink
		return m.applyFocus()
	}
	if m.password.Value() == "" {
		m.err = "Enter the share password."
		m.focus = fieldPassword
		return m.applyFocus()
	}

	m.cancelPending()
	m.loading = true
	m.err = ""
	m.shareID = id
	m.secret = m.password.Value()

	gen, access, ctx, password := m.gen, m.access, m.ctx, m.secret
	m.logger.Debug("fetching shared snippet", "gen", gen, "id", id)
	return func() tea.Msg {
		view, err := access.FetchSharedSnippet(ctx, id, password)
		return shareFetchedMsg(gen, view, err)
	}
}

func (m *Model) requestReview() tea.Cmd {
	if m.reviewing || m.snippet == nil || m.snippet.Review != "" {
		return nil
	}
	m.reviewing = true
	m.err = ""
	m.viewport.SetContent(m.renderContent())

	gen, access, ctx, id, password := m.gen, m.access, m.ctx, m.shareID, m.secret
	m.logger.Debug("requesting review", "gen", gen, "id", id)
	return func() tea.Msg {
		review, err := access.RequestReview(ctx, id, password)
		return reviewReceivedMsg(gen, review, err)
	}
}

func (m *Model) handleResponse(msg Msg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		m.logger.Debug("dropping stale response", "gen", msg.gen, "current", m.gen)
		return m, nil
	}

	switch msg.kind {
	case MsgShareFetched:
		data := msg.data.(shareFetched)
		m.loading = false
		if data.err != nil {
			m.err = data.err.Error()
			m.secret = ""
			m.password.SetValue("")
			m.focus = fieldPassword
			return m, m.applyFocus()
		}
		m.snippet = data.view
		m.view = SnippetView
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case MsgReviewReceived:
		data := msg.data.(reviewReceived)
		m.reviewing = false
		if data.err != nil {
			m.err = data.err.Error()
		} else if m.snippet != nil {
			m.snippet.Review = data.review
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SnippetView:
		return m.renderSnippet()
	default:
		return m.renderForm()
	}
}

func (m *Model) renderForm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Open a shared snippet"))
	b.WriteString("\n")
	b.WriteString(m.link.View() + "\n")
	b.WriteString(m.password.View() + "\n\n")

	switch {
	case m.loading:
		b.WriteString(styles.warn.Render("Unlocking...") + "\n\n")
	case m.err != "":
		b.WriteString(styles.err.Render(m.err) + "\n\n")
	}

	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.next, m.keys.submit, m.keys.back, m.keys.exit}))
	return b.String()
}

func (m *Model) renderSnippet() string {
	title := styles.title.Render(fmt.Sprintf("%s (%s)", snippetTitle(m.snippet), m.snippet.Language))

	status := ""
	switch {
	case m.reviewing:
		status = styles.warn.Render("Requesting review...")
	case m.err != "":
		status = styles.err.Render(m.err)
	}

	keys := []key.Binding{m.keys.up, m.keys.down, m.keys.back, m.keys.quit}
	if m.snippet.Review == "" {
		keys = append([]key.Binding{m.keys.review}, keys...)
	}
	scroll := styles.help.Render(fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100))

	return fmt.Sprintf("%s\n%s\n%s %s\n%s", title, styles.frame.Render(m.viewport.View()), scroll, status, m.help.ShortHelpView(keys))
}

func (m *Model) renderContent() string {
	if m.snippet == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(formatter.PlainText(m.snippet.HighlightedMarkup), "\n"))
	b.WriteString("\n")

	if m.snippet.Review != "" {
		b.WriteString("\n" + styles.ok.Render("Review") + "\n\n")
		b.WriteString(strings.TrimRight(m.snippet.Review, "\n") + "\n")
	}

	if m.viewport.Width > 0 {
		return lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String())
	}
	return b.String()
}

func snippetTitle(v *models.SharedSnippetView) string {
	if v.Title == "" {
		return "Untitled"
	}
	return v.Title
}
