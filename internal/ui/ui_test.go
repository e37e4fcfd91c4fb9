package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/snipx/internal/gate"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccess struct {
	mu       sync.Mutex
	fetches  []string
	reviews  int
	password string
}

func (f *fakeAccess) FetchSharedSnippet(ctx context.Context, uuid, password string) (*models.SharedSnippetView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, uuid)
	if password != f.password {
		return nil, gate.ErrInvalidShare
	}
	return &models.SharedSnippetView{
		Title:             "snippet " + uuid,
		Language:          "python",
		HighlightedMarkup: `<pre><span class="k">print</span>(&quot;` + uuid + `&quot;)</pre>`,
	}, nil
}

func (f *fakeAccess) RequestReview(ctx context.Context, uuid, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews++
	if password != f.password {
		return "", gate.ErrReviewUnavailable
	}
	return "Looks fine.", nil
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and returns its message, which must be a response Msg.
func run(t *testing.T, cmd tea.Cmd) Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(Msg)
	require.True(t, ok, "expected a response message")
	return msg
}

func newTestModel(link string) (*Model, *fakeAccess) {
	access := &fakeAccess{password: "s3cret"}
	m := NewModel(context.Background(), access, nil, link)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, access
}

func TestModel(t *testing.T) {
	t.Run("prefilled link focuses password", func(t *testing.T) {
		m, _ := newTestModel("https://host/shared/abc")
		assert.True(t, m.password.Focused())
		assert.False(t, m.link.Focused())

		m, _ = newTestModel("")
		assert.True(t, m.link.Focused())
	})

	t.Run("unlock and review", func(t *testing.T) {
		m, access := newTestModel("https://host/shared/abc")
		m.password.SetValue("s3cret")

		_, cmd := m.Update(keyPress("enter"))
		assert.True(t, m.loading)
		assert.Contains(t, m.View(), "Unlocking...")

		m.Update(run(t, cmd))
		require.Equal(t, SnippetView, m.view)
		assert.Equal(t, []string{"abc"}, access.fetches)
		assert.Contains(t, m.View(), "snippet abc (python)")
		assert.Contains(t, m.viewport.View(), `print("abc")`)

		_, cmd = m.Update(keyPress("r"))
		assert.True(t, m.reviewing)
		_, again := m.Update(keyPress("r"))
		assert.Nil(t, again, "review already in flight")

		m.Update(run(t, cmd))
		assert.False(t, m.reviewing)
		assert.Equal(t, "Looks fine.", m.snippet.Review)
		assert.Contains(t, m.viewport.View(), "Looks fine.")
		assert.Equal(t, 1, access.reviews)

		_, cmd = m.Update(keyPress("r"))
		assert.Nil(t, cmd, "no second review once one is shown")
	})

	t.Run("wrong password", func(t *testing.T) {
		m, _ := newTestModel("abc")
		m.password.SetValue("nope")

		_, cmd := m.Update(keyPress("enter"))
		m.Update(run(t, cmd))

		assert.Equal(t, FormView, m.view)
		assert.Equal(t, gate.ErrInvalidShare.Error(), m.err)
		assert.Empty(t, m.password.Value(), "password is cleared after a rejection")
		assert.Empty(t, m.secret)
		assert.Contains(t, m.View(), "invalid password or snippet not found")
	})

	t.Run("validation happens before any request", func(t *testing.T) {
		m, access := newTestModel("not a link")
		m.password.SetValue("s3cret")

		m.Update(keyPress("enter"))
		assert.False(t, m.loading)
		assert.Equal(t, "That doesn't look like a share link.", m.err)
		assert.True(t, m.link.Focused())

		m.link.SetValue("abc")
		m.password.SetValue("")
		m.Update(keyPress("enter"))
		assert.Equal(t, "Enter the share password.", m.err)
		assert.Empty(t, access.fetches)
	})

	t.Run("stale responses are dropped", func(t *testing.T) {
		m, _ := newTestModel("https://host/shared/first")
		m.password.SetValue("s3cret")
		_, first := m.Update(keyPress("enter"))

		m.link.SetValue("https://host/shared/second")
		m.password.SetValue("s3cret")
		_, second := m.Update(keyPress("enter"))

		m.Update(run(t, second))
		require.Equal(t, "snippet second", m.snippet.Title)

		m.Update(run(t, first))
		assert.Equal(t, "snippet second", m.snippet.Title, "late response for an older request is ignored")
	})

	t.Run("closing discards the snippet and pending review", func(t *testing.T) {
		m, _ := newTestModel("abc")
		m.password.SetValue("s3cret")
		_, cmd := m.Update(keyPress("enter"))
		m.Update(run(t, cmd))

		_, review := m.Update(keyPress("r"))
		m.Update(keyPress("esc"))

		assert.Equal(t, FormView, m.view)
		assert.Nil(t, m.snippet)
		assert.Empty(t, m.secret)
		assert.Empty(t, m.password.Value())

		m.Update(run(t, review))
		assert.Nil(t, m.snippet)
		assert.Empty(t, m.err)
	})

	t.Run("esc cancels a pending unlock", func(t *testing.T) {
		m, _ := newTestModel("abc")
		m.password.SetValue("s3cret")
		_, cmd := m.Update(keyPress("enter"))

		_, quit := m.Update(keyPress("esc"))
		assert.Nil(t, quit)
		assert.False(t, m.loading)

		m.Update(run(t, cmd))
		assert.Equal(t, FormView, m.view)
	})

	t.Run("q types in the form and quits in the viewer", func(t *testing.T) {
		m, _ := newTestModel("")
		m.Update(keyPress("q"))
		assert.Equal(t, "q", m.link.Value())

		m.link.SetValue("abc")
		m.password.SetValue("s3cret")
		_, cmd := m.Update(keyPress("enter"))
		m.Update(run(t, cmd))

		_, cmd = m.Update(keyPress("q"))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("tab switches fields", func(t *testing.T) {
		m, _ := newTestModel("")
		m.Update(keyPress("tab"))
		assert.True(t, m.password.Focused())
		m.Update(keyPress("tab"))
		assert.True(t, m.link.Focused())
	})

	t.Run("password is masked", func(t *testing.T) {
		m, _ := newTestModel("abc")
		m.password.SetValue("s3cret")
		assert.False(t, strings.Contains(m.View(), "s3cret"))
	})
}
