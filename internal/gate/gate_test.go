package gate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/services"
	"github.com/desertthunder/snipx/internal/shared"
	tu "github.com/desertthunder/snipx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShareReference(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{name: "full url", input: "https://host/shared/abc123", want: "abc123", found: true},
		{name: "path fragment", input: "/shared/abc123", want: "abc123", found: true},
		{name: "bare id with garbage", input: "abc123 garbage", found: false},
		{name: "trailing segments", input: "https://host/app/shared/abc123/review/", want: "abc123", found: true},
		{name: "query and fragment", input: "https://host/shared/abc123?x=1#top", want: "abc123", found: true},
		{name: "path with query", input: "/shared/abc123?x=1", want: "abc123", found: true},
		{name: "no leading slash", input: "shared/abc123", want: "abc123", found: true},
		{name: "hash routing", input: "https://host/#/shared/abc123", want: "abc123", found: true},
		{name: "uuid", input: "http://localhost:5173/shared/0b7e7dba-1c5b-4d3c-9f38-2b5f2a6c3b11", want: "0b7e7dba-1c5b-4d3c-9f38-2b5f2a6c3b11", found: true},
		{name: "surrounding space", input: "  /shared/abc123\n", want: "abc123", found: true},
		{name: "empty", input: "", found: false},
		{name: "marker only", input: "https://host/shared/", found: false},
		{name: "no marker", input: "https://host/snippets/abc123", found: false},
		{name: "bare id", input: "abc123", found: false},
		{name: "space in id", input: "/shared/abc 123", found: false},
		{name: "bad escape", input: "/shared/%zz", found: false},
		{name: "escaped slash", input: "/shared/a%2Fb", found: false},
		{name: "unicode", input: "/shared/ünïcode", found: false},
		{name: "control characters", input: "/shared/\x00\x01", found: false},
		{name: "broken url", input: "http://[::1/shared/abc123", want: "abc123", found: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseShareReference(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)

			again, ok2 := ParseShareReference(tt.input)
			assert.Equal(t, got, again)
			assert.Equal(t, ok, ok2)
		})
	}
}

func TestResolveShareID(t *testing.T) {
	for input, want := range map[string]string{
		"https://host/shared/abc123":  "abc123",
		" 0b7e7dba-1c5b-4d3c-9f38 \n": "0b7e7dba-1c5b-4d3c-9f38",
		"abc123":                      "abc123",
	} {
		got, ok := ResolveShareID(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "abc 123", "https://host/snippets/abc", "a/b"} {
		_, ok := ResolveShareID(input)
		assert.False(t, ok, input)
	}
}

func TestShareLink(t *testing.T) {
	link := ShareLink("http://localhost:5173/", "abc123")
	assert.Equal(t, "http://localhost:5173/shared/abc123", link)

	id, ok := ParseShareReference(link)
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
}

func newBackendGate(t *testing.T) (*tu.Backend, *Gate) {
	t.Helper()
	backend := tu.NewBackend(t)

	cfg := shared.DefaultConfig().API
	cfg.BaseURL = backend.URL()
	client, err := services.NewClient(cfg, nil, nil)
	require.NoError(t, err)

	return backend, New(client.Snippets, nil)
}

func TestFetchSharedSnippet(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		backend, g := newBackendGate(t)
		s := backend.AddSnippet("ada", models.Snippet{Title: "fib", Code: "def fib(n): ...", Language: "python", SharedPassword: "s3cret"})

		view, err := g.FetchSharedSnippet(ctx, s.UUID, "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "fib", view.Title)
		assert.Equal(t, "python", view.Language)
		assert.Contains(t, view.HighlightedMarkup, "def fib(n): ...")
	})

	t.Run("Wrong Password And Unknown UUID Are Indistinguishable", func(t *testing.T) {
		backend, g := newBackendGate(t)
		s := backend.AddSnippet("ada", models.Snippet{Code: "x", SharedPassword: "s3cret"})

		_, wrongPassword := g.FetchSharedSnippet(ctx, s.UUID, "nope")
		_, unknown := g.FetchSharedSnippet(ctx, "00000000-0000-0000-0000-000000000000", "s3cret")
		_, empty := g.FetchSharedSnippet(ctx, s.UUID, "")

		require.Error(t, wrongPassword)
		require.Error(t, unknown)
		assert.Equal(t, wrongPassword.Error(), unknown.Error())
		assert.Equal(t, wrongPassword.Error(), empty.Error())
		assert.Equal(t, "invalid password or snippet not found", wrongPassword.Error())
		assert.Equal(t, 1, backend.Hits(http.MethodPost, "/snippets/shared/"+s.UUID+"/"), "empty password never reaches the server")
	})

	t.Run("Expired Share", func(t *testing.T) {
		backend, g := newBackendGate(t)
		backend.Fail(http.MethodPost, "/snippets/shared/gone/", http.StatusGone, map[string]string{"detail": "This share has expired."})

		_, err := g.FetchSharedSnippet(ctx, "gone", "pw")
		assert.ErrorIs(t, err, ErrInvalidShare)
	})

	t.Run("Server Failure Is Unavailable", func(t *testing.T) {
		backend, g := newBackendGate(t)
		backend.Fail(http.MethodPost, "/snippets/shared/abc/", http.StatusBadGateway, nil)

		_, err := g.FetchSharedSnippet(ctx, "abc", "pw")
		assert.ErrorIs(t, err, ErrShareUnavailable)
	})

	t.Run("Network Failure Is Unavailable", func(t *testing.T) {
		backend, g := newBackendGate(t)
		backend.Server.Close()

		_, err := g.FetchSharedSnippet(ctx, "abc", "pw")
		assert.ErrorIs(t, err, ErrShareUnavailable)
	})
}

func TestRequestReview(t *testing.T) {
	ctx := context.Background()
	backend, g := newBackendGate(t)
	s := backend.AddSnippet("ada", models.Snippet{Title: "fib", Code: "x", SharedPassword: "s3cret"})

	review, err := g.RequestReview(ctx, s.UUID, "s3cret")
	require.NoError(t, err)
	assert.Contains(t, review, "Review of fib")

	_, err = g.RequestReview(ctx, s.UUID, "nope")
	assert.ErrorIs(t, err, ErrReviewUnavailable)

	_, err = g.RequestReview(ctx, "", "s3cret")
	assert.ErrorIs(t, err, ErrReviewUnavailable)

	backend.Fail(http.MethodPost, "/snippets/shared/"+s.UUID+"/review/", http.StatusServiceUnavailable, nil)
	_, err = g.RequestReview(ctx, s.UUID, "s3cret")
	assert.ErrorIs(t, err, ErrReviewUnavailable)
}

// blockingFetcher counts calls and waits on release before answering.
type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (b *blockingFetcher) Shared(ctx context.Context, uuid, password string) (*models.SharedSnippetView, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return &models.SharedSnippetView{Title: uuid}, nil
}

func (b *blockingFetcher) SharedReview(ctx context.Context, uuid, password string) (string, error) {
	return "", errors.New("not used")
}

func (b *blockingFetcher) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestFetchCoalescing(t *testing.T) {
	fetcher := &blockingFetcher{release: make(chan struct{})}
	g := New(fetcher, nil)
	ctx := context.Background()

	views := make(chan *models.SharedSnippetView, 2)
	go func() { v, _ := g.FetchSharedSnippet(ctx, "abc", "pw"); views <- v }()
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, time.Second, time.Millisecond)
	go func() { v, _ := g.FetchSharedSnippet(ctx, "abc", "pw"); views <- v }()
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)

	first, second := <-views, <-views
	assert.Equal(t, 1, fetcher.count())
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second, "each caller gets its own copy")

	// A different password is a different request.
	_, err := g.FetchSharedSnippet(ctx, "abc", "other")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.count())
}

func TestReviewCoalescing(t *testing.T) {
	backend, g := newBackendGate(t)
	s := backend.AddSnippet("ada", models.Snippet{Title: "fib", Code: "x", SharedPassword: "s3cret"})
	path := "/snippets/shared/" + s.UUID + "/review/"
	release := backend.Hold(http.MethodPost, path)
	defer release()

	reviews := make(chan string, 2)
	for range 2 {
		go func() {
			review, _ := g.RequestReview(context.Background(), s.UUID, "s3cret")
			reviews <- review
		}()
	}

	require.Eventually(t, func() bool { return backend.Hits(http.MethodPost, path) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	release()

	first, second := <-reviews, <-reviews
	assert.Contains(t, first, "Review of fib")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Hits(http.MethodPost, path), "identical concurrent reviews share one request")
}
