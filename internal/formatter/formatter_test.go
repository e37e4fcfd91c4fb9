package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
	th "github.com/desertthunder/snipx/internal/testing"
)

func testSnippet() models.Snippet {
	return models.Snippet{
		ID:          7,
		Title:       "Fibonacci <fast>",
		Code:        "def fib(n):\n    return n if n < 2 else fib(n-1) + fib(n-2)\n",
		Language:    "python",
		Style:       "friendly",
		Owner:       "ada",
		Highlighted: `<div class="highlight"><pre><span class="k">def</span> fib(n)</pre></div><script>alert(1)</script>`,
		Created:     time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		input string
		want  Format
	}{
		{"", FormatText}, {"txt", FormatText}, {"TEXT", FormatText},
		{"md", FormatMarkdown}, {"markdown", FormatMarkdown},
		{"html", FormatHTML}, {"json", FormatJSON},
		{"yml", FormatYAML}, {" yaml ", FormatYAML},
	}
	for _, tt := range tc {
		got, err := ParseFormat(tt.input)
		if err != nil {
			t.Errorf("ParseFormat(%q) returned error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := ParseFormat("csv"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag for csv, got %v", err)
	}

	if FormatMarkdown.Extension() != "md" || FormatText.Extension() != "txt" {
		t.Errorf("unexpected extensions: %s %s", FormatMarkdown.Extension(), FormatText.Extension())
	}
}

func TestSanitize(t *testing.T) {
	t.Run("keeps highlight markup", func(t *testing.T) {
		out := Sanitize(testSnippet().Highlighted)
		if !strings.Contains(out, `<span class="k">def</span>`) {
			t.Errorf("highlight span was dropped: %s", out)
		}
		if !strings.Contains(out, `class="highlight"`) {
			t.Errorf("highlight class was dropped: %s", out)
		}
	})

	t.Run("removes executable content", func(t *testing.T) {
		out := Sanitize(`<span onclick="steal()">x</span><img src="javascript:alert(1)"><script>alert(1)</script>`)
		for _, bad := range []string{"onclick", "javascript:", "<script", "alert(1)"} {
			if strings.Contains(out, bad) {
				t.Errorf("sanitized output still contains %q: %s", bad, out)
			}
		}
	})

	t.Run("plain text", func(t *testing.T) {
		out := PlainText(`<pre><span class="k">if</span> a &lt; b &amp;&amp; c</pre><script>alert(1)</script>`)
		if out != "if a < b && c" {
			t.Errorf("PlainText = %q", out)
		}
	})
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("## Review\n\nLooks **fine**.\n\n<script>alert(1)</script>\n")
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if !strings.Contains(out, "<h2>Review</h2>") {
		t.Errorf("missing heading: %s", out)
	}
	if !strings.Contains(out, "<strong>fine</strong>") {
		t.Errorf("missing emphasis: %s", out)
	}
	if strings.Contains(out, "<script") {
		t.Errorf("raw html leaked through: %s", out)
	}
}

func TestRenderSnippet(t *testing.T) {
	s := testSnippet()

	t.Run("text", func(t *testing.T) {
		data, err := RenderSnippet(s, FormatText)
		if err != nil {
			t.Fatalf("RenderSnippet failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"Snippet: Fibonacci <fast>", "ID: 7", "Language: python", "Owner: ada", "Created: 2026-03-01 12:30", "def fib(n):"} {
			if !strings.Contains(output, want) {
				t.Errorf("text output missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("text with line numbers", func(t *testing.T) {
		withNos := s
		withNos.LineNos = true
		output := string(SnippetToText(withNos))
		if !strings.Contains(output, "1  def fib(n):") || !strings.Contains(output, "2      return") {
			t.Errorf("line numbers missing, got: %s", output)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		data, err := RenderSnippet(s, FormatMarkdown)
		if err != nil {
			t.Fatalf("RenderSnippet failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "# Fibonacci <fast>") {
			t.Errorf("markdown missing title")
		}
		if !strings.Contains(output, "```python\ndef fib(n):") {
			t.Errorf("markdown missing fenced code, got: %s", output)
		}
	})

	t.Run("markdown fence outgrows backticks in code", func(t *testing.T) {
		tricky := models.Snippet{Code: "s = ```not a fence```", Language: "python"}
		output := string(SnippetToMarkdown(tricky))
		if !strings.Contains(output, "````python\n") {
			t.Errorf("fence was not lengthened, got: %s", output)
		}
		if !strings.Contains(output, "# Untitled") {
			t.Errorf("untitled snippet should use the fallback title")
		}
	})

	t.Run("html", func(t *testing.T) {
		data, err := RenderSnippet(s, FormatHTML)
		if err != nil {
			t.Fatalf("RenderSnippet failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "<title>Fibonacci &lt;fast&gt;</title>") {
			t.Errorf("title not escaped, got: %s", output)
		}
		if !strings.Contains(output, `<span class="k">def</span>`) {
			t.Errorf("highlight missing")
		}
		if strings.Contains(output, "<script>") {
			t.Errorf("script survived sanitizing")
		}
	})

	t.Run("html without highlight", func(t *testing.T) {
		plain := models.Snippet{Code: "<b>x</b>"}
		data, err := SnippetToHTML(plain)
		if err != nil {
			t.Fatalf("SnippetToHTML failed: %v", err)
		}
		if !strings.Contains(string(data), "<pre>&lt;b&gt;x&lt;/b&gt;</pre>") {
			t.Errorf("code was not escaped, got: %s", data)
		}
	})

	t.Run("json omits secrets", func(t *testing.T) {
		withPassword := s
		withPassword.SharedPassword = "s3cret"
		data, err := RenderSnippet(withPassword, FormatJSON)
		if err != nil {
			t.Fatalf("RenderSnippet failed: %v", err)
		}
		var decoded models.Snippet
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if decoded.Title != s.Title || decoded.Code != s.Code {
			t.Errorf("decoded snippet differs: %+v", decoded)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := RenderSnippet(s, FormatYAML)
		if err != nil {
			t.Fatalf("RenderSnippet failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "title: Fibonacci <fast>") || !strings.Contains(output, "language: python") {
			t.Errorf("yaml missing fields, got: %s", output)
		}
		if strings.Contains(output, "highlight") {
			t.Errorf("yaml should not carry highlighted markup")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := RenderSnippet(s, Format("csv")); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestRenderView(t *testing.T) {
	v := models.SharedSnippetView{
		Title:             "fib",
		Language:          "python",
		HighlightedMarkup: `<pre><span class="k">def</span> fib(n) &lt;- 1</pre><img src=x onerror="alert(1)">`,
		Review:            "## Review of fib\n\nThe code looks **fine**.\n",
	}

	t.Run("text", func(t *testing.T) {
		data, err := RenderView(v, FormatText)
		if err != nil {
			t.Fatalf("RenderView failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "fib (python)") || !strings.Contains(output, "def fib(n) <- 1") {
			t.Errorf("text view wrong, got: %s", output)
		}
		if strings.Contains(output, "<span") || strings.Contains(output, "onerror") {
			t.Errorf("markup leaked into text view: %s", output)
		}
		if !strings.Contains(output, "Review of fib") {
			t.Errorf("review missing")
		}
	})

	t.Run("html", func(t *testing.T) {
		data, err := RenderView(v, FormatHTML)
		if err != nil {
			t.Fatalf("RenderView failed: %v", err)
		}
		output := string(data)
		if strings.Contains(output, "onerror") {
			t.Errorf("event handler survived: %s", output)
		}
		if !strings.Contains(output, `<section class="review"><h2>Review of fib</h2>`) {
			t.Errorf("review not rendered, got: %s", output)
		}
	})

	t.Run("json is sanitized", func(t *testing.T) {
		data, err := RenderView(v, FormatJSON)
		if err != nil {
			t.Fatalf("RenderView failed: %v", err)
		}
		if strings.Contains(string(data), "onerror") {
			t.Errorf("json carries unsanitized markup: %s", data)
		}
	})
}

func TestRenderIdentity(t *testing.T) {
	i := models.Identity{ID: 3, Username: "ada", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}

	data, err := RenderIdentity(i, FormatText)
	if err != nil {
		t.Fatalf("RenderIdentity failed: %v", err)
	}
	output := string(data)
	for _, want := range []string{"Username: ada", "ID: 3", "Name: Ada Lovelace", "Email: ada@example.com"} {
		if !strings.Contains(output, want) {
			t.Errorf("identity output missing %q, got: %s", want, output)
		}
	}

	data, err = RenderIdentity(models.Identity{ID: 4, Username: "bob"}, FormatText)
	if err != nil {
		t.Fatalf("RenderIdentity failed: %v", err)
	}
	if strings.Contains(string(data), "Name:") {
		t.Errorf("name line should be omitted when it equals the username")
	}

	data, err = RenderIdentity(i, FormatJSON)
	if err != nil {
		t.Fatalf("RenderIdentity failed: %v", err)
	}
	if !strings.Contains(string(data), `"username": "ada"`) {
		t.Errorf("json identity missing username: %s", data)
	}
}

func TestWriters(t *testing.T) {
	t.Run("Filename", func(t *testing.T) {
		if got := Filename(testSnippet(), FormatMarkdown); got != "7_fibonacci-fast.md" {
			t.Errorf("Filename = %q", got)
		}
		if got := Filename(models.Snippet{ID: 2, Title: "!!!"}, FormatJSON); got != "2_snippet.json" {
			t.Errorf("Filename = %q", got)
		}
	})

	t.Run("WriteSnippetExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")

		path, err := WriteSnippetExport(testSnippet(), dir, FormatMarkdown)
		if err != nil {
			t.Fatalf("WriteSnippetExport failed: %v", err)
		}
		if path != filepath.Join(dir, "7_fibonacci-fast.md") {
			t.Errorf("unexpected path %s", path)
		}
		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "# Fibonacci <fast>") {
			t.Errorf("exported file missing title")
		}
	})

	t.Run("WriteManifest", func(t *testing.T) {
		dir := t.TempDir()
		m := Manifest{
			ExportRecord: models.ExportRecord{ID: "run-1", Format: "json", OutputDir: dir, Total: 2, Succeeded: 1, Failed: 1},
			Snippets: []ManifestEntry{
				{ID: 1, Title: "a", File: "1_a.json"},
				{ID: 2, Title: "b", Error: "boom"},
			},
		}

		path, err := WriteManifest(m)
		if err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
		th.AssertFileExists(t, path)

		var decoded Manifest
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("manifest is not JSON: %v", err)
		}
		if decoded.ID != "run-1" || decoded.Failed != 1 || len(decoded.Snippets) != 2 {
			t.Errorf("manifest round trip lost data: %+v", decoded)
		}
	})
}
