// package formatter renders snippets, shared views and identities to the output formats (text, Markdown, HTML, JSON, YAML)
package formatter

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Format is an output format name as accepted by the --format flags.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

var formats = []Format{FormatText, FormatMarkdown, FormatHTML, FormatJSON, FormatYAML}

// ParseFormat accepts a format name or one of its common aliases ("txt", "md").
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "txt", "plain":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	case "htm":
		return FormatHTML, nil
	case "yml":
		return FormatYAML, nil
	default:
		for _, known := range formats {
			if f == known {
				return f, nil
			}
		}
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Extension returns the file extension, without the dot, used when writing f to disk.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatHTML:
		return "html"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

var (
	// markupPolicy keeps the highlighter's structure and class names and nothing executable.
	markupPolicy = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Globally()
		p.AllowElements("span", "div", "pre", "code")
		return p
	}()
	stripPolicy = bluemonday.StrictPolicy()
)

// Sanitize removes scripts, event handlers and anything else not needed to display highlighted code.
func Sanitize(markup string) string {
	return markupPolicy.Sanitize(markup)
}

// PlainText strips all markup and unescapes entities, for terminal display.
func PlainText(markup string) string {
	return html.UnescapeString(stripPolicy.Sanitize(markup))
}

// RenderMarkdown converts review markdown to sanitized HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return markupPolicy.Sanitize(buf.String()), nil
}

// SnippetToText renders a snippet as a plain text block
func SnippetToText(s models.Snippet) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Snippet: %s\n", s.DisplayTitle()))
	buf.WriteString(fmt.Sprintf("ID: %d\n", s.ID))
	buf.WriteString(fmt.Sprintf("Language: %s\n", s.Language))
	if s.Owner != "" {
		buf.WriteString(fmt.Sprintf("Owner: %s\n", s.Owner))
	}
	if !s.Created.IsZero() {
		buf.WriteString(fmt.Sprintf("Created: %s\n", s.Created.Format("2006-01-02 15:04")))
	}
	buf.WriteString("\n")
	buf.WriteString(withLineNumbers(s.Code, s.LineNos))
	if !strings.HasSuffix(s.Code, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// SnippetToMarkdown renders a snippet as a Markdown document with a fenced code block
func SnippetToMarkdown(s models.Snippet) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", s.DisplayTitle()))
	buf.WriteString(fmt.Sprintf("**Language**: %s\n", s.Language))
	if s.Owner != "" {
		buf.WriteString(fmt.Sprintf("**Owner**: %s\n", s.Owner))
	}
	if !s.Created.IsZero() {
		buf.WriteString(fmt.Sprintf("**Created**: %s\n", s.Created.Format("2006-01-02")))
	}

	fence := codeFence(s.Code)
	buf.WriteString(fmt.Sprintf("\n%s%s\n", fence, s.Language))
	buf.WriteString(s.Code)
	if !strings.HasSuffix(s.Code, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(fence + "\n")
	return buf.Bytes()
}

var backticks = regexp.MustCompile("`+")

// codeFence returns a backtick fence longer than any run of backticks in code.
func codeFence(code string) string {
	longest := 0
	for _, run := range backticks.FindAllString(code, -1) {
		longest = max(longest, len(run))
	}
	return strings.Repeat("`", max(3, longest+1))
}

func withLineNumbers(code string, enabled bool) string {
	if !enabled {
		return code
	}
	lines := strings.Split(strings.TrimSuffix(code, "\n"), "\n")
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		b.WriteString(fmt.Sprintf("%*d  %s\n", width, i+1, line))
	}
	return b.String()
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Language}}<p class="language">{{.Language}}</p>{{end}}
<main class="snippet">{{.Markup}}</main>
{{if .Review}}<section class="review">{{.Review}}</section>{{else if .ReviewAction}}<form method="post" action="{{.ReviewAction}}"><button type="submit">Request review</button></form>{{end}}
</body>
</html>
`))

type page struct {
	Title        string
	Language     string
	Markup       template.HTML
	Review       template.HTML
	ReviewAction string
}

func renderPage(title, language, markup, review, action string) ([]byte, error) {
	p := page{Title: title, Language: language, Markup: template.HTML(Sanitize(markup)), ReviewAction: action}
	if review != "" {
		rendered, err := RenderMarkdown(review)
		if err != nil {
			return nil, err
		}
		p.Review = template.HTML(rendered)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

// SnippetToHTML renders a standalone page around the snippet's sanitized highlight.
//
// Snippets without a server highlight fall back to an escaped <pre> block.
func SnippetToHTML(s models.Snippet) ([]byte, error) {
	markup := s.Highlighted
	if markup == "" {
		markup = "<pre>" + html.EscapeString(s.Code) + "</pre>"
	}
	return renderPage(s.DisplayTitle(), s.Language, markup, "", "")
}

// ViewToHTML renders a shared snippet view, including its review when present.
func ViewToHTML(v models.SharedSnippetView) ([]byte, error) {
	return renderPage(viewTitle(v), v.Language, v.HighlightedMarkup, v.Review, "")
}

// PreviewPage is [ViewToHTML] with a button posting to reviewAction while the view has no review.
func PreviewPage(v models.SharedSnippetView, reviewAction string) ([]byte, error) {
	return renderPage(viewTitle(v), v.Language, v.HighlightedMarkup, v.Review, reviewAction)
}

func viewTitle(v models.SharedSnippetView) string {
	if v.Title == "" {
		return "Untitled"
	}
	return v.Title
}

// RenderSnippet renders s in the given format.
func RenderSnippet(s models.Snippet, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return SnippetToText(s), nil
	case FormatMarkdown:
		return SnippetToMarkdown(s), nil
	case FormatHTML:
		return SnippetToHTML(s)
	case FormatJSON:
		return shared.MarshalJSON(s, true)
	case FormatYAML:
		return shared.MarshalYAML(s)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

// RenderView renders a shared snippet view in the given format. Text output is stripped of all markup.
func RenderView(v models.SharedSnippetView, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("%s (%s)\n\n", viewTitle(v), v.Language))
		buf.WriteString(strings.TrimRight(PlainText(v.HighlightedMarkup), "\n") + "\n")
		if v.Review != "" {
			buf.WriteString("\nReview\n\n" + strings.TrimRight(v.Review, "\n") + "\n")
		}
		return buf.Bytes(), nil
	case FormatMarkdown:
		var buf bytes.Buffer
		code := PlainText(v.HighlightedMarkup)
		fence := codeFence(code)
		buf.WriteString(fmt.Sprintf("# %s\n\n%s%s\n%s\n%s\n", viewTitle(v), fence, v.Language, strings.TrimRight(code, "\n"), fence))
		if v.Review != "" {
			buf.WriteString("\n## Review\n\n" + v.Review)
		}
		return buf.Bytes(), nil
	case FormatHTML:
		return ViewToHTML(v)
	case FormatJSON:
		v.HighlightedMarkup = Sanitize(v.HighlightedMarkup)
		return shared.MarshalJSON(v, true)
	case FormatYAML:
		return shared.MarshalYAML(v)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

// RenderIdentity renders the signed-in user for the status and profile commands.
func RenderIdentity(i models.Identity, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return shared.MarshalJSON(i, true)
	case FormatYAML:
		return shared.MarshalYAML(i)
	case FormatMarkdown:
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("# %s\n\n", i.DisplayName()))
		buf.WriteString(fmt.Sprintf("- **Username**: %s\n- **ID**: %d\n", i.Username, i.ID))
		if i.Email != "" {
			buf.WriteString(fmt.Sprintf("- **Email**: %s\n", i.Email))
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("Username: %s\nID: %d\n", i.Username, i.ID))
		if name := i.DisplayName(); name != i.Username {
			buf.WriteString(fmt.Sprintf("Name: %s\n", name))
		}
		if i.Email != "" {
			buf.WriteString(fmt.Sprintf("Email: %s\n", i.Email))
		}
		return buf.Bytes(), nil
	}
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

// Filename builds the export filename for a snippet: {id}_{slug}.{ext}
func Filename(s models.Snippet, f Format) string {
	slug := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(s.DisplayTitle()), "-"), "-")
	if slug == "" {
		slug = "snippet"
	}
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	return fmt.Sprintf("%d_%s.%s", s.ID, slug, f.Extension())
}

// WriteSnippetExport writes one snippet into dir and returns the file path.
func WriteSnippetExport(s models.Snippet, dir string, f Format) (string, error) {
	data, err := RenderSnippet(s, f)
	if err != nil {
		return "", fmt.Errorf("failed to render snippet %d: %w", s.ID, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, Filename(s, f))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snippet file: %w", err)
	}
	return path, nil
}

// ManifestEntry describes one exported snippet.
type ManifestEntry struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	File  string `json:"file,omitempty"`
	Error string `json:"error,omitempty"`
}

// Manifest is written next to the exported files as manifest.json.
type Manifest struct {
	models.ExportRecord
	Snippets []ManifestEntry `json:"snippets"`
}

// WriteManifest writes manifest.json into the export directory and returns its path.
func WriteManifest(m Manifest) (string, error) {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return "", fmt.Errorf("failed to generate manifest: %w", err)
	}

	if err := os.MkdirAll(m.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(m.OutputDir, "manifest.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest file: %w", err)
	}
	return path, nil
}
