package report

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

// Renderer converts a Markdown feedback report into a self-contained,
// printable HTML document.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New()}
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: Georgia, 'Times New Roman', serif; max-width: 48em; margin: 2em auto; padding: 0 1em; color: #1a1a1a; line-height: 1.5; }
header { border-bottom: 2px solid #1a1a1a; margin-bottom: 1.5em; padding-bottom: 0.5em; }
header h1 { margin: 0; font-size: 1.6em; }
header p { margin: 0.2em 0 0; color: #555; }
h1, h2, h3 { page-break-after: avoid; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<header>
<h1>%s</h1>
<p>%s</p>
</header>
%s</body>
</html>
`

// RenderDocument converts the Markdown report body into a full HTML page
// with a title and subtitle header. The output is safe to hand to a
// browser or a print pipeline as-is.
func (r *Renderer) RenderDocument(markdown, title, subtitle string) ([]byte, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, errors.New("report body is empty")
	}

	var body bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	title = html.EscapeString(strings.TrimSpace(title))
	subtitle = html.EscapeString(strings.TrimSpace(subtitle))

	doc := fmt.Sprintf(documentTemplate, title, title, subtitle, body.String())

	return []byte(doc), nil
}
