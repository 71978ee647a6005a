// Package snapshot captures a page for post-mortem debugging: the raw HTML,
// the clickable elements as the automation saw them and a Markdown rendering
// of the body.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stripedl/internal/dom"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Snapshot is a captured page state.
type Snapshot struct {
	URL        string
	Reason     string
	TakenAt    time.Time
	HTML       string
	Clickables []dom.ElementInfo
}

// Capture reads the current state of page.
func Capture(ctx context.Context, page dom.Page, reason string, now time.Time) (*Snapshot, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get page url: %w", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get page html: %w", err)
	}
	clickables, err := page.Clickables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clickable elements: %w", err)
	}
	return &Snapshot{
		URL:        url,
		Reason:     reason,
		TakenAt:    now,
		HTML:       html,
		Clickables: clickables,
	}, nil
}

// BodyMarkdown renders the visible body content as Markdown. Scripts, styles
// and hidden subtrees are dropped first.
func (s *Snapshot) BodyMarkdown() (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript, template, [hidden]").Remove()

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to extract body: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

func (s *Snapshot) ToMarkdown() (string, error) {
	var sb strings.Builder
	sb.WriteString("# Page snapshot\n\n")
	sb.WriteString(fmt.Sprintf("- URL: %s\n", s.URL))
	sb.WriteString(fmt.Sprintf("- Taken: %s\n", s.TakenAt.Format(time.RFC3339)))
	if s.Reason != "" {
		sb.WriteString(fmt.Sprintf("- Reason: %s\n", s.Reason))
	}

	sb.WriteString(fmt.Sprintf("\n## Clickable elements (%d)\n\n", len(s.Clickables)))
	sb.WriteString("| # | Tag | Role | Visible | Class | Text |\n")
	sb.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for i, c := range s.Clickables {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %t | %s | %s |\n",
			i, c.Tag, c.Role, c.Visible, cell(c.Class), cell(c.Text)))
	}

	body, err := s.BodyMarkdown()
	if err != nil {
		return "", err
	}
	sb.WriteString("\n## Page content\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String(), nil
}

// Write stores <dir>/snapshot-<timestamp>.html and .md and returns both paths.
func (s *Snapshot) Write(dir string) (htmlPath, mdPath string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	base := filepath.Join(dir, "snapshot-"+s.TakenAt.Format("20060102_150405"))
	htmlPath = base + ".html"
	mdPath = base + ".md"

	if err := os.WriteFile(htmlPath, []byte(s.HTML), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write snapshot html: %w", err)
	}
	report, err := s.ToMarkdown()
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(mdPath, []byte(report), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write snapshot report: %w", err)
	}
	return htmlPath, mdPath, nil
}

// Save captures page and writes it to dir, returning the Markdown report
// path. The page is not read when dir is empty.
func Save(ctx context.Context, page dom.Page, dir, reason string, now time.Time) (string, error) {
	if dir == "" {
		return "", nil
	}
	s, err := Capture(ctx, page, reason, now)
	if err != nil {
		return "", err
	}
	_, mdPath, err := s.Write(dir)
	return mdPath, err
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
