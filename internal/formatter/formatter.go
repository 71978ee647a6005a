package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Content is anything the CLI can print.
type Content interface {
	ToText() (string, error)
	ToMarkdown() (string, error)
	ToJSON() ([]byte, error)
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "markdown", "json"}

func Format(content Content, format string) (string, error) {
	switch format {
	case "text":
		return content.ToText()
	case "markdown":
		return content.ToMarkdown()
	case "json":
		b, err := content.ToJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// Valid reports whether format is supported.
func Valid(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// InferFromExtension infers the output format from a file name, or "".
func InferFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".txt":
		return "text"
	default:
		return ""
	}
}

// Write prints content to stdout or, when path is set, to that file.
func Write(content Content, format, path string) error {
	out, err := Format(content, format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	if path == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Output written to: %s\n", path)
	return nil
}
