// Package frontmatter splits markdown documents into a YAML metadata header
// and a body, and joins them back together.
package frontmatter

import (
	"log/slog"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// The header must start at byte 0. Trailing blanks on the delimiter lines are
// tolerated but line breaks are not, so a body starting with a newline keeps it.
var headerRe = regexp.MustCompile(`(?s)^---[ \t\r]*\n(.*?)\n---[ \t\r]*\n(.*)$`)

// Document is a markdown text split into its metadata header and body.
type Document struct {
	Metadata map[string]any
	Content  string
}

// Parse splits text into metadata and content. Text without a header that
// matches from the first byte is returned unchanged with empty metadata.
// A header that is not a valid YAML mapping degrades to empty metadata and the
// text after the closing delimiter; Parse never fails.
func Parse(text string) Document {
	m := headerRe.FindStringSubmatch(text)
	if m == nil {
		return Document{Metadata: map[string]any{}, Content: text}
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(m[1]), &meta); err != nil {
		slog.Warn("frontmatter: invalid YAML header",
			slog.String("error", err.Error()),
			slog.String("preview", preview(m[1], 200)))
		return Document{Metadata: map[string]any{}, Content: m[2]}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return Document{Metadata: meta, Content: m[2]}
}

// Serialize renders metadata as a YAML header followed by content. With no
// metadata the content is returned verbatim.
func Serialize(meta map[string]any, content string) string {
	if len(meta) == 0 {
		return content
	}
	out, err := yaml.Marshal(meta)
	if err != nil {
		// Values that cannot be represented in YAML are dropped with the header.
		slog.Warn("frontmatter: marshal header", slog.String("error", err.Error()))
		return content
	}
	var b strings.Builder
	b.Grow(len(out) + len(content) + 2*len(delim) + 2)
	b.WriteString(delim + "\n")
	b.Write(out)
	b.WriteString(delim + "\n")
	b.WriteString(content)
	return b.String()
}

// Title returns the metadata "title" if present, otherwise the first H1
// heading of body, otherwise an empty string.
func Title(meta map[string]any, body string) string {
	if s, ok := meta["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Tags returns the deduplicated string entries of the metadata "tags" list.
func Tags(meta map[string]any) []string {
	raw, ok := meta["tags"].([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
