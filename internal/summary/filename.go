package summary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/mdchat/internal/vpath"
)

const maxSlugLen = 100

var (
	spaceRe   = regexp.MustCompile(`[\s\p{Z}\x{85}_]+`)
	invalidRe = regexp.MustCompile(`[^a-z0-9-]`)
	dashesRe  = regexp.MustCompile(`-+`)
	leadNumRe = regexp.MustCompile(`^\d+`)
)

// Slug turns title into a lowercase file-name fragment of at most 100
// characters, or "untitled" when nothing usable remains.
func Slug(title string) string {
	s := strings.ToLower(title)
	s = spaceRe.ReplaceAllString(s, "-")
	s = invalidRe.ReplaceAllString(s, "")
	s = dashesRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return s
}

// GenerateFileName returns "NNN-slug" with n padded to three digits.
func GenerateFileName(n int, title string) string {
	return fmt.Sprintf("%03d-%s", n, Slug(title))
}

// ChangeFileName renames the leaf of p after title, keeping the leaf's
// leading number and its .md extension. An empty title leaves p unchanged.
func ChangeFileName(p, title string) string {
	if title == "" || p == vpath.Root {
		return p
	}
	leaf := vpath.Base(p)
	n := 0
	if v, err := strconv.Atoi(leadNumRe.FindString(leaf)); err == nil {
		n = v
	}
	name := GenerateFileName(n, title)
	if strings.HasSuffix(leaf, ".md") {
		name += ".md"
	}
	return vpath.Join(vpath.Parent(p), name)
}
