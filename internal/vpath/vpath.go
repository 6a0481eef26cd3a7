// Package vpath normalizes and decomposes logical storage paths.
//
// A logical path always starts with "/", never ends with "/" (except the root
// itself) and never contains empty segments.
package vpath

import "strings"

// Root is the logical root folder.
const Root = "/"

// Normalize ensures a leading slash, collapses repeated slashes and strips a
// trailing slash unless the result is the root.
func Normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p != Root && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Parent returns the parent folder of p. The parent of the root is the root.
func Parent(p string) string {
	p = Normalize(p)
	if p == Root {
		return Root
	}
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return Root
	}
	return p[:i]
}

// Base returns the leaf name of p, or "/" for the root.
func Base(p string) string {
	p = Normalize(p)
	if p == Root {
		return Root
	}
	return p[strings.LastIndex(p, "/")+1:]
}

// Join appends name to dir.
func Join(dir, name string) string {
	return Normalize(strings.TrimSuffix(dir, "/") + "/" + name)
}

// Ancestors returns the breadcrumb trail of p: the root first, then every
// intermediate folder and, when includeSelf is set, p itself.
// An empty path yields nothing; the root yields ["/"] only with includeSelf.
func Ancestors(p string, includeSelf bool) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if p == Root && includeSelf {
			return []string{Root}
		}
		return nil
	}
	n := len(parts) - 1
	if includeSelf {
		n = len(parts)
	}
	out := make([]string, 0, n+1)
	out = append(out, Root)
	for i := 1; i <= n; i++ {
		out = append(out, "/"+strings.Join(parts[:i], "/"))
	}
	return out
}

// IsWithin reports whether p equals root or lies below it.
func IsWithin(p, root string) bool {
	p, root = Normalize(p), Normalize(root)
	if root == Root || p == root {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// Rebase replaces the oldPrefix of p with newPrefix, keeping the relative
// suffix. Paths outside oldPrefix are returned unchanged.
func Rebase(p, oldPrefix, newPrefix string) string {
	p, oldPrefix, newPrefix = Normalize(p), Normalize(oldPrefix), Normalize(newPrefix)
	if !IsWithin(p, oldPrefix) {
		return p
	}
	rel := strings.TrimPrefix(p, oldPrefix)
	if oldPrefix == Root {
		rel = p
	}
	return Normalize(newPrefix + "/" + strings.TrimPrefix(rel, "/"))
}

// IsMarkdown reports whether the leaf of p carries a markdown extension and
// therefore participates in front-matter splitting.
func IsMarkdown(p string) bool {
	return strings.HasSuffix(p, ".md") || strings.HasSuffix(p, ".markdown")
}
