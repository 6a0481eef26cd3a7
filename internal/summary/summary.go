// Package summary builds the index document of a folder from its children
// and writes it back as the folder's content.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/mdchat/internal/apperr"
	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/storage"
	"github.com/starford/mdchat/internal/transcript"
	"github.com/starford/mdchat/internal/vpath"
)

// A fenced block opens with three or more backticks or tildes and closes
// with the same run on its own line.
var fenceRe = regexp.MustCompile("(?:^|\n)(```+|~~~+)[^\n]*\n")

// CountCodeBlocks counts the fenced code blocks in markdown.
func CountCodeBlocks(markdown string) int {
	count := 0
	for rest := markdown; ; {
		loc := fenceRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			return count
		}
		fence := rest[loc[2]:loc[3]]
		body := rest[loc[1]:]
		end := closingFence(body, fence)
		if end < 0 {
			// Unclosed fences do not count; look for a later opener.
			rest = rest[loc[3]:]
			continue
		}
		count++
		rest = body[end:]
	}
}

// closingFence returns the offset just past the line that closes fence in
// body, or -1. The closing line must be exactly the fence.
func closingFence(body, fence string) int {
	off := 0
	for {
		i := strings.Index(body[off:], "\n"+fence)
		if i < 0 {
			return -1
		}
		start := off + i + 1
		end := start + len(fence)
		if end == len(body) {
			return end
		}
		if body[end] == '\n' {
			// Leave the newline so it can open the next block.
			return end
		}
		off = start
	}
}

// Digest describes a conversation in one line: "N questions", followed by
// "; M code blocks" when the assistant wrote any.
func Digest(content string) string {
	questions, blocks := 0, 0
	for _, m := range transcript.Decode(content) {
		switch m.Role {
		case transcript.RoleUser:
			questions++
		case transcript.RoleAssistant:
			for _, p := range m.Parts {
				if p.Type == transcript.PartText {
					blocks += CountCodeBlocks(p.Text)
				}
			}
		}
	}
	out := plural(questions, "question")
	if blocks > 0 {
		out += "; " + plural(blocks, "code block")
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// relative returns child relative to folder, without a leading slash.
func relative(folder, child string) string {
	if folder == vpath.Root {
		return strings.TrimPrefix(child, "/")
	}
	return strings.TrimPrefix(child, folder+"/")
}

// FolderSummary renders the index document of folder. A missing folder
// yields "" and a file yields ErrNotAFolder.
func FolderSummary(ctx context.Context, b storage.Backend, folder string) (string, error) {
	folder = vpath.Normalize(folder)
	node, err := b.GetNode(ctx, folder)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", nil
	}
	if !node.IsFolder() {
		return "", fmt.Errorf("summary: %s: %w", folder, apperr.ErrNotAFolder)
	}
	children, err := b.ListNodes(ctx, folder)
	if err != nil {
		return "", err
	}

	lines := []string{"# " + models.DisplayName(node), "", "## Table of content", ""}
	var folders []*models.Node
	for _, c := range children {
		if c.IsFolder() {
			folders = append(folders, c)
			continue
		}
		lines = append(lines, fmt.Sprintf("1. [%s](./%s)", models.DisplayName(c), relative(folder, c.Name)))
		if !vpath.IsMarkdown(c.Name) {
			continue
		}
		content, err := b.ReadContent(ctx, c.Name)
		if err != nil {
			return "", err
		}
		if d := Digest(content); d != "" {
			lines = append(lines, "   > "+d)
		}
	}
	lines = append(lines, "---")
	for _, c := range folders {
		lines = append(lines, fmt.Sprintf("1. [%s](./%s/)", models.DisplayName(c), relative(folder, c.Name)))
	}
	return strings.Join(lines, "\n"), nil
}

// Options controls Update.
type Options struct {
	// Recursive also refreshes every subfolder, depth first.
	Recursive bool
	// Rename renames children after their title metadata before summarizing.
	// Only honored together with Recursive.
	Rename bool
	Logger *slog.Logger
}

// Update refreshes the summary of the folder at p, or of p's parent folder
// when p is a file. A missing p is a no-op.
func Update(ctx context.Context, b storage.Backend, p string, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	node, err := b.GetNode(ctx, p)
	if err != nil || node == nil {
		return err
	}
	return update(ctx, b, node, opts)
}

func update(ctx context.Context, b storage.Backend, node *models.Node, opts Options) error {
	folder := node.Name
	if !node.IsFolder() {
		folder = vpath.Parent(node.Name)
	}

	if opts.Recursive {
		children, err := b.ListNodes(ctx, folder)
		if err != nil {
			return err
		}
		for _, c := range children {
			if opts.Rename {
				c = renameAfterTitle(ctx, b, c, opts.Logger)
			}
			if c.IsFolder() {
				if err := update(ctx, b, c, opts); err != nil {
					return err
				}
			}
		}
	}

	doc, err := FolderSummary(ctx, b, folder)
	if err != nil {
		return err
	}
	if doc == "" {
		return nil
	}
	if err := b.WriteContent(ctx, folder, doc); err != nil {
		return fmt.Errorf("summary: write %s: %w", folder, err)
	}
	opts.Logger.Debug("folder summary updated", slog.String("path", folder))
	return nil
}

// renameAfterTitle moves n to the name derived from its title. Failures are
// logged and n is returned unchanged.
func renameAfterTitle(ctx context.Context, b storage.Backend, n *models.Node, logger *slog.Logger) *models.Node {
	title, _ := n.Metadata["title"].(string)
	if title == "" {
		return n
	}
	target := ChangeFileName(n.Name, title)
	if target == n.Name {
		return n
	}
	moved, err := b.RenameNode(ctx, n.Name, target)
	if err != nil {
		logger.Warn("rename after title failed",
			slog.String("from", n.Name), slog.String("to", target), slog.String("error", err.Error()))
		return n
	}
	return moved
}
