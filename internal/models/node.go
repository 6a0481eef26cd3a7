// Package models defines the domain types shared across mdchat.
package models

import (
	"fmt"

	"github.com/starford/mdchat/internal/vpath"
)

// NodeType discriminates files from folders.
type NodeType string

const (
	TypeFile   NodeType = "file"
	TypeFolder NodeType = "folder"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	return t == TypeFile || t == TypeFolder
}

// Node is a file or folder in the virtual tree. Name is the absolute,
// normalized logical path. Metadata is nil when the node carries none.
type Node struct {
	Name     string         `json:"name"`
	Type     NodeType       `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool { return n.Type == TypeFolder }

// NewNode builds a node, dropping empty metadata so that "no metadata" has a
// single representation.
func NewNode(name string, typ NodeType, meta map[string]any) *Node {
	n := &Node{Name: name, Type: typ}
	if len(meta) > 0 {
		n.Metadata = meta
	}
	return n
}

// DisplayName returns the human-readable label of n: its title metadata,
// "Home" for the root, or the leaf name.
func DisplayName(n *Node) string {
	if n == nil {
		return ""
	}
	if t, ok := n.Metadata["title"]; ok && t != nil {
		if s := fmt.Sprint(t); s != "" {
			return s
		}
	}
	if n.Name == vpath.Root {
		return "Home"
	}
	return vpath.Base(n.Name)
}
