// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mdchat storage tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/nodeservice"
	"github.com/starford/mdchat/internal/storage"
)

// Server wraps the MCP server with mdchat tools. Every tool works on the
// default storage session.
type Server struct {
	mcp *server.MCPServer
	svc *nodeservice.Service
}

// New creates a new MCP server with all mdchat tools registered.
func New(svc *nodeservice.Service, version string) *Server {
	s := &Server{svc: svc}
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		"mdchat",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List the files and folders directly inside a folder."),
		mcp.WithString("path", mcp.Description("Folder path (defaults to /)")),
	), s.listNodes)

	s.mcp.AddTool(mcp.NewTool("get_node",
		mcp.WithDescription("Get the type and metadata of a file or folder."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute node path (e.g. /chats/001-hello.md)")),
	), s.getNode)

	s.mcp.AddTool(mcp.NewTool("read_content",
		mcp.WithDescription("Read the body of a node, without its front matter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute node path")),
	), s.readContent)

	s.mcp.AddTool(mcp.NewTool("write_content",
		mcp.WithDescription("Replace the body of an existing node. Metadata is kept. "+
			"Conversations must follow the format returned by get_conversation_format."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute node path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New body")),
	), s.writeContent)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a file or folder. Missing parent folders are created."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the new node")),
		mcp.WithString("type", mcp.Required(), mcp.Enum(string(models.TypeFile), string(models.TypeFolder)),
			mcp.Description("Node type")),
	), s.createNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node and everything below it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute node path")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("rename_node",
		mcp.WithDescription("Move a node, with its subtree, to a new path."),
		mcp.WithString("old_path", mcp.Required(), mcp.Description("Current path")),
		mcp.WithString("new_path", mcp.Required(), mcp.Description("Target path; must not exist")),
	), s.renameNode)

	s.mcp.AddTool(mcp.NewTool("write_metadata",
		mcp.WithDescription("Replace the front matter of a node, or merge into it when append is true."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute node path")),
		mcp.WithString("metadata", mcp.Required(), mcp.Description(`JSON object, e.g. {"title": "Weekly sync"}`)),
		mcp.WithBoolean("append", mcp.Description("Merge into the existing metadata")),
	), s.writeMetadata)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through stored documents and their titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("get_conversation_format",
		mcp.WithDescription("Returns the mdchat storage and conversation format. "+
			"Call this before writing conversations or metadata."),
	), s.getConversationFormat)

	s.mcp.AddResource(
		mcp.NewResource(ConversationFormatURI, "Conversation Format",
			mcp.WithResourceDescription("How mdchat stores folders, metadata and conversations."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConversationFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/"
	if p, err := req.RequireString("path"); err == nil && strings.TrimSpace(p) != "" {
		path = p
	}
	nodes, err := s.svc.ListNodes(ctx, storage.DefaultSession, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(nodes.Nodes) == 0 {
		return mcp.NewToolResultText("empty folder"), nil
	}
	lines := make([]string, 0, len(nodes.Nodes))
	for _, n := range nodes.Nodes {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", n.Type, n.Name, models.DisplayName(n)))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.svc.GetNode(ctx, storage.DefaultSession, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if node == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(node), nil
}

func (s *Server) readContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.ReadContent(ctx, storage.DefaultSession, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) writeContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.WriteContent(ctx, storage.DefaultSession, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("written: %s", path)), nil
}

func (s *Server) createNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.svc.CreateNode(ctx, storage.DefaultSession, path, models.NodeType(typ), nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created %s: %s", node.Type, node.Name)), nil
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNode(ctx, storage.DefaultSession, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) renameNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldPath, err := req.RequireString("old_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newPath, err := req.RequireString("new_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.svc.RenameNode(ctx, storage.DefaultSession, oldPath, newPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s", oldPath, node.Name)), nil
}

func (s *Server) writeMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("metadata")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return mcp.NewToolResultError("metadata must be a JSON object"), nil
	}
	node, err := s.svc.WriteMetadata(ctx, storage.DefaultSession, path, meta, req.GetBool("append", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(node), nil
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getConversationFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ConversationFormat), nil
}

func (s *Server) readConversationFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConversationFormatURI,
			MIMEType: "text/markdown",
			Text:     ConversationFormat,
		},
	}, nil
}
