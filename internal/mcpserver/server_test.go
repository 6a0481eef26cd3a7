package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mdchat/internal/nodeservice"
	"github.com/starford/mdchat/internal/testutil"
	"github.com/starford/mdchat/internal/transcript"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	reg, _ := testutil.DiskRegistry(t)
	svc := nodeservice.NewService(reg, testutil.TestDB(t), nil, testutil.Logger())
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_nodes":              srv.listNodes,
		"get_node":                srv.getNode,
		"read_content":            srv.readContent,
		"write_content":           srv.writeContent,
		"create_node":             srv.createNode,
		"delete_node":             srv.deleteNode,
		"rename_node":             srv.renameNode,
		"write_metadata":          srv.writeMetadata,
		"search_nodes":            srv.searchNodes,
		"get_conversation_format": srv.getConversationFormat,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateWriteAndRead(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_node", map[string]any{"path": "/chats/001-a.md", "type": "file"})
	if text := resultText(r); text != "created file: /chats/001-a.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "write_content", map[string]any{"path": "/chats/001-a.md", "content": "Hello"})
	if r.IsError {
		t.Fatalf("write failed: %s", resultText(r))
	}

	r = callTool(t, srv, "read_content", map[string]any{"path": "/chats/001-a.md"})
	if text := resultText(r); text != "Hello" {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateInvalidType(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "create_node", map[string]any{"path": "/x", "type": "link"})
	if !r.IsError {
		t.Error("expected error for invalid type")
	}
}

func TestListNodes(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_node", map[string]any{"path": "/b.md", "type": "file"})
	callTool(t, srv, "create_node", map[string]any{"path": "/a", "type": "folder"})

	r := callTool(t, srv, "list_nodes", map[string]any{})
	want := "folder\t/a\ta\nfile\t/b.md\tb.md"
	if text := resultText(r); text != want {
		t.Errorf("list = %q, want %q", text, want)
	}

	r = callTool(t, srv, "list_nodes", map[string]any{"path": "/a"})
	if text := resultText(r); text != "empty folder" {
		t.Errorf("empty list = %q", text)
	}
}

func TestMetadataAndGetNode(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_node", map[string]any{"path": "/t.md", "type": "file"})

	r := callTool(t, srv, "write_metadata", map[string]any{"path": "/t.md", "metadata": `{"title":"Topic","model":"m"}`})
	if r.IsError {
		t.Fatalf("write_metadata: %s", resultText(r))
	}
	r = callTool(t, srv, "write_metadata", map[string]any{"path": "/t.md", "metadata": `{"title":"Other"}`, "append": true})
	if r.IsError {
		t.Fatalf("append metadata: %s", resultText(r))
	}

	r = callTool(t, srv, "get_node", map[string]any{"path": "/t.md"})
	var node struct {
		Name     string         `json:"name"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	if node.Metadata["title"] != "Other" || node.Metadata["model"] != "m" {
		t.Errorf("metadata = %v", node.Metadata)
	}

	r = callTool(t, srv, "write_metadata", map[string]any{"path": "/t.md", "metadata": "[1]"})
	if !r.IsError {
		t.Error("expected error for non-object metadata")
	}
}

func TestRenameDeleteAndMissing(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_node", map[string]any{"path": "/a.md", "type": "file"})

	r := callTool(t, srv, "rename_node", map[string]any{"old_path": "/a.md", "new_path": "/b.md"})
	if text := resultText(r); text != "moved: /a.md -> /b.md" {
		t.Errorf("rename = %q", text)
	}

	r = callTool(t, srv, "get_node", map[string]any{"path": "/a.md"})
	if !r.IsError {
		t.Error("expected error for moved node")
	}

	r = callTool(t, srv, "delete_node", map[string]any{"path": "/b.md"})
	if r.IsError {
		t.Fatalf("delete: %s", resultText(r))
	}
	r = callTool(t, srv, "read_content", map[string]any{"path": "/b.md"})
	if !r.IsError {
		t.Error("expected error for deleted node")
	}
}

func TestSearchNodes(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_node", map[string]any{"path": "/go.md", "type": "file"})
	callTool(t, srv, "write_content", map[string]any{"path": "/go.md", "content": "all about goroutines"})

	r := callTool(t, srv, "search_nodes", map[string]any{"query": "goroutines"})
	if r.IsError {
		t.Fatalf("search: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"path": "/go.md"`) {
		t.Errorf("search result = %s", resultText(r))
	}
}

func TestConversationFormat(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_conversation_format", nil)
	text := resultText(r)
	if !strings.Contains(text, transcript.Delimiter) || !strings.Contains(text, "readme.md") {
		t.Errorf("format missing sections: %q", text)
	}

	contents, err := srv.readConversationFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != ConversationFormatURI {
		t.Errorf("resource contents = %#v", contents[0])
	}
}
