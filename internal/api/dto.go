package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdchat/internal/models"
	"github.com/starford/mdchat/internal/transcript"
)

var (
	pathRequired = validation.Required.Error("path is required")
	typeMessage  = `Type must be either "file" or "folder"`
)

// CreateNodeRequest is the request body for creating a file or folder.
type CreateNodeRequest struct {
	Path     string          `json:"path" example:"/chats/001-hello.md" validate:"required"`
	Type     models.NodeType `json:"type" example:"file" validate:"required"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

func (r *CreateNodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, pathRequired),
		validation.Field(&r.Type,
			validation.Required.Error("type is required"),
			validation.In(models.TypeFile, models.TypeFolder).Error(typeMessage)),
	)
}

// RenameNodeRequest is the request body for moving a node.
type RenameNodeRequest struct {
	OldPath string `json:"oldPath" example:"/chats/a.md" validate:"required"`
	NewPath string `json:"newPath" example:"/archive/a.md" validate:"required"`
}

func (r *RenameNodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OldPath, validation.Required.Error("oldPath is required")),
		validation.Field(&r.NewPath, validation.Required.Error("newPath is required")),
	)
}

// WriteContentRequest is the request body for replacing a node body. An
// empty content string is allowed; a missing one is not.
type WriteContentRequest struct {
	Path    string  `json:"path" validate:"required"`
	Content *string `json:"content" validate:"required"`
}

func (r *WriteContentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, pathRequired),
		validation.Field(&r.Content, validation.NotNil.Error("content is required")),
	)
}

// WriteMetadataRequest is the request body for replacing or merging node
// metadata.
type WriteMetadataRequest struct {
	Path     string         `json:"path" validate:"required"`
	Metadata map[string]any `json:"metadata" validate:"required"`
	Append   bool           `json:"append,omitempty"`
}

func (r *WriteMetadataRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, pathRequired),
		validation.Field(&r.Metadata, validation.NotNil.Error("metadata is required")),
	)
}

// WriteMessagesRequest is the request body for storing a conversation.
type WriteMessagesRequest struct {
	Path     string               `json:"path" validate:"required"`
	Messages []transcript.Message `json:"messages" validate:"required"`
}

func (r *WriteMessagesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, pathRequired),
		validation.Field(&r.Messages, validation.NotNil.Error("messages is required")),
	)
}

// SetUsageRequest is the request body for updating the token usage of a
// thread.
type SetUsageRequest struct {
	ThreadID string         `json:"threadId" validate:"required"`
	Usage    map[string]any `json:"usage" validate:"required"`
}

func (r *SetUsageRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ThreadID, validation.Required.Error("threadId is required")),
		validation.Field(&r.Usage, validation.NotNil.Error("usage is required")),
	)
}

// NodeResponse wraps a single node.
type NodeResponse struct {
	Node *models.Node `json:"node"`
}

// SuccessResponse acknowledges a mutation.
type SuccessResponse struct {
	Success bool         `json:"success"`
	Node    *models.Node `json:"node,omitempty"`
}

// OKResponse acknowledges session and message operations.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ContentResponse wraps a node body.
type ContentResponse struct {
	Content string `json:"content"`
}

// MessagesResponse wraps a decoded conversation.
type MessagesResponse struct {
	Messages []transcript.Message `json:"messages"`
}

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string `json:"version" example:"1.4.0"`
	Commit    string `json:"commit" example:"3f2c1ab"`
	BuildDate string `json:"buildDate" example:"2026-01-02"`
}
