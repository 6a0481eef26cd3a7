package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/mdchat/internal/apperr"
	"github.com/starford/mdchat/internal/nodeservice"
	"github.com/starford/mdchat/internal/storage"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *nodeservice.Service
	version VersionInfo
	logger  *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *nodeservice.Service, version VersionInfo, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, version: version, logger: logger}
}

// fail logs err and writes it verbatim as a 500 response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed",
		slog.String("session", Session(r.Context())),
		slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
}

// GetStorage handles GET /api/storage.
//
//	@Summary		Get a node or list a folder
//	@Tags			storage
//	@Produce		json
//	@Param			path	query		string	true	"Node path"
//	@Param			action	query		string	false	"get or list"	Enums(get, list)
//	@Success		200		{object}	NodeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/storage [get]
func (h *Handler) GetStorage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ctx, session := r.Context(), Session(r.Context())

	if q.Get("action") == "list" {
		listing, err := h.svc.ListNodes(ctx, session, path)
		if err != nil {
			h.fail(w, r, "list nodes", err)
			return
		}
		writeJSON(w, http.StatusOK, listing)
		return
	}

	node, err := h.svc.GetNode(ctx, session, path)
	if err != nil {
		h.fail(w, r, "get node", err)
		return
	}
	if node == nil {
		writeJSON(w, http.StatusNotFound, errorBody("Node not found"))
		return
	}
	writeJSON(w, http.StatusOK, NodeResponse{Node: node})
}

// CreateNode handles POST /api/storage.
//
//	@Summary		Create a file or folder
//	@Tags			storage
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNodeRequest	true	"Node to create"
//	@Success		201		{object}	NodeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/storage [post]
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	node, err := h.svc.CreateNode(r.Context(), Session(r.Context()), req.Path, req.Type, req.Metadata)
	if err != nil {
		h.fail(w, r, "create node", err)
		return
	}
	writeJSON(w, http.StatusCreated, NodeResponse{Node: node})
}

// DeleteNode handles DELETE /api/storage.
//
//	@Summary		Delete a node and its subtree
//	@Tags			storage
//	@Param			path	query		string	true	"Node path"
//	@Success		200		{object}	SuccessResponse
//	@Router			/storage [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNode(r.Context(), Session(r.Context()), path); err != nil {
		h.fail(w, r, "delete node", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// RenameNode handles PATCH /api/storage.
func (h *Handler) RenameNode(w http.ResponseWriter, r *http.Request) {
	var req RenameNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	node, err := h.svc.RenameNode(r.Context(), Session(r.Context()), req.OldPath, req.NewPath)
	if err != nil {
		h.fail(w, r, "rename node", err)
		return
	}
	writeJSON(w, http.StatusOK, NodeResponse{Node: node})
}

// ReadContent handles GET /api/storage/content.
func (h *Handler) ReadContent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	content, err := h.svc.ReadContent(r.Context(), Session(r.Context()), path)
	if err != nil {
		h.fail(w, r, "read content", err)
		return
	}
	writeJSON(w, http.StatusOK, ContentResponse{Content: content})
}

// WriteContent handles PUT /api/storage/content.
func (h *Handler) WriteContent(w http.ResponseWriter, r *http.Request) {
	var req WriteContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.WriteContent(r.Context(), Session(r.Context()), req.Path, *req.Content); err != nil {
		h.fail(w, r, "write content", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// WriteMetadata handles PUT /api/storage/metadata.
//
//	@Summary		Replace or merge node metadata
//	@Tags			storage
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WriteMetadataRequest	true	"Metadata"
//	@Success		200		{object}	SuccessResponse
//	@Router			/storage/metadata [put]
func (h *Handler) WriteMetadata(w http.ResponseWriter, r *http.Request) {
	var req WriteMetadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	node, err := h.svc.WriteMetadata(r.Context(), Session(r.Context()), req.Path, req.Metadata, req.Append)
	if err != nil {
		h.fail(w, r, "write metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Node: node})
}

// ReadMessages handles GET /api/storage/messages.
func (h *Handler) ReadMessages(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	msgs, err := h.svc.ReadMessages(r.Context(), Session(r.Context()), path)
	if err != nil {
		h.fail(w, r, "read messages", err)
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}

// WriteMessages handles POST /api/storage/messages.
func (h *Handler) WriteMessages(w http.ResponseWriter, r *http.Request) {
	var req WriteMessagesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.WriteMessages(r.Context(), Session(r.Context()), req.Path, req.Messages); err != nil {
		h.fail(w, r, "write messages", err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// ClearStorage handles POST /api/storage/clear.
func (h *Handler) ClearStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSession(r.Context(), Session(r.Context())); err != nil {
		if errors.Is(err, storage.ErrNotResettable) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		h.fail(w, r, "clear storage", err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// TestCleanup handles DELETE /api/test-cleanup.
func (h *Handler) TestCleanup(w http.ResponseWriter, r *http.Request) {
	h.svc.DropSession(Session(r.Context()))
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// GetUsage handles GET /api/usage.
//
//	@Summary		Get the token usage of a thread
//	@Tags			usage
//	@Produce		json
//	@Param			threadId	query		string	true	"Thread path"
//	@Success		200			{object}	map[string]any
//	@Failure		404			{object}	errResponse
//	@Router			/usage [get]
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("threadId is required"))
		return
	}
	usage, err := h.svc.GetUsage(r.Context(), Session(r.Context()), threadID)
	if err != nil {
		h.fail(w, r, "get usage", err)
		return
	}
	if usage == nil {
		writeJSON(w, http.StatusNotFound, errorBody("No usage found"))
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// SetUsage handles PUT /api/usage.
func (h *Handler) SetUsage(w http.ResponseWriter, r *http.Request) {
	var req SetUsageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	usage, err := h.svc.SetUsage(r.Context(), Session(r.Context()), req.ThreadID, req.Usage)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Node not found"))
			return
		}
		h.fail(w, r, "set usage", err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// Version handles GET /api/version.
func (h *Handler) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.version)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across stored documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, nodeservice.ErrSearchDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("search index disabled"))
			return
		}
		h.fail(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
