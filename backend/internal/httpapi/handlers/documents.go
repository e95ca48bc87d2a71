package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabRouter/backend/internal/session"
	"collabRouter/backend/internal/store"
)

// DocumentHandler exposes the document catalog over REST: rows created here
// are what the content fetch resolves on first websocket join.
type DocumentHandler struct {
	docs     *store.DocumentStore
	registry *session.Registry
}

func NewDocumentHandler(docs *store.DocumentStore, registry *session.Registry) *DocumentHandler {
	return &DocumentHandler{docs: docs, registry: registry}
}

type createDocumentReq struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	userID, exists := c.Get("userId")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User context missing"})
		return
	}
	ownerID, ok := userID.(uint64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return
	}

	var req createDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.docs.CreateDocument(c.Request.Context(), ownerID, req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CREATE_DOC_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": id, "ownerId": ownerID, "title": req.Title})
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	title := c.Param("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Document title missing"})
		return
	}

	rec, err := h.docs.GetDocument(c.Request.Context(), title)
	if errors.Is(err, store.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "DOCUMENT_NOT_FOUND"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "GET_DOC_FAILED"})
		return
	}

	resp := gin.H{"docId": rec.ID, "ownerId": rec.OwnerID, "title": rec.Title}
	// Live membership is served from the routing core, not the database.
	if rt := h.registry.Lookup(title); rt != nil {
		resp["members"] = rt.Members()
		resp["revision"] = rt.Document().Revision()
	}
	c.JSON(http.StatusOK, resp)
}
