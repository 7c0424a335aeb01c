package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Memories are stored in the clear, so these endpoints take no passphrase.

func (s *Server) handleListMemories(c *gin.Context) {
	memories, err := s.memories.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list memories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories})
}

type upsertMemoryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleUpsertMemory(c *gin.Context) {
	var req upsertMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		respondError(c, http.StatusBadRequest, "title and content required")
		return
	}
	if err := s.memories.Upsert(req.Title, req.Content); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save memory")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (s *Server) handleDeleteMemory(c *gin.Context) {
	if err := s.memories.Delete(c.Param("title")); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to delete memory")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleListSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": s.suggestions.Pending()})
}

func (s *Server) handleAcceptSuggestion(c *gin.Context) {
	accepted, ok, err := s.suggestions.Accept(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save memory")
		return
	}
	if !ok {
		// Unknown or already resolved: nothing to do, nothing written.
		c.JSON(http.StatusOK, gin.H{"status": "noop"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "title": accepted.Title, "content": accepted.Content})
}

func (s *Server) handleDismissSuggestion(c *gin.Context) {
	if !s.suggestions.Dismiss(c.Param("id")) {
		c.JSON(http.StatusOK, gin.H{"status": "noop"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "dismissed"})
}
