package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleVerify checks the passphrase against the sentinel, creating it on
// first use. The response says whether the vault already existed.
func (s *Server) handleVerify(c *gin.Context) {
	created, err := s.gate.Verify(c.Request.Context(), passphrase(c))
	if err != nil {
		respondVaultError(c, err)
		return
	}
	status := "ok"
	if created {
		status = "created"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// handleListFiles lists entry names. The passphrase is verified first even
// though listing itself needs none, so a bad passphrase fails here rather
// than on the first decrypt.
func (s *Server) handleListFiles(c *gin.Context) {
	if _, err := s.gate.Verify(c.Request.Context(), passphrase(c)); err != nil {
		respondVaultError(c, err)
		return
	}
	names, err := s.entries.List(c.Request.Context())
	if err != nil {
		respondVaultError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": names})
}

func (s *Server) handleReadFile(c *gin.Context) {
	content, err := s.entries.Read(c.Request.Context(), passphrase(c), c.Param("name"))
	if err != nil {
		respondVaultError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "content": content})
}

type writeFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleWriteFile(c *gin.Context) {
	var req writeFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.gate.Verify(c.Request.Context(), passphrase(c)); err != nil {
		respondVaultError(c, err)
		return
	}
	if err := s.entries.Write(c.Request.Context(), passphrase(c), c.Param("name"), req.Content); err != nil {
		respondVaultError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	if _, err := s.gate.Verify(c.Request.Context(), passphrase(c)); err != nil {
		respondVaultError(c, err)
		return
	}
	if err := s.entries.Delete(c.Request.Context(), passphrase(c), c.Param("name")); err != nil {
		respondVaultError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
