package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"haven/internal/vault"
)

const passwordHeader = "X-Password"

// passphrase pulls the passphrase from the request header. It is handed to
// handlers by value and discarded with the request.
func passphrase(c *gin.Context) string {
	return c.GetHeader(passwordHeader)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondVaultError maps store errors onto the API's status codes. A wrong
// passphrase and a missing entry stay distinguishable on the read path.
func respondVaultError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, vault.ErrInvalidPassphrase):
		respondError(c, http.StatusUnauthorized, "invalid password")
	case errors.Is(err, vault.ErrNotFound):
		respondError(c, http.StatusNotFound, "entry not found")
	case errors.Is(err, vault.ErrInvalidName):
		respondError(c, http.StatusBadRequest, "invalid entry name")
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}
