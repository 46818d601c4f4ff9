package rest

import (
	"net/http"

	"github.com/dfryer1193/racblog/contact"
	"github.com/gin-gonic/gin"
)

func (h *handlers) PostContact(c *gin.Context) {
	sub := &contact.Submission{}
	if !bindJSON(c, sub) {
		return
	}
	if h.contact == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "contact form is not available"})
		return
	}

	if err := h.contact.Submit(c.Request.Context(), *sub); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "received"})
}
