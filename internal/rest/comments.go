package rest

import (
	"net/http"

	"github.com/dfryer1193/racblog/api"
	"github.com/gin-gonic/gin"
)

func (h *handlers) PostComment(c *gin.Context) {
	commentProto := &api.CommentProto{}
	if !bindJSON(c, commentProto) {
		return
	}

	comment, err := h.blog.Comment(c.Request.Context(), c.Param("slug"), commentProto.ToInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.NewComment(*comment, false))
}

func (h *handlers) AdminGetComments(c *gin.Context) {
	pending, err := h.blog.PendingComments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]api.PendingComment, 0, len(pending))
	for _, p := range pending {
		out = append(out, api.PendingComment{
			Comment:   api.NewComment(p.Comment, true),
			PostID:    p.PostID,
			PostTitle: p.PostTitle,
			PostSlug:  p.PostSlug,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) AdminApproveComment(c *gin.Context) {
	if err := h.blog.ApproveComment(c.Request.Context(), c.Param("id"), c.Param("commentId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) AdminDeleteComment(c *gin.Context) {
	if err := h.blog.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
