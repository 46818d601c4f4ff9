package rest

import (
	"net/http"

	"github.com/dfryer1193/racblog/api"
	"github.com/gin-gonic/gin"
)

func (h *handlers) AdminGetPosts(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.blog.ListPosts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewPostPage(page, true))
}

func (h *handlers) AdminGetPost(c *gin.Context) {
	post, err := h.blog.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewPost(post, true))
}

func (h *handlers) AdminCreatePost(c *gin.Context) {
	proto := &api.PostProto{}
	if !bindJSON(c, proto) {
		return
	}

	post, err := h.blog.CreatePost(c.Request.Context(), proto.ToInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.NewPost(post, true))
}

func (h *handlers) AdminUpdatePost(c *gin.Context) {
	patch := &api.PostPatch{}
	if !bindJSON(c, patch) {
		return
	}

	post, err := h.blog.UpdatePost(c.Request.Context(), c.Param("id"), patch.ToUpdate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewPost(post, true))
}

func (h *handlers) AdminDeletePost(c *gin.Context) {
	if err := h.blog.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) AdminGetStats(c *gin.Context) {
	st, err := h.blog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.Stats{
		Posts:           st.Posts,
		Published:       st.Published,
		Drafts:          st.Drafts,
		Views:           st.Views,
		Likes:           st.Likes,
		Comments:        st.Comments,
		PendingComments: st.PendingComments,
	})
}
