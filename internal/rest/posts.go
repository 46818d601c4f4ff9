package rest

import (
	"net/http"

	"github.com/dfryer1193/racblog/api"
	"github.com/dfryer1193/racblog/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (h *handlers) GetPosts(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.blog.ListPublished(c.Request.Context(), filter.Page, filter.PageSize, filter.Query, filter.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewPostPage(page, false))
}

func (h *handlers) GetPost(c *gin.Context) {
	view, err := h.blog.ReadPost(c.Request.Context(), c.Param("slug"), middleware.VisitorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	post := api.NewPost(view.Post, false)
	post.HTML = view.HTML
	post.Liked = view.Liked
	c.JSON(http.StatusOK, post)
}

func (h *handlers) LikePost(c *gin.Context) {
	likes, err := h.blog.Like(c.Request.Context(), middleware.VisitorID(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.LikeResponse{Likes: likes, Liked: true})
}

func (h *handlers) GetTags(c *gin.Context) {
	tags, err := h.blog.Tags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *handlers) GetFeed(c *gin.Context) {
	rss, err := h.blog.Feed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}
