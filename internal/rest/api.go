package rest

import (
	"context"
	"net/http"
	"time"

	accountdomain "github.com/dfryer1193/racblog/account/domain"
	"github.com/dfryer1193/racblog/blog/application"
	"github.com/dfryer1193/racblog/contact"
	"github.com/dfryer1193/racblog/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Registrar creates admin accounts. Only the identity-backed gate has one.
type Registrar interface {
	Register(ctx context.Context, username, email, password string) (*accountdomain.Identity, error)
}

// ContactSubmitter forwards contact-form submissions.
type ContactSubmitter interface {
	Submit(ctx context.Context, sub contact.Submission) error
}

// Limits configures per-IP request budgets for abuse-prone routes.
type Limits struct {
	Login   int
	Comment int
	Contact int
	Window  time.Duration
}

// DefaultLimits applies when Deps.Limits is zero.
var DefaultLimits = Limits{Login: 5, Comment: 10, Contact: 5, Window: time.Minute}

type Deps struct {
	Blog      *application.BlogService
	Auth      accountdomain.Authenticator
	Registrar Registrar
	Contact   ContactSubmitter
	Limits    Limits
}

type handlers struct {
	blog      *application.BlogService
	auth      accountdomain.Authenticator
	registrar Registrar
	contact   ContactSubmitter
}

// NewApi registers every route on router.
func NewApi(router *gin.Engine, deps Deps) {
	h := &handlers{
		blog:      deps.Blog,
		auth:      deps.Auth,
		registrar: deps.Registrar,
		contact:   deps.Contact,
	}
	limits := deps.Limits
	if limits.Window <= 0 {
		limits = DefaultLimits
	}
	loginLimiter := middleware.NewRateLimiter(limits.Login, limits.Window)
	commentLimiter := middleware.NewRateLimiter(limits.Comment, limits.Window)
	contactLimiter := middleware.NewRateLimiter(limits.Contact, limits.Window)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/feed.xml", h.GetFeed)

	public := router.Group("/api")
	public.Use(middleware.Visitor())
	{
		public.GET("/posts", h.GetPosts)
		public.GET("/posts/:slug", h.GetPost)
		public.POST("/posts/:slug/comments", commentLimiter.Limit(), h.PostComment)
		public.POST("/posts/:slug/like", h.LikePost)
		public.GET("/tags", h.GetTags)
		public.POST("/contact", contactLimiter.Limit(), h.PostContact)
	}

	auth := router.Group("/api/auth")
	{
		auth.POST("/login", loginLimiter.Limit(), h.Login)
		auth.POST("/register", loginLimiter.Limit(), h.Register)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", middleware.RequireAuth(deps.Auth), h.Me)
	}

	admin := router.Group("/api/admin")
	admin.Use(middleware.RequireAuth(deps.Auth))
	{
		admin.GET("/posts", h.AdminGetPosts)
		admin.POST("/posts", h.AdminCreatePost)
		admin.GET("/posts/:id", h.AdminGetPost)
		admin.PUT("/posts/:id", h.AdminUpdatePost)
		admin.DELETE("/posts/:id", h.AdminDeletePost)
		admin.GET("/comments", h.AdminGetComments)
		admin.POST("/posts/:id/comments/:commentId/approve", h.AdminApproveComment)
		admin.DELETE("/posts/:id/comments/:commentId", h.AdminDeleteComment)
		admin.GET("/stats", h.AdminGetStats)
	}
}
