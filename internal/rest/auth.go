package rest

import (
	"net/http"

	accountdomain "github.com/dfryer1193/racblog/account/domain"
	"github.com/dfryer1193/racblog/api"
	"github.com/dfryer1193/racblog/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (h *handlers) Login(c *gin.Context) {
	req := &api.LoginRequest{}
	if !bindJSON(c, req) {
		return
	}

	session, err := h.auth.Login(c.Request.Context(), accountdomain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handlers) Register(c *gin.Context) {
	if h.registrar == nil {
		respondError(c, accountdomain.ErrRegistrationClosed)
		return
	}

	req := &api.RegisterRequest{}
	if !bindJSON(c, req) {
		return
	}

	identity, err := h.registrar.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, identity)
}

func (h *handlers) Logout(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		respondError(c, accountdomain.ErrInvalidSession)
		return
	}
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		respondError(c, accountdomain.ErrInvalidSession)
		return
	}
	c.JSON(http.StatusOK, identity)
}
