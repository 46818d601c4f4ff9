package rest

import (
	"errors"
	"net/http"
	"strconv"

	accountdomain "github.com/dfryer1193/racblog/account/domain"
	"github.com/dfryer1193/racblog/api"
	"github.com/dfryer1193/racblog/blog/application"
	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, accountdomain.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, accountdomain.ErrProfileNotFound),
		errors.Is(err, accountdomain.ErrRegistrationClosed):
		return http.StatusForbidden
	case errors.Is(err, application.ErrAlreadyLiked),
		errors.Is(err, accountdomain.ErrEmailTaken):
		return http.StatusConflict
	case domain.IsTransport(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err onto a status code and writes {"error": "..."}.
// Unexpected errors are logged and reported without detail.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Backend unavailable")
		msg = "service temporarily unavailable, please try again"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: msg})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, domain.Invalid("body", err.Error()))
		return false
	}
	return true
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(key, "must be a number")
	}
	return n, nil
}

func listFilter(c *gin.Context) (domain.ListFilter, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return domain.ListFilter{}, err
	}
	pageSize, err := intQuery(c, "pageSize")
	if err != nil {
		return domain.ListFilter{}, err
	}
	return domain.ListFilter{
		Status:   domain.StatusFilter(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
		Query:    c.Query("q"),
		Tag:      c.Query("tag"),
	}, nil
}
