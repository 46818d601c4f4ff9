package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// VisitorCookie identifies a browser for the liked-posts set.
	VisitorCookie = "rac_visitor"
	visitorKey    = "visitor"
	visitorMaxAge = 365 * 24 * 60 * 60
)

// Visitor makes sure every request carries a visitor id, issuing a cookie
// for browsers that don't have one yet.
func Visitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(VisitorCookie)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, id, visitorMaxAge, "/", "", c.Request.TLS != nil, true)
		}
		c.Set(visitorKey, id)
		c.Next()
	}
}

// VisitorID returns the id set by Visitor, or "" when the middleware didn't run.
func VisitorID(c *gin.Context) string {
	return c.GetString(visitorKey)
}
