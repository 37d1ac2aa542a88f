package middleware

import (
	"context"
	"net/http"
	"net/url"

	"yatube/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CurrentUserKey = "user"
	SessionUserKey = "user_id"
	LoginPath      = "/auth/login/"
)

// UserLoader resolves the session user id.
type UserLoader interface {
	ByID(ctx context.Context, id uint) (*models.User, error)
}

// LoadUser retrieves user from session and sets to context
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if id, ok := session.Get(SessionUserKey).(uint); ok {
			user, err := users.ByID(c.Request.Context(), id)
			if err == nil {
				c.Set(CurrentUserKey, user)
			} else {
				// 用户已被删除，清掉失效的会话
				session.Delete(SessionUserKey)
				_ = session.Save()
			}
		}
		c.Next()
	}
}

// LoginRequired sends anonymous visitors to the login page, remembering
// where they were going.
func LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the logged-in user or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(CurrentUserKey); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
