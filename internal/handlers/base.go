package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"yatube/internal/middleware"
	"yatube/internal/services"
	"yatube/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/mdobak/go-xerrors"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path
	if _, ok := obj["Errors"]; !ok {
		obj["Errors"] = map[string]string{}
	}

	c.HTML(code, name, obj)
}

// RenderError renders the 404 page for http.StatusNotFound and the 500 page
// for everything else.
func RenderError(c *gin.Context, code int) {
	name := "misc/500.html"
	if code == http.StatusNotFound {
		name = "misc/404.html"
	}
	Render(c, code, name, nil)
	c.Abort()
}

// NotFound is the NoRoute handler.
func NotFound(c *gin.Context) {
	RenderError(c, http.StatusNotFound)
}

// serviceError maps a service error to a response. Callers handle
// validation and permission errors themselves before calling it.
func serviceError(c *gin.Context, log *slog.Logger, err error) {
	if errors.Is(err, services.ErrNotFound) {
		RenderError(c, http.StatusNotFound)
		return
	}
	log.Error("Request failed",
		slog.String("method", c.Request.Method),
		slog.String("url", c.Request.URL.String()),
		slog.String("error", xerrors.Sprint(err)),
	)
	RenderError(c, http.StatusInternalServerError)
}

// pageNumber reads ?page=; anything that is not a number becomes 0 and is
// clamped by the feed.
func pageNumber(c *gin.Context) int {
	return utils.StringToInt(c.Query("page"))
}

func profileURL(username string) string {
	return "/" + username + "/"
}

func postURL(username string, postID uint) string {
	return "/" + username + "/" + utils.UintToString(postID) + "/"
}
