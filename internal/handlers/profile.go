package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"yatube/internal/middleware"
	"yatube/internal/services"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	feeds   *services.FeedService
	follows *services.FollowService
	log     *slog.Logger
}

func NewProfileHandler(feeds *services.FeedService, follows *services.FollowService, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{feeds: feeds, follows: follows, log: log}
}

// Profile 用户主页
func (h *ProfileHandler) Profile(c *gin.Context) {
	viewer := middleware.CurrentUser(c)

	profile, err := h.feeds.Profile(c.Request.Context(), c.Param("username"), viewer, pageNumber(c))
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	Render(c, http.StatusOK, "profile.html", gin.H{
		"Profile": profile,
		"IsSelf":  viewer != nil && viewer.ID == profile.Author.ID,
	})
}

func (h *ProfileHandler) Follow(c *gin.Context) {
	username := c.Param("username")

	_, err := h.follows.Follow(c.Request.Context(), middleware.CurrentUser(c), username)
	if err != nil && !errors.Is(err, services.ErrSelfFollow) {
		serviceError(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, profileURL(username))
}

func (h *ProfileHandler) Unfollow(c *gin.Context) {
	username := c.Param("username")

	if _, err := h.follows.Unfollow(c.Request.Context(), middleware.CurrentUser(c), username); err != nil {
		serviceError(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, profileURL(username))
}

// FollowIndex 关注作者的帖子流
func (h *ProfileHandler) FollowIndex(c *gin.Context) {
	p, err := h.feeds.Following(c.Request.Context(), middleware.CurrentUser(c), pageNumber(c))
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	Render(c, http.StatusOK, "follow.html", gin.H{"Page": p})
}
