package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"yatube/internal/middleware"
	"yatube/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users *services.UserService
	log   *slog.Logger
}

func NewAuthHandler(users *services.UserService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

type signupForm struct {
	Username string
	Email    string
}

func (h *AuthHandler) ShowSignup(c *gin.Context) {
	Render(c, http.StatusOK, "auth/signup.html", gin.H{"Form": signupForm{}})
}

func (h *AuthHandler) Signup(c *gin.Context) {
	in := services.SignupInput{
		Username:  c.PostForm("username"),
		Email:     c.PostForm("email"),
		Password:  c.PostForm("password"),
		Password2: c.PostForm("password2"),
	}

	user, err := h.users.Register(c.Request.Context(), in)
	if fields, ok := services.FieldErrors(err); ok {
		Render(c, http.StatusBadRequest, "auth/signup.html", gin.H{
			"Form":   signupForm{Username: in.Username, Email: in.Email},
			"Errors": fields,
		})
		return
	}
	if err != nil {
		serviceError(c, h.log, err)
		return
	}

	h.log.Info("User registered", slog.String("username", user.Username))
	c.Redirect(http.StatusFound, middleware.LoginPath)
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", gin.H{"Next": safeNext(c.Query("next"))})
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	next := safeNext(c.PostForm("next"))

	user, err := h.users.Authenticate(c.Request.Context(), username, c.PostForm("password"))
	if errors.Is(err, services.ErrInvalidCredentials) {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Error":    "Пожалуйста, введите правильные имя пользователя и пароль.",
			"Username": username,
			"Next":     next,
		})
		return
	}
	if err != nil {
		serviceError(c, h.log, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		serviceError(c, h.log, err)
		return
	}

	if next == "" {
		next = "/"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/")
}

// safeNext only allows redirects to local paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	return next
}
