package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/services"
	"yatube/internal/utils"

	"github.com/gin-gonic/gin"
)

// IndexFragment is the cache fragment holding the home page feed.
const IndexFragment = "index_page"

type PostHandler struct {
	feeds    *services.FeedService
	posts    *services.PostService
	comments *services.CommentService
	images   *services.ImageStore
	cache    utils.FragmentStore
	cacheTTL time.Duration
	log      *slog.Logger
}

func NewPostHandler(
	feeds *services.FeedService,
	posts *services.PostService,
	comments *services.CommentService,
	images *services.ImageStore,
	cache utils.FragmentStore,
	cacheTTL time.Duration,
	log *slog.Logger,
) *PostHandler {
	return &PostHandler{
		feeds:    feeds,
		posts:    posts,
		comments: comments,
		images:   images,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// postForm is what the form template shows back to the user.
type postForm struct {
	Text    string
	GroupID *uint
	Image   string
}

func (h *PostHandler) Index(c *gin.Context) {
	page := pageNumber(c)

	// 首页按页缓存，写操作不主动失效，最长滞后 cacheTTL
	cacheKey := utils.FragmentKey(IndexFragment, page)
	if cached, ok := h.cache.Get(cacheKey); ok {
		if p, ok := cached.(*services.Page); ok {
			Render(c, http.StatusOK, "index.html", gin.H{"Page": p})
			return
		}
	}

	p, err := h.feeds.Global(c.Request.Context(), page)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	h.cache.Set(cacheKey, p, h.cacheTTL)

	Render(c, http.StatusOK, "index.html", gin.H{"Page": p})
}

func (h *PostHandler) GroupPosts(c *gin.Context) {
	group, p, err := h.feeds.Group(c.Request.Context(), c.Param("slug"), pageNumber(c))
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	Render(c, http.StatusOK, "group.html", gin.H{"Group": group, "Page": p})
}

func (h *PostHandler) Detail(c *gin.Context) {
	postID, ok := utils.ParseID(c.Param("post_id"))
	if !ok {
		NotFound(c)
		return
	}
	user := middleware.CurrentUser(c)

	detail, err := h.feeds.Post(c.Request.Context(), c.Param("username"), postID, user)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	Render(c, http.StatusOK, "post.html", gin.H{
		"Detail":   detail,
		"IsAuthor": postAuthorIs(&detail.Post, user),
	})
}

func (h *PostHandler) ShowCreate(c *gin.Context) {
	h.renderForm(c, http.StatusOK, false, "/new/", postForm{}, nil)
}

func (h *PostHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	in, form := h.bindPost(c)

	post, err := h.posts.Create(c.Request.Context(), user, in)
	if fields, ok := services.FieldErrors(err); ok {
		h.renderForm(c, http.StatusBadRequest, false, "/new/", form, fields)
		return
	}
	if err != nil {
		serviceError(c, h.log, err)
		return
	}

	h.log.Info("Post created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("author", user.Username),
	)
	c.Redirect(http.StatusFound, "/")
}

func (h *PostHandler) ShowEdit(c *gin.Context) {
	username := c.Param("username")
	postID, ok := utils.ParseID(c.Param("post_id"))
	if !ok {
		NotFound(c)
		return
	}

	post, err := h.posts.Get(c.Request.Context(), username, postID)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	if !postAuthorIs(post, middleware.CurrentUser(c)) {
		c.Redirect(http.StatusFound, postURL(username, postID))
		return
	}

	form := postForm{Text: post.Text, GroupID: post.GroupID, Image: post.Image}
	h.renderForm(c, http.StatusOK, true, editURL(username, postID), form, nil)
}

func (h *PostHandler) Update(c *gin.Context) {
	username := c.Param("username")
	postID, ok := utils.ParseID(c.Param("post_id"))
	if !ok {
		NotFound(c)
		return
	}
	user := middleware.CurrentUser(c)
	in, form := h.bindPost(c)

	post, err := h.posts.Update(c.Request.Context(), user, username, postID, in)
	switch {
	case errors.Is(err, services.ErrNotAuthor):
		c.Redirect(http.StatusFound, postURL(username, postID))
		return
	case err != nil:
		if fields, ok := services.FieldErrors(err); ok {
			form.Image = post.Image
			h.renderForm(c, http.StatusBadRequest, true, editURL(username, postID), form, fields)
			return
		}
		serviceError(c, h.log, err)
		return
	}

	h.log.Info("Post updated", slog.Uint64("post_id", uint64(post.ID)))
	c.Redirect(http.StatusFound, postURL(username, postID))
}

func (h *PostHandler) AddComment(c *gin.Context) {
	username := c.Param("username")
	postID, ok := utils.ParseID(c.Param("post_id"))
	if !ok {
		NotFound(c)
		return
	}

	_, err := h.comments.Add(c.Request.Context(), middleware.CurrentUser(c), username, postID, c.PostForm("text"))
	if err != nil {
		// 空评论不保存，直接回到帖子页
		if _, ok := services.FieldErrors(err); !ok {
			serviceError(c, h.log, err)
			return
		}
	}
	c.Redirect(http.StatusFound, postURL(username, postID))
}

func (h *PostHandler) renderForm(c *gin.Context, code int, isEdit bool, action string, form postForm, errs map[string]string) {
	groups, err := h.posts.ListGroups(c.Request.Context())
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	if errs == nil {
		errs = map[string]string{}
	}
	Render(c, code, "new_post.html", gin.H{
		"IsEdit": isEdit,
		"Action": action,
		"Form":   form,
		"Groups": groups,
		"Errors": errs,
	})
}

// bindPost reads the post form. An unparsable group id is kept as 0 so the
// service reports it as an invalid choice.
func (h *PostHandler) bindPost(c *gin.Context) (services.PostInput, postForm) {
	in := services.PostInput{Text: services.TrimText(c.PostForm("text"))}
	if raw := c.PostForm("group"); raw != "" {
		id, _ := utils.ParseID(raw)
		in.GroupID = &id
	}
	in.Image = h.readUpload(c)

	return in, postForm{Text: in.Text, GroupID: in.GroupID}
}

// readUpload returns nil when no file was sent. At most MaxBytes+1 bytes are
// read so oversized files fail validation without being buffered whole.
func (h *PostHandler) readUpload(c *gin.Context) *services.Upload {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil
	}
	f, err := fh.Open()
	if err != nil {
		h.log.Warn("Failed to open upload", slog.Any("error", err))
		return &services.Upload{Filename: fh.Filename, Size: fh.Size}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.images.MaxBytes()+1))
	if err != nil {
		h.log.Warn("Failed to read upload", slog.Any("error", err))
	}
	return &services.Upload{Filename: fh.Filename, Size: fh.Size, Data: data}
}

func editURL(username string, postID uint) string {
	return postURL(username, postID) + "edit/"
}

// postAuthorIs reports whether user wrote post.
func postAuthorIs(post *models.Post, user *models.User) bool {
	return post != nil && user != nil && post.AuthorID == user.ID
}
