package router

import (
	"log/slog"
	"net/http"

	"yatube/internal/config"
	"yatube/internal/handlers"
	"yatube/internal/middleware"
	"yatube/internal/services"
	"yatube/internal/utils"
	"yatube/web"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
)

const sessionName = "yatube_session"

// App holds everything the HTTP layer depends on.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Cache  utils.FragmentStore
	Images *services.ImageStore
	Logger *slog.Logger
}

// New builds the gin engine with middleware and all routes.
func New(app App) (*gin.Engine, error) {
	if !app.Config.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, xerrors.New(err)
	}

	renderer, err := web.LoadTemplates()
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	log := app.Logger
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered",
			slog.String("method", c.Request.Method),
			slog.String("url", c.Request.URL.String()),
			slog.Any("panic", recovered),
		)
		handlers.RenderError(c, http.StatusInternalServerError)
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	store := cookie.NewStore([]byte(app.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   14 * 24 * 3600,
		HttpOnly: true,
		Secure:   !app.Config.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// Services
	users := services.NewUserService(app.DB)
	feeds := services.NewFeedService(app.DB)
	posts := services.NewPostService(app.DB, app.Images, log)
	comments := services.NewCommentService(app.DB)
	follows := services.NewFollowService(app.DB, users)

	r.Use(middleware.LoadUser(users))

	RegisterRoutes(r, Handlers{
		Auth:    handlers.NewAuthHandler(users, log),
		Post:    handlers.NewPostHandler(feeds, posts, comments, app.Images, app.Cache, app.Config.CacheTTL, log),
		Profile: handlers.NewProfileHandler(feeds, follows, log),
		Health:  handlers.NewHealthHandler(app.DB, log),
	}, app.Images.Root())

	return r, nil
}

// Handlers groups the route handlers.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Post    *handlers.PostHandler
	Profile *handlers.ProfileHandler
	Health  *handlers.HealthHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers, mediaRoot string) {
	// 公共路由 (Public Routes)
	r.GET("/", h.Post.Index)                     // 首页
	r.GET("/group/:slug/", h.Post.GroupPosts)    // 分组帖子
	r.GET("/healthz", h.Health.Healthz)          // 健康检查
	r.Static("/media", mediaRoot)                // 帖子图片
	r.GET("/:username/", h.Profile.Profile)      // 用户主页
	r.GET("/:username/:post_id/", h.Post.Detail) // 帖子详情
	r.GET("/auth/signup/", h.Auth.ShowSignup)    // 注册页面
	r.POST("/auth/signup/", h.Auth.Signup)       // 提交注册
	r.GET("/auth/login/", h.Auth.ShowLogin)      // 登录页面
	r.POST("/auth/login/", h.Auth.Login)         // 提交登录
	r.GET("/auth/logout/", h.Auth.Logout)        // 退出登录
	r.NoRoute(handlers.NotFound)                 // 404

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.LoginRequired())
	{
		authorized.GET("/new/", h.Post.ShowCreate)                         // 发布页面
		authorized.POST("/new/", h.Post.Create)                            // 提交发布
		authorized.GET("/follow/", h.Profile.FollowIndex)                  // 关注流
		authorized.GET("/:username/:post_id/edit/", h.Post.ShowEdit)       // 编辑页面
		authorized.POST("/:username/:post_id/edit/", h.Post.Update)        // 提交编辑
		authorized.POST("/:username/:post_id/comment/", h.Post.AddComment) // 发表评论
		authorized.POST("/:username/follow/", h.Profile.Follow)            // 关注
		authorized.POST("/:username/unfollow/", h.Profile.Unfollow)        // 取消关注
	}
}
