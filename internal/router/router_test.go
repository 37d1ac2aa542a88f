package router

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"yatube/internal/config"
	"yatube/internal/db"
	"yatube/internal/handlers"
	"yatube/internal/logging"
	"yatube/internal/models"
	"yatube/internal/services"
	"yatube/internal/utils"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var smallGIF = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00!\xf9\x04\x01\x0a\x00\x01\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02L\x01\x00;")

const testPassword = "secret-pass-123"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type testApp struct {
	engine *gin.Engine
	db     *gorm.DB
	cache  utils.FragmentStore
}

func newTestApp(t *testing.T, cacheBackend string) *testApp {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)

	gdb, err := db.Open("sqlite", dsn, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := &config.Config{
		Env:           "dev",
		SessionSecret: "test-secret",
		MediaRoot:     t.TempDir(),
		MaxImageBytes: 5 << 20,
		CacheBackend:  cacheBackend,
		CacheSize:     100,
		CacheTTL:      20 * time.Second,
	}
	cache, err := utils.NewFragmentStore(cfg.CacheBackend, cfg.CacheSize)
	require.NoError(t, err)

	engine, err := New(App{
		Config: cfg,
		DB:     gdb,
		Cache:  cache,
		Images: services.NewImageStore(cfg.MediaRoot, cfg.MaxImageBytes),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	return &testApp{engine: engine, db: gdb, cache: cache}
}

func (a *testApp) user(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := services.NewUserService(a.db).Register(context.Background(), services.SignupInput{
		Username:  username,
		Email:     gofakeit.Email(),
		Password:  testPassword,
		Password2: testPassword,
	})
	require.NoError(t, err)
	return u
}

func (a *testApp) group(t *testing.T, slug string) *models.Group {
	t.Helper()
	g := models.Group{Title: gofakeit.Word(), Slug: slug}
	require.NoError(t, a.db.Create(&g).Error)
	return &g
}

func (a *testApp) post(t *testing.T, author *models.User, text string) *models.Post {
	t.Helper()
	p := models.Post{Text: text, AuthorID: author.ID}
	require.NoError(t, a.db.Omit("Author", "Group").Create(&p).Error)
	return &p
}

func (a *testApp) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, a.db.Model(model).Count(&n).Error)
	return n
}

func (a *testApp) do(t *testing.T, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(t *testing.T, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req, cookies)
}

func (a *testApp) postMultipart(t *testing.T, path string, fields map[string]string, filename string, data []byte, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = io.Copy(fw, bytes.NewReader(data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(t, req, cookies)
}

func (a *testApp) login(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	w := a.postForm(t, "/auth/login/", url.Values{"username": {username}, "password": {testPassword}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestCreatedPostShowsEverywhere(t *testing.T) {
	app := newTestApp(t, "none")
	leo := app.user(t, "leo")
	cats := app.group(t, "cats")
	cookies := app.login(t, "leo")

	w := app.postMultipart(t, "/new/", map[string]string{
		"text":  "mama papa",
		"group": fmt.Sprint(cats.ID),
	}, "small.gif", smallGIF, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	var post models.Post
	require.NoError(t, app.db.First(&post).Error)
	assert.Equal(t, leo.ID, post.AuthorID)
	require.True(t, post.HasImage())

	for _, path := range []string{"/", "/group/cats/", "/leo/", fmt.Sprintf("/leo/%d/", post.ID)} {
		w := app.get(t, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "mama papa", path)
		assert.Contains(t, w.Body.String(), `src="/media/`+post.Image+`"`, path)
	}

	w = app.get(t, "/media/"+post.Image, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, smallGIF, w.Body.Bytes())
}

func TestAnonymousWritesRedirectToLogin(t *testing.T) {
	app := newTestApp(t, "none")
	leo := app.user(t, "leo")
	p := app.post(t, leo, "hello")

	w := app.postForm(t, "/new/", url.Values{"text": {"sneaky"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=%2Fnew%2F", w.Header().Get("Location"))

	w = app.postForm(t, fmt.Sprintf("/leo/%d/comment/", p.ID), url.Values{"text": {"sneaky"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/auth/login/?next="))

	w = app.postForm(t, "/leo/follow/", nil, nil)
	require.Equal(t, http.StatusFound, w.Code)

	w = app.get(t, "/follow/", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=%2Ffollow%2F", w.Header().Get("Location"))

	assert.Equal(t, int64(1), app.count(t, &models.Post{}))
	assert.Zero(t, app.count(t, &models.Comment{}))
	assert.Zero(t, app.count(t, &models.Follow{}))
}

func TestNonImageUploadRejected(t *testing.T) {
	app := newTestApp(t, "none")
	app.user(t, "leo")
	cookies := app.login(t, "leo")

	w := app.postMultipart(t, "/new/", map[string]string{"text": "with a text file"},
		"note.gif", []byte("i-am-a-text-file"), cookies)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgInvalidImage)
	assert.Contains(t, w.Body.String(), "with a text file")
	assert.Zero(t, app.count(t, &models.Post{}))
}

func TestBlankPostRerendersForm(t *testing.T) {
	app := newTestApp(t, "none")
	app.user(t, "leo")
	cookies := app.login(t, "leo")

	w := app.get(t, "/new/", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.postForm(t, "/new/", url.Values{"text": {"   "}}, cookies)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Обязательное поле.")
	assert.Zero(t, app.count(t, &models.Post{}))
}

func TestCommentAppearsOnPost(t *testing.T) {
	app := newTestApp(t, "none")
	leo := app.user(t, "leo")
	app.user(t, "anna")
	p := app.post(t, leo, "hello")
	cookies := app.login(t, "anna")
	postPath := fmt.Sprintf("/leo/%d/", p.ID)

	w := app.postForm(t, postPath+"comment/", url.Values{"text": {"nice one"}}, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, postPath, w.Header().Get("Location"))

	w = app.postForm(t, postPath+"comment/", url.Values{"text": {""}}, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), app.count(t, &models.Comment{}))

	w = app.get(t, postPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nice one")
	assert.Contains(t, w.Body.String(), "anna")

	w = app.postForm(t, fmt.Sprintf("/anna/%d/comment/", p.ID), url.Values{"text": {"wrong"}}, cookies)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollowUnfollow(t *testing.T) {
	app := newTestApp(t, "none")
	leo := app.user(t, "leo")
	bob := app.user(t, "bob")
	app.user(t, "anna")
	app.post(t, leo, "from leo")
	app.post(t, bob, "from bob")
	cookies := app.login(t, "anna")

	for i := 0; i < 2; i++ {
		w := app.postForm(t, "/leo/follow/", nil, cookies)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/leo/", w.Header().Get("Location"))
	}
	assert.Equal(t, int64(1), app.count(t, &models.Follow{}))

	w := app.get(t, "/follow/", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "from leo")
	assert.NotContains(t, w.Body.String(), "from bob")

	w = app.get(t, "/leo/", cookies)
	assert.Contains(t, w.Body.String(), "/leo/unfollow/")

	w = app.postForm(t, "/leo/unfollow/", nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Zero(t, app.count(t, &models.Follow{}))

	w = app.postForm(t, "/bob/unfollow/", nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Zero(t, app.count(t, &models.Follow{}))
}

func TestSelfFollowIsNoop(t *testing.T) {
	app := newTestApp(t, "none")
	app.user(t, "leo")
	cookies := app.login(t, "leo")

	w := app.postForm(t, "/leo/follow/", nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/leo/", w.Header().Get("Location"))
	assert.Zero(t, app.count(t, &models.Follow{}))
}

func TestIndexCacheWindow(t *testing.T) {
	app := newTestApp(t, "lru")
	leo := app.user(t, "leo")

	w := app.get(t, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	app.post(t, leo, "fresh post")

	w = app.get(t, "/", nil)
	assert.NotContains(t, w.Body.String(), "fresh post")

	app.cache.DeleteFragment(handlers.IndexFragment)

	w = app.get(t, "/", nil)
	assert.Contains(t, w.Body.String(), "fresh post")
}

func TestOnlyAuthorCanEdit(t *testing.T) {
	app := newTestApp(t, "none")
	leo := app.user(t, "leo")
	app.user(t, "anna")
	p := app.post(t, leo, "original")
	editPath := fmt.Sprintf("/leo/%d/edit/", p.ID)
	postPath := fmt.Sprintf("/leo/%d/", p.ID)

	anna := app.login(t, "anna")
	w := app.get(t, editPath, anna)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, postPath, w.Header().Get("Location"))

	w = app.postForm(t, editPath, url.Values{"text": {"hijacked"}}, anna)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, postPath, w.Header().Get("Location"))

	var stored models.Post
	require.NoError(t, app.db.First(&stored, p.ID).Error)
	assert.Equal(t, "original", stored.Text)

	owner := app.login(t, "leo")
	w = app.get(t, editPath, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "original")

	w = app.postForm(t, editPath, url.Values{"text": {"edited"}}, owner)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, postPath, w.Header().Get("Location"))
	require.NoError(t, app.db.First(&stored, p.ID).Error)
	assert.Equal(t, "edited", stored.Text)
}

func TestSignup(t *testing.T) {
	app := newTestApp(t, "none")

	w := app.get(t, "/auth/signup/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.postForm(t, "/auth/signup/", url.Values{
		"username":  {"new"},
		"password":  {testPassword},
		"password2": {testPassword},
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Это имя зарезервировано.")

	w = app.postForm(t, "/auth/signup/", url.Values{
		"username":  {"leo"},
		"email":     {"leo@example.com"},
		"password":  {testPassword},
		"password2": {testPassword},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/", w.Header().Get("Location"))
	assert.Equal(t, int64(1), app.count(t, &models.User{}))
}

func TestLoginHonoursNext(t *testing.T) {
	app := newTestApp(t, "none")
	app.user(t, "leo")

	w := app.postForm(t, "/auth/login/", url.Values{
		"username": {"leo"}, "password": {testPassword}, "next": {"/follow/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/follow/", w.Header().Get("Location"))

	w = app.postForm(t, "/auth/login/", url.Values{
		"username": {"leo"}, "password": {testPassword}, "next": {"//evil.example"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = app.postForm(t, "/auth/login/", url.Values{"username": {"leo"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.get(t, "/auth/login/?next=%2Fnew%2F", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="/new/"`)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t, "none")
	app.user(t, "leo")
	cookies := app.login(t, "leo")

	w := app.get(t, "/auth/logout/", cookies)
	require.Equal(t, http.StatusFound, w.Code)

	w = app.get(t, "/follow/", w.Result().Cookies())
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestNotFoundPages(t *testing.T) {
	app := newTestApp(t, "none")
	app.user(t, "leo")

	for _, path := range []string{"/ghost/", "/leo/999/", "/leo/abc/", "/group/missing/", "/no/such/page/here/"} {
		w := app.get(t, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "Ошибка 404", path)
	}
}

func TestPaginationQuery(t *testing.T) {
	app := newTestApp(t, "none")
	leo := app.user(t, "leo")
	for i := 0; i < 12; i++ {
		app.post(t, leo, fmt.Sprintf("numbered %02d", i))
	}

	w := app.get(t, "/?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "numbered 00")
	assert.NotContains(t, w.Body.String(), "numbered 11")

	for _, page := range []string{"abc", "0", "99"} {
		w := app.get(t, "/?page="+page, nil)
		assert.Equal(t, http.StatusOK, w.Code, page)
	}
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, "none")
	w := app.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
