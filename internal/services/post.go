package services

import (
	"context"
	"log/slog"
	"strings"

	"yatube/internal/models"
	"yatube/internal/validator"

	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostInput is what the post form submits. The author is never part of it.
type PostInput struct {
	Text    string
	GroupID *uint
	Image   *Upload
}

type PostService struct {
	db     *gorm.DB
	images *ImageStore
	log    *slog.Logger
}

func NewPostService(db *gorm.DB, images *ImageStore, log *slog.Logger) *PostService {
	return &PostService{db: db, images: images, log: log}
}

// Create stores a new post authored by actor.
func (s *PostService) Create(ctx context.Context, actor *models.User, in PostInput) (*models.Post, error) {
	if actor == nil {
		return nil, xerrors.New("create post requires an actor")
	}
	ext, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		Text:     in.Text,
		AuthorID: actor.ID,
		GroupID:  in.GroupID,
	}
	if in.Image != nil {
		if post.Image, err = s.images.Save(in.Image.Data, ext); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&post).Error; err != nil {
		s.discardImage(post.Image)
		return nil, xerrors.New(err)
	}
	post.Author = *actor
	return &post, nil
}

// Get loads a post only when it belongs to username.
func (s *PostService) Get(ctx context.Context, username string, postID uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Group").
		Where("posts.id = ? AND posts.author_id = (?)", postID,
			s.db.Model(&models.User{}).Select("id").Where("username = ?", username)).
		First(&post).Error
	if err != nil {
		return nil, dbError(err)
	}
	return &post, nil
}

// Update replaces text and group, and the image when a new one is uploaded.
// Only the author may edit; anyone else gets ErrNotAuthor and nothing changes.
func (s *PostService) Update(ctx context.Context, actor *models.User, username string, postID uint, in PostInput) (*models.Post, error) {
	post, err := s.Get(ctx, username, postID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.ID != post.AuthorID {
		return post, xerrors.New(ErrNotAuthor)
	}

	ext, err := s.validate(ctx, in)
	if err != nil {
		return post, err
	}

	oldImage := post.Image
	newImage := ""
	if in.Image != nil {
		if newImage, err = s.images.Save(in.Image.Data, ext); err != nil {
			return post, err
		}
	}

	// nil 写入 NULL，帖子移出分组
	var groupID interface{}
	if in.GroupID != nil {
		groupID = *in.GroupID
	}
	updates := map[string]interface{}{
		"text":     in.Text,
		"group_id": groupID,
	}
	if newImage != "" {
		updates["image"] = newImage
	}
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Updates(updates).Error; err != nil {
		s.discardImage(newImage)
		return post, xerrors.New(err)
	}
	if newImage != "" {
		s.discardImage(oldImage)
	}

	return s.Get(ctx, username, postID)
}

func (s *PostService) validate(ctx context.Context, in PostInput) (string, error) {
	v := validator.New()
	v.CheckNotBlank(in.Text, "text", "Обязательное поле.")
	if in.GroupID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", *in.GroupID).Count(&count).Error; err != nil {
			return "", xerrors.New(err)
		}
		v.Check(count > 0, "group", "Выберите корректный вариант. Вашего варианта нет среди допустимых значений.")
	}

	var ext string
	if in.Image != nil {
		var err error
		if ext, err = s.images.Validate(in.Image); err != nil {
			v.AddError("image", err.Error())
		}
	}

	if !v.IsValid() {
		return "", &ValidationError{Fields: v.Errors}
	}
	return ext, nil
}

func (s *PostService) discardImage(name string) {
	if err := s.images.Delete(name); err != nil {
		s.log.Warn("Failed to remove image blob", slog.String("image", name), slog.Any("error", err))
	}
}

// ListGroups returns all groups for the post form.
func (s *PostService) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).Order("title ASC").Find(&groups).Error; err != nil {
		return nil, xerrors.New(err)
	}
	return groups, nil
}

// TrimText normalises line endings from browser textareas.
func TrimText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
