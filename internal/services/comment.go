package services

import (
	"context"

	"yatube/internal/models"
	"yatube/internal/validator"

	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// Add attaches a comment by actor to the post identified by (username, postID).
// A blank text is a ValidationError and nothing is stored.
func (s *CommentService) Add(ctx context.Context, actor *models.User, username string, postID uint, text string) (*models.Comment, error) {
	if actor == nil {
		return nil, xerrors.New("comment requires an actor")
	}

	var post models.Post
	err := s.db.WithContext(ctx).
		Select("posts.id").
		Where("posts.id = ? AND posts.author_id = (?)", postID,
			s.db.Model(&models.User{}).Select("id").Where("username = ?", username)).
		First(&post).Error
	if err != nil {
		return nil, dbError(err)
	}

	v := validator.New()
	v.CheckNotBlank(text, "text", "Обязательное поле.")
	if !v.IsValid() {
		return nil, &ValidationError{Fields: v.Errors}
	}

	comment := models.Comment{PostID: post.ID, AuthorID: actor.ID, Text: text}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&comment).Error; err != nil {
		return nil, xerrors.New(err)
	}
	comment.Author = *actor
	return &comment, nil
}

// CountForPost 返回帖子的评论数
func (s *CommentService) CountForPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, xerrors.New(err)
	}
	return count, nil
}
