package services

import (
	"context"

	"yatube/internal/models"

	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
)

type FollowService struct {
	db    *gorm.DB
	users *UserService
}

func NewFollowService(db *gorm.DB, users *UserService) *FollowService {
	return &FollowService{db: db, users: users}
}

// Follow makes actor follow the named author. Repeating it changes nothing.
func (s *FollowService) Follow(ctx context.Context, actor *models.User, username string) (*models.User, error) {
	if actor == nil {
		return nil, xerrors.New("follow requires an actor")
	}
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if author.ID == actor.ID {
		return author, xerrors.New(ErrSelfFollow)
	}

	follow := models.Follow{UserID: actor.ID, AuthorID: author.ID}
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", actor.ID, author.ID).
		Omit("User", "Author").
		FirstOrCreate(&follow).Error
	if err != nil {
		return nil, xerrors.New(err)
	}
	return author, nil
}

// Unfollow removes the relation if it exists. It never creates one.
func (s *FollowService) Unfollow(ctx context.Context, actor *models.User, username string) (*models.User, error) {
	if actor == nil {
		return nil, xerrors.New("unfollow requires an actor")
	}
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", actor.ID, author.ID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return nil, xerrors.New(err)
	}
	return author, nil
}

func (s *FollowService) FollowerCount(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).Where("author_id = ?", authorID).Count(&count).Error; err != nil {
		return 0, xerrors.New(err)
	}
	return count, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	if err != nil {
		return false, xerrors.New(err)
	}
	return count > 0, nil
}
