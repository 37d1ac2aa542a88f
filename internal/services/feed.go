package services

import (
	"context"
	"math"

	"yatube/internal/models"

	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
)

const PageSize = 10

// Page is one page of a feed.
type Page struct {
	Posts      []models.Post
	Number     int
	TotalPages int
	Total      int64
}

func (p *Page) HasPrev() bool { return p.Number > 1 }

func (p *Page) HasNext() bool { return p.Number < p.TotalPages }

func (p *Page) PrevNumber() int { return p.Number - 1 }

func (p *Page) NextNumber() int { return p.Number + 1 }

// ClampPage maps any requested page number onto [1, totalPages].
func ClampPage(requested, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	switch {
	case requested < 1:
		return 1
	case requested > totalPages:
		return totalPages
	default:
		return requested
	}
}

// Profile is an author page: their posts plus follow state and counters.
type Profile struct {
	Author         models.User
	Page           *Page
	IsFollowing    bool
	FollowerCount  int64
	FollowingCount int64
}

// PostDetail is a single post with its comments oldest first.
type PostDetail struct {
	Post        models.Post
	Comments    []models.Comment
	IsFollowing bool
	PostCount   int64
}

type FeedService struct {
	db *gorm.DB
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{db: db}
}

// Global returns every post, newest first.
func (s *FeedService) Global(ctx context.Context, page int) (*Page, error) {
	return s.paginate(ctx, page, func(q *gorm.DB) *gorm.DB { return q })
}

// Group returns the posts of the group with the given slug.
func (s *FeedService) Group(ctx context.Context, slug string, page int) (*models.Group, *Page, error) {
	var group models.Group
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, nil, dbError(err)
	}

	p, err := s.paginate(ctx, page, func(q *gorm.DB) *gorm.DB {
		return q.Where("posts.group_id = ?", group.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	return &group, p, nil
}

// Profile returns the author's posts. viewer may be nil.
func (s *FeedService) Profile(ctx context.Context, username string, viewer *models.User, page int) (*Profile, error) {
	var author models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&author).Error; err != nil {
		return nil, dbError(err)
	}

	p, err := s.paginate(ctx, page, func(q *gorm.DB) *gorm.DB {
		return q.Where("posts.author_id = ?", author.ID)
	})
	if err != nil {
		return nil, err
	}

	profile := &Profile{Author: author, Page: p}
	if profile.IsFollowing, err = s.isFollowing(ctx, viewer, author.ID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).Where("author_id = ?", author.ID).Count(&profile.FollowerCount).Error; err != nil {
		return nil, xerrors.New(err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).Where("user_id = ?", author.ID).Count(&profile.FollowingCount).Error; err != nil {
		return nil, xerrors.New(err)
	}
	return profile, nil
}

// Following returns posts whose author is followed by viewer. Callers must
// reject anonymous viewers before calling.
func (s *FeedService) Following(ctx context.Context, viewer *models.User, page int) (*Page, error) {
	if viewer == nil {
		return nil, xerrors.New("follow feed requires an authenticated viewer")
	}
	return s.paginate(ctx, page, func(q *gorm.DB) *gorm.DB {
		followed := s.db.Model(&models.Follow{}).Select("author_id").Where("user_id = ?", viewer.ID)
		return q.Where("posts.author_id IN (?)", followed)
	})
}

// Post loads a post only when it belongs to username.
func (s *FeedService) Post(ctx context.Context, username string, postID uint, viewer *models.User) (*PostDetail, error) {
	var author models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&author).Error; err != nil {
		return nil, dbError(err)
	}

	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Group").
		Where("id = ? AND author_id = ?", postID, author.ID).
		First(&post).Error
	if err != nil {
		return nil, dbError(err)
	}
	post.Author = author

	detail := &PostDetail{Post: post}
	err = s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&detail.Comments).Error
	if err != nil {
		return nil, xerrors.New(err)
	}
	detail.Post.CommentCount = len(detail.Comments)

	if detail.IsFollowing, err = s.isFollowing(ctx, viewer, post.AuthorID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", post.AuthorID).Count(&detail.PostCount).Error; err != nil {
		return nil, xerrors.New(err)
	}
	return detail, nil
}

func (s *FeedService) isFollowing(ctx context.Context, viewer *models.User, authorID uint) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", viewer.ID, authorID).
		Count(&count).Error
	if err != nil {
		return false, xerrors.New(err)
	}
	return count > 0, nil
}

func (s *FeedService) paginate(ctx context.Context, page int, scope func(*gorm.DB) *gorm.DB) (*Page, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, xerrors.New(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(PageSize)))
	if totalPages == 0 {
		totalPages = 1
	}
	number := ClampPage(page, totalPages)

	var posts []models.Post
	err := s.db.WithContext(ctx).Model(&models.Post{}).Scopes(scope).
		Preload("Author").
		Preload("Group").
		Order("posts.created_at DESC, posts.id DESC").
		Limit(PageSize).
		Offset((number - 1) * PageSize).
		Find(&posts).Error
	if err != nil {
		return nil, xerrors.New(err)
	}

	if err := s.fillCommentCounts(ctx, posts); err != nil {
		return nil, err
	}

	return &Page{Posts: posts, Number: number, TotalPages: totalPages, Total: total}, nil
}

// fillCommentCounts 批量填充帖子的评论数量
func (s *FeedService) fillCommentCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type CountResult struct {
		PostID uint
		Count  int
	}
	var results []CountResult
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&results).Error
	if err != nil {
		return xerrors.New(err)
	}

	countMap := make(map[uint]int, len(results))
	for _, r := range results {
		countMap[r.PostID] = r.Count
	}
	for i := range posts {
		posts[i].CommentCount = countMap[posts[i].ID]
	}
	return nil
}
