package usecase

import (
	"context"
	"fmt"
	"math"

	"socialnet/internal/entity"
	"socialnet/internal/repository"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 50
)

var (
	ErrInvalidPage  = fmt.Errorf("%w: page must be a positive integer", ErrInvalidInput)
	ErrInvalidLimit = fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxLimit)
)

type FeedUsecase interface {
	// ListPosts returns one page of the feed, newest first. A page shorter than limit is the last one.
	ListPosts(ctx context.Context, page, limit int) (entity.FeedPage, error)
}

type feedUsecase struct {
	postRepo repository.PostRepository
}

func NewFeedUsecase(postRepo repository.PostRepository) FeedUsecase {
	return &feedUsecase{
		postRepo: postRepo,
	}
}

func (u *feedUsecase) ListPosts(ctx context.Context, page, limit int) (entity.FeedPage, error) {
	if limit < 1 || limit > MaxLimit {
		return entity.FeedPage{}, ErrInvalidLimit
	}
	// the offset (page-1)*limit must fit in an int
	if page < 1 || page-1 > math.MaxInt/limit {
		return entity.FeedPage{}, ErrInvalidPage
	}

	posts, err := u.postRepo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return entity.FeedPage{}, err
	}

	views := entity.NewPostViews(posts)
	return entity.FeedPage{
		Posts: views,
		Page:  page,
		Limit: limit,
		Count: len(views),
	}, nil
}
