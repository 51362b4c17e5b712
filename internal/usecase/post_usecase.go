package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"socialnet/infrastructure/events"
	"socialnet/infrastructure/storage"
	"socialnet/internal/entity"
	"socialnet/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxPostImages = 4
	MaxImageSize         = 10 << 20
	MaxCommentLength     = 1000

	imagePrefix = "posts"
)

var (
	ErrEmptyPost           = fmt.Errorf("%w: post must have content or at least one image", ErrInvalidInput)
	ErrTooManyImages       = fmt.Errorf("%w: too many images", ErrInvalidInput)
	ErrImageTooLarge       = fmt.Errorf("%w: image exceeds 10MB", ErrInvalidInput)
	ErrUnsupportedImage    = fmt.Errorf("%w: only jpeg, png and webp images are allowed", ErrInvalidInput)
	ErrCommentTextRequired = fmt.Errorf("%w: comment text is required", ErrInvalidInput)
	ErrCommentTooLong      = fmt.Errorf("%w: comment must be at most %d characters", ErrInvalidInput, MaxCommentLength)
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type PostUsecase interface {
	CreatePost(ctx context.Context, author entity.User, content string, images []entity.ImageUpload) (entity.PostView, error)
	GetPost(ctx context.Context, postId string) (entity.PostView, error)
	AddComment(ctx context.Context, postId string, author entity.User, text string) (entity.PostView, error)
	ToggleLike(ctx context.Context, postId, userId string) (entity.LikeResponse, error)
}

type postUsecase struct {
	postRepo  repository.PostRepository
	storage   storage.ObjectStorage
	publisher events.Publisher
	maxImages int
	now       func() time.Time
}

func NewPostUsecase(postRepo repository.PostRepository, objectStorage storage.ObjectStorage, publisher events.Publisher, maxImages int) PostUsecase {
	if maxImages <= 0 {
		maxImages = DefaultMaxPostImages
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &postUsecase{
		postRepo:  postRepo,
		storage:   objectStorage,
		publisher: publisher,
		maxImages: maxImages,
		now:       time.Now,
	}
}

func (u *postUsecase) CreatePost(ctx context.Context, author entity.User, content string, images []entity.ImageUpload) (entity.PostView, error) {
	content = strings.TrimSpace(content)

	contentTypes, err := u.validatePost(content, images)
	if err != nil {
		return entity.PostView{}, err
	}

	objects, err := u.uploadImages(ctx, images, contentTypes)
	if err != nil {
		return entity.PostView{}, err
	}

	urls := make([]string, 0, len(objects))
	for _, obj := range objects {
		urls = append(urls, obj.URL)
	}

	postId, err := u.postRepo.Create(ctx, entity.Post{
		UserId:  author.Id,
		Content: content,
		Images:  urls,
	})
	if err != nil {
		u.discard(ctx, objects)
		return entity.PostView{}, err
	}

	post, err := u.postRepo.Get(ctx, postId)
	if err != nil {
		return entity.PostView{}, err
	}

	u.publish(ctx, entity.EventPostCreated, postId, author.Id)

	return entity.NewPostView(post), nil
}

// validatePost checks the whole request up front and returns the sniffed content type of each image.
func (u *postUsecase) validatePost(content string, images []entity.ImageUpload) ([]string, error) {
	if content == "" && len(images) == 0 {
		return nil, ErrEmptyPost
	}
	if len(images) > u.maxImages {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManyImages, u.maxImages)
	}

	contentTypes := make([]string, len(images))
	for i, img := range images {
		if len(img.Data) == 0 {
			return nil, ErrUnsupportedImage
		}
		if len(img.Data) > MaxImageSize {
			return nil, ErrImageTooLarge
		}
		contentType := http.DetectContentType(img.Data)
		if _, ok := imageExtensions[contentType]; !ok {
			return nil, ErrUnsupportedImage
		}
		contentTypes[i] = contentType
	}

	return contentTypes, nil
}

// uploadImages stores all images in parallel. If any upload fails the ones that succeeded are deleted.
func (u *postUsecase) uploadImages(ctx context.Context, images []entity.ImageUpload, contentTypes []string) ([]storage.Object, error) {
	if len(images) == 0 {
		return nil, nil
	}

	uploaded := make([]storage.Object, len(images))
	ok := make([]bool, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.maxImages)
	for i := range images {
		g.Go(func() error {
			key := storage.NewObjectKey(imagePrefix, imageExtensions[contentTypes[i]])
			obj, err := u.storage.Upload(gctx, key, contentTypes[i], images[i].Data)
			if err != nil {
				return fmt.Errorf("upload %s: %w", images[i].Filename, err)
			}
			uploaded[i] = obj
			ok[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var done []storage.Object
		for i, obj := range uploaded {
			if ok[i] {
				done = append(done, obj)
			}
		}
		u.discard(ctx, done)
		return nil, err
	}

	return uploaded, nil
}

func (u *postUsecase) discard(ctx context.Context, objects []storage.Object) {
	ctx = context.WithoutCancel(ctx)
	for _, obj := range objects {
		if err := u.storage.Delete(ctx, obj.Key); err != nil {
			slog.Warn("failed to delete orphaned image", "key", obj.Key, "error", err)
		}
	}
}

func (u *postUsecase) GetPost(ctx context.Context, postId string) (entity.PostView, error) {
	post, err := u.postRepo.Get(ctx, postId)
	if err != nil {
		return entity.PostView{}, err
	}

	return entity.NewPostView(post), nil
}

func (u *postUsecase) AddComment(ctx context.Context, postId string, author entity.User, text string) (entity.PostView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return entity.PostView{}, ErrCommentTextRequired
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return entity.PostView{}, ErrCommentTooLong
	}

	comment := entity.Comment{
		Id:        uuid.New().String(),
		UserId:    author.Id,
		Name:      author.Name,
		Username:  author.Username,
		Text:      text,
		CreatedAt: u.now().UTC(),
		Replies:   []entity.Reply{},
	}

	if err := u.postRepo.PushComment(ctx, postId, comment); err != nil {
		return entity.PostView{}, err
	}

	post, err := u.postRepo.Get(ctx, postId)
	if err != nil {
		return entity.PostView{}, err
	}

	u.publish(ctx, entity.EventCommentAdded, postId, author.Id)

	return entity.NewPostView(post), nil
}

func (u *postUsecase) ToggleLike(ctx context.Context, postId, userId string) (entity.LikeResponse, error) {
	liked, err := u.postRepo.ToggleLike(ctx, postId, userId)
	if err != nil {
		return entity.LikeResponse{}, err
	}

	post, err := u.postRepo.Get(ctx, postId)
	if err != nil {
		return entity.LikeResponse{}, err
	}

	eventType := entity.EventPostUnliked
	if liked {
		eventType = entity.EventPostLiked
	}
	u.publish(ctx, eventType, postId, userId)

	view := entity.NewPostView(post)
	return entity.LikeResponse{
		Liked:     liked,
		LikeCount: view.LikeCount,
		Post:      view,
	}, nil
}

// publish is best effort: the write already succeeded, so a failed notification is only logged.
func (u *postUsecase) publish(ctx context.Context, eventType, postId, actorId string) {
	err := u.publisher.Publish(ctx, entity.FeedEvent{
		Type:      eventType,
		PostId:    postId,
		ActorId:   actorId,
		Timestamp: u.now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("failed to publish feed event", "type", eventType, "postId", postId, "error", err)
	}
}
