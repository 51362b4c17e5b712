package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"socialnet/internal/entity"
	"socialnet/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 32)...)
)

var testAuthor = entity.User{Id: "user-1", Name: "Alice", Username: "alice1234", Email: "alice@example.com"}

type postFixture struct {
	uc        PostUsecase
	repo      *fakePostRepo
	storage   *fakeStorage
	publisher *recordingPublisher
}

func newPostFixture() postFixture {
	repo := newFakePostRepo()
	store := &fakeStorage{}
	pub := &recordingPublisher{}
	return postFixture{
		uc:        NewPostUsecase(repo, store, pub, 0),
		repo:      repo,
		storage:   store,
		publisher: pub,
	}
}

func (f postFixture) createTextPost(t *testing.T, content string) entity.PostView {
	t.Helper()
	post, err := f.uc.CreatePost(context.Background(), testAuthor, content, nil)
	require.NoError(t, err)
	return post
}

func TestCreatePost_RejectsEmptyBeforeAnyWrite(t *testing.T) {
	f := newPostFixture()

	_, err := f.uc.CreatePost(context.Background(), testAuthor, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyPost)
	assert.ErrorIs(t, err, ErrInvalidInput)

	uploads, deletes := f.storage.calls()
	assert.Zero(t, uploads)
	assert.Zero(t, deletes)
	assert.Zero(t, f.repo.writeCount())
	assert.Empty(t, f.publisher.types())
}

func TestCreatePost_ValidatesImages(t *testing.T) {
	tooMany := make([]entity.ImageUpload, DefaultMaxPostImages+1)
	for i := range tooMany {
		tooMany[i] = entity.ImageUpload{Filename: "a.png", Data: pngBytes}
	}

	tests := []struct {
		name   string
		images []entity.ImageUpload
		want   error
	}{
		{"too many", tooMany, ErrTooManyImages},
		{"not an image", []entity.ImageUpload{{Filename: "a.txt", Data: []byte("hello world")}}, ErrUnsupportedImage},
		{"empty file", []entity.ImageUpload{{Filename: "a.png"}}, ErrUnsupportedImage},
		{"too large", []entity.ImageUpload{{Filename: "a.png", Data: append(pngBytes, make([]byte, MaxImageSize)...)}}, ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture()
			_, err := f.uc.CreatePost(context.Background(), testAuthor, "caption", tt.images)
			assert.ErrorIs(t, err, tt.want)

			uploads, _ := f.storage.calls()
			assert.Zero(t, uploads)
			assert.Zero(t, f.repo.writeCount())
		})
	}
}

func TestCreatePost_WithImages(t *testing.T) {
	f := newPostFixture()

	post, err := f.uc.CreatePost(context.Background(), testAuthor, "  holiday  ", []entity.ImageUpload{
		{Filename: "a.png", Data: pngBytes},
		{Filename: "b.jpg", Data: jpegBytes},
	})
	require.NoError(t, err)

	assert.Equal(t, "holiday", post.Content)
	require.Len(t, post.Images, 2)
	assert.True(t, strings.HasSuffix(post.Images[0], ".png"))
	assert.True(t, strings.HasSuffix(post.Images[1], ".jpg"))
	assert.Zero(t, post.LikeCount)
	assert.Zero(t, post.CommentCount)
	assert.Equal(t, []string{entity.EventPostCreated}, f.publisher.types())
}

func TestCreatePost_UploadFailureRemovesUploadedImages(t *testing.T) {
	f := newPostFixture()
	f.storage.failType = "image/jpeg"

	_, err := f.uc.CreatePost(context.Background(), testAuthor, "", []entity.ImageUpload{
		{Filename: "a.png", Data: pngBytes},
		{Filename: "b.jpg", Data: jpegBytes},
		{Filename: "c.png", Data: pngBytes},
	})
	require.Error(t, err)

	var uploadedKeys []string
	for _, obj := range f.storage.uploaded {
		uploadedKeys = append(uploadedKeys, obj.Key)
	}
	assert.Len(t, uploadedKeys, 2)
	assert.ElementsMatch(t, uploadedKeys, f.storage.deleted)
	assert.Zero(t, f.repo.writeCount())
}

func TestCreatePost_StoreFailureRemovesUploadedImages(t *testing.T) {
	f := newPostFixture()
	f.repo.failErr = errors.New("write conflict")

	_, err := f.uc.CreatePost(context.Background(), testAuthor, "", []entity.ImageUpload{
		{Filename: "a.png", Data: pngBytes},
	})
	assert.EqualError(t, err, "write conflict")

	uploads, deletes := f.storage.calls()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, deletes)
}

func TestCreatePost_PublishFailureIsNotFatal(t *testing.T) {
	f := newPostFixture()
	f.publisher.err = errors.New("broker down")

	post := f.createTextPost(t, "still saved")
	assert.NotEmpty(t, post.Id)
}

func TestAddComment_AppendsOne(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	post := f.createTextPost(t, "first")

	commenter := entity.User{Id: "user-2", Name: "Bob", Username: "bob5555"}
	_, err := f.uc.AddComment(ctx, post.Id, commenter, "earlier")
	require.NoError(t, err)

	before, err := f.uc.GetPost(ctx, post.Id)
	require.NoError(t, err)

	updated, err := f.uc.AddComment(ctx, post.Id, commenter, "  nice post  ")
	require.NoError(t, err)
	assert.Equal(t, before.CommentCount+1, updated.CommentCount)

	after, err := f.uc.GetPost(ctx, post.Id)
	require.NoError(t, err)
	require.Len(t, after.Comments, len(before.Comments)+1)

	last := after.Comments[len(after.Comments)-1]
	assert.Equal(t, "nice post", last.Text)
	assert.Equal(t, "user-2", last.UserId)
	assert.Equal(t, "Bob", last.Name)
	assert.Equal(t, "bob5555", last.Username)
	assert.NotEmpty(t, last.Id)

	assert.Equal(t, []string{entity.EventPostCreated, entity.EventCommentAdded, entity.EventCommentAdded}, f.publisher.types())
}

func TestAddComment_Errors(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	post := f.createTextPost(t, "first")

	_, err := f.uc.AddComment(ctx, post.Id, testAuthor, " \n ")
	assert.ErrorIs(t, err, ErrCommentTextRequired)

	_, err = f.uc.AddComment(ctx, post.Id, testAuthor, strings.Repeat("x", MaxCommentLength+1))
	assert.ErrorIs(t, err, ErrCommentTooLong)

	_, err = f.uc.AddComment(ctx, "missing", testAuthor, "hello")
	assert.ErrorIs(t, err, repository.ErrPostNotFound)
}

func TestToggleLike_TwiceRestoresLikers(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	post := f.createTextPost(t, "like me")

	_, err := f.uc.ToggleLike(ctx, post.Id, "user-9")
	require.NoError(t, err)
	before, err := f.uc.GetPost(ctx, post.Id)
	require.NoError(t, err)

	first, err := f.uc.ToggleLike(ctx, post.Id, "user-2")
	require.NoError(t, err)
	assert.True(t, first.Liked)
	assert.Equal(t, 2, first.LikeCount)
	assert.Contains(t, first.Post.Likes, "user-2")

	second, err := f.uc.ToggleLike(ctx, post.Id, "user-2")
	require.NoError(t, err)
	assert.False(t, second.Liked)
	assert.Equal(t, before.Likes, second.Post.Likes)
	assert.Equal(t, before.LikeCount, second.LikeCount)
}

func TestToggleLike_UnknownPost(t *testing.T) {
	f := newPostFixture()

	_, err := f.uc.ToggleLike(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, repository.ErrPostNotFound)
}
