package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"socialnet/infrastructure/storage"
	"socialnet/internal/entity"
	"socialnet/internal/repository"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]entity.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]entity.User{}}
}

func (r *fakeUserRepo) Get(_ context.Context, userId string) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return entity.User{}, r.err
	}
	u, ok := r.users[userId]
	if !ok {
		return entity.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return entity.User{}, repository.ErrUserNotFound
}

func (r *fakeUserRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user entity.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return "", repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return "", repository.ErrDuplicateUsername
		}
	}
	user.Id = uuid.New().String()
	r.users[user.Id] = user
	return user.Id, nil
}

func (r *fakeUserRepo) delete(userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userId)
}

type fakePostRepo struct {
	mu      sync.Mutex
	posts   map[string]entity.Post
	base    time.Time
	seq     int
	writes  int
	failErr error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		posts: map[string]entity.Post{},
		base:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakePostRepo) Create(_ context.Context, post entity.Post) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.failErr != nil {
		return "", r.failErr
	}
	r.seq++
	post.Id = fmt.Sprintf("post-%03d", r.seq)
	post.CreatedAt = r.base.Add(time.Duration(r.seq) * time.Second)
	post.UpdatedAt = post.CreatedAt
	if post.Likes == nil {
		post.Likes = []string{}
	}
	r.posts[post.Id] = post
	return post.Id, nil
}

func (r *fakePostRepo) Get(_ context.Context, postId string) (entity.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postId]
	if !ok {
		return entity.Post{}, repository.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *fakePostRepo) List(_ context.Context, offset, limit int) ([]entity.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]entity.Post, 0, len(r.posts))
	for _, p := range r.posts {
		all = append(all, clonePost(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Id > all[j].Id
	})
	if offset >= len(all) {
		return []entity.Post{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *fakePostRepo) PushComment(_ context.Context, postId string, comment entity.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	p, ok := r.posts[postId]
	if !ok {
		return repository.ErrPostNotFound
	}
	p.Comments = append(p.Comments, comment)
	r.posts[postId] = p
	return nil
}

func (r *fakePostRepo) ToggleLike(_ context.Context, postId, userId string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	p, ok := r.posts[postId]
	if !ok {
		return false, repository.ErrPostNotFound
	}
	liked := !p.Liked(userId)
	if liked {
		p.Likes = append(p.Likes, userId)
	} else {
		p.Likes = slices.DeleteFunc(p.Likes, func(id string) bool { return id == userId })
	}
	r.posts[postId] = p
	return liked, nil
}

func (r *fakePostRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func clonePost(p entity.Post) entity.Post {
	p.Images = slices.Clone(p.Images)
	p.Likes = slices.Clone(p.Likes)
	p.Comments = slices.Clone(p.Comments)
	return p
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded []storage.Object
	deleted  []string
	failType string
}

func (s *fakeStorage) Upload(_ context.Context, key, contentType string, _ []byte) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contentType == s.failType {
		return storage.Object{}, errors.New("storage unavailable")
	}
	obj := storage.Object{Key: key, URL: "http://cdn.test/" + key}
	s.uploaded = append(s.uploaded, obj)
	return obj, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) calls() (uploads, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploaded), len(s.deleted)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.FeedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event entity.FeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
