package http

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"socialnet/infrastructure/storage"
	"socialnet/internal/entity"
	"socialnet/internal/repository"
)

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]entity.User
	err   error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]entity.User{}}
}

func (r *memUserRepo) Get(_ context.Context, userId string) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return entity.User{}, r.err
	}
	if u, ok := r.users[userId]; ok {
		return u, nil
	}
	return entity.User{}, repository.ErrUserNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return entity.User{}, repository.ErrUserNotFound
}

func (r *memUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *memUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) Create(_ context.Context, user entity.User) (string, error) {
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
	r.seq++
	user.Id = fmt.Sprintf("user-%d", r.seq)
	r.users[user.Id] = user
	return user.Id, nil
}

func (r *memUserRepo) remove(userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userId)
}

type memPostRepo struct {
	mu     sync.Mutex
	posts  []entity.Post
	writes int
}

func (r *memPostRepo) Create(_ context.Context, post entity.Post) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	post.Id = fmt.Sprintf("post-%03d", len(r.posts)+1)
	post.CreatedAt = time.Date(2026, 1, 1, 0, 0, len(r.posts), 0, time.UTC)
	r.posts = append(r.posts, post)
	return post.Id, nil
}

func (r *memPostRepo) Get(_ context.Context, postId string) (entity.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Id == postId {
			p.Likes = slices.Clone(p.Likes)
			p.Comments = slices.Clone(p.Comments)
			return p, nil
		}
	}
	return entity.Post{}, repository.ErrPostNotFound
}

// List pages over the posts newest first; creation order matches CreatedAt order here.
func (r *memPostRepo) List(_ context.Context, offset, limit int) ([]entity.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Post{}
	for i := len(r.posts) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.posts[i])
	}
	return out, nil
}

func (r *memPostRepo) PushComment(_ context.Context, postId string, comment entity.Comment) error {
	return r.update(postId, func(p *entity.Post) { p.Comments = append(p.Comments, comment) })
}

func (r *memPostRepo) ToggleLike(_ context.Context, postId, userId string) (bool, error) {
	var liked bool
	err := r.update(postId, func(p *entity.Post) {
		liked = !p.Liked(userId)
		if liked {
			p.Likes = append(p.Likes, userId)
		} else {
			p.Likes = slices.DeleteFunc(p.Likes, func(id string) bool { return id == userId })
		}
	})
	return liked, err
}

func (r *memPostRepo) update(postId string, fn func(*entity.Post)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for i := range r.posts {
		if r.posts[i].Id == postId {
			fn(&r.posts[i])
			return nil
		}
	}
	return repository.ErrPostNotFound
}

func (r *memPostRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type memStorage struct {
	mu      sync.Mutex
	uploads int
}

func (s *memStorage) Upload(_ context.Context, key, _ string, _ []byte) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	return storage.Object{Key: key, URL: "http://cdn.test/" + key}, nil
}

func (s *memStorage) Delete(context.Context, string) error { return nil }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

var errStoreDown = errors.New("store down")
