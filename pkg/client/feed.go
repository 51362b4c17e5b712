package client

import (
	"context"
	"sync"
)

const DefaultPageSize = 10

// FeedPager drives infinite scrolling over the offset-paginated feed. Posts already seen
// are skipped, since inserts between page loads shift later pages.
type FeedPager struct {
	c     *Client
	limit int

	mu      sync.Mutex
	page    int
	hasMore bool
	seen    map[string]struct{}
	posts   []Post
}

func (c *Client) NewFeedPager(limit int) *FeedPager {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	p := &FeedPager{c: c, limit: limit}
	p.reset()
	return p
}

// Next loads the next page and returns only the posts not seen before. A page shorter than
// the page size ends the feed; after that Next returns nothing without a request.
func (p *FeedPager) Next(ctx context.Context) ([]Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasMore {
		return nil, nil
	}

	feed, err := p.c.ListPosts(ctx, p.page, p.limit)
	if err != nil {
		return nil, err
	}

	fresh := make([]Post, 0, len(feed.Posts))
	for _, post := range feed.Posts {
		if _, dup := p.seen[post.Id]; dup {
			continue
		}
		p.seen[post.Id] = struct{}{}
		fresh = append(fresh, post)
	}

	p.posts = append(p.posts, fresh...)
	p.hasMore = len(feed.Posts) == p.limit
	p.page++
	return fresh, nil
}

func (p *FeedPager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Posts returns everything loaded so far, newest first.
func (p *FeedPager) Posts() []Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Post, len(p.posts))
	copy(out, p.posts)
	return out
}

// Reset starts over from the first page, e.g. after the user created a post.
func (p *FeedPager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func (p *FeedPager) reset() {
	p.page = 1
	p.hasMore = true
	p.seen = make(map[string]struct{})
	p.posts = nil
}
