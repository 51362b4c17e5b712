package entity

import (
	"time"
)

type Post struct {
	Id        string    `bson:"_id" json:"id"`
	UserId    string    `bson:"userId" json:"userId"`
	Content   string    `bson:"content" json:"content"`
	Images    []string  `bson:"images" json:"images"`
	Likes     []string  `bson:"likes" json:"likes"`
	Comments  []Comment `bson:"comments" json:"comments"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// Author is filled by the $lookup stage on reads; it is never stored.
	Author *Author `bson:"author,omitempty" json:"-"`
}

type Comment struct {
	Id        string    `bson:"_id" json:"id"`
	UserId    string    `bson:"userId" json:"userId"`
	Name      string    `bson:"name" json:"name"`
	Username  string    `bson:"username" json:"username"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	Replies   []Reply   `bson:"replies" json:"replies"`
}

type Reply struct {
	Id        string    `bson:"_id" json:"id"`
	UserId    string    `bson:"userId" json:"userId"`
	Name      string    `bson:"name" json:"name"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// PostView is the read model sent to clients. Counts are derived when the view is built.
type PostView struct {
	Id           string    `json:"id"`
	User         *Author   `json:"user,omitempty"`
	Content      string    `json:"content"`
	Images       []string  `json:"images"`
	Likes        []string  `json:"likes"`
	LikeCount    int       `json:"likeCount"`
	Comments     []Comment `json:"comments"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewPostView(p Post) PostView {
	v := PostView{
		Id:           p.Id,
		User:         p.Author,
		Content:      p.Content,
		Images:       nonNil(p.Images),
		Likes:        nonNil(p.Likes),
		LikeCount:    len(p.Likes),
		Comments:     p.Comments,
		CommentCount: len(p.Comments),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if v.Comments == nil {
		v.Comments = []Comment{}
	}
	return v
}

func NewPostViews(posts []Post) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, NewPostView(p))
	}
	return views
}

// Liked reports whether userId is in the post's liker set.
func (p Post) Liked(userId string) bool {
	for _, id := range p.Likes {
		if id == userId {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type CommentRequest struct {
	Text string `json:"text"`
}

type LikeResponse struct {
	Liked     bool     `json:"liked"`
	LikeCount int      `json:"likeCount"`
	Post      PostView `json:"post"`
}

type FeedPage struct {
	Posts []PostView `json:"posts"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Count int        `json:"count"`
}

// ImageUpload is one image attached to a new post, already read from the request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}
