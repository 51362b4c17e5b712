package client

import "time"

type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Author struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Comment struct {
	Id        string    `json:"id"`
	UserId    string    `json:"userId"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Post struct {
	Id           string    `json:"id"`
	User         *Author   `json:"user,omitempty"`
	Content      string    `json:"content"`
	Images       []string  `json:"images"`
	Likes        []string  `json:"likes"`
	LikeCount    int       `json:"likeCount"`
	Comments     []Comment `json:"comments"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type FeedPage struct {
	Posts []Post `json:"posts"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Count int    `json:"count"`
}

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
	Post      Post `json:"post"`
}

// Image is a file attached to a new post.
type Image struct {
	Filename string
	Data     []byte
}
