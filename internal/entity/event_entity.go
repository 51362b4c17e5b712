package entity

import "time"

const (
	EventPostCreated  = "post.created"
	EventCommentAdded = "comment.added"
	EventPostLiked    = "post.liked"
	EventPostUnliked  = "post.unliked"
)

// FeedEvent is published after a successful write so that connected feeds can refresh.
type FeedEvent struct {
	Type      string    `json:"type"`
	PostId    string    `json:"postId"`
	ActorId   string    `json:"actorId"`
	Timestamp time.Time `json:"timestamp"`
}
