package repository

import (
	"context"
	"errors"
	"time"

	"socialnet/infrastructure/db"
	"socialnet/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrPostNotFound = errors.New("post not found")

type PostRepository interface {
	Create(ctx context.Context, post entity.Post) (string, error)
	Get(ctx context.Context, postId string) (entity.Post, error)
	List(ctx context.Context, offset, limit int) ([]entity.Post, error)
	PushComment(ctx context.Context, postId string, comment entity.Comment) error
	ToggleLike(ctx context.Context, postId, userId string) (bool, error)
}

type postRepository struct {
	db *mongo.Database
}

func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{
		db: db,
	}
}

func (r *postRepository) Create(ctx context.Context, post entity.Post) (string, error) {
	collection := r.db.Collection(db.PostsCollection)
	post.Id = uuid.New().String()
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Images == nil {
		post.Images = []string{}
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Comments == nil {
		post.Comments = []entity.Comment{}
	}
	post.Author = nil

	_, err := collection.InsertOne(ctx, post)
	if err != nil {
		return "", err
	}

	return post.Id, nil
}

// Get returns a post with its author joined.
func (r *postRepository) Get(ctx context.Context, postId string) (entity.Post, error) {
	collection := r.db.Collection(db.PostsCollection)

	matchStage := bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: postId}}}}
	pipeline := append(mongo.Pipeline{matchStage}, authorStages()...)

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return entity.Post{}, err
	}
	defer cursor.Close(ctx)

	var posts []entity.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return entity.Post{}, err
	}
	if len(posts) == 0 {
		return entity.Post{}, ErrPostNotFound
	}

	return posts[0], nil
}

// List returns one page of the feed, newest first. _id breaks createdAt ties so that a
// fixed dataset always yields the same pages.
func (r *postRepository) List(ctx context.Context, offset, limit int) ([]entity.Post, error) {
	collection := r.db.Collection(db.PostsCollection)

	sortStage := bson.D{{Key: "$sort", Value: bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	}}}
	skipStage := bson.D{{Key: "$skip", Value: int64(offset)}}
	limitStage := bson.D{{Key: "$limit", Value: int64(limit)}}

	pipeline := append(mongo.Pipeline{sortStage, skipStage, limitStage}, authorStages()...)

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := make([]entity.Post, 0, limit)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// PushComment appends the comment with a single $push so concurrent appends never overwrite
// each other.
func (r *postRepository) PushComment(ctx context.Context, postId string, comment entity.Comment) error {
	collection := r.db.Collection(db.PostsCollection)
	filter := bson.M{"_id": postId}

	if comment.Replies == nil {
		comment.Replies = []entity.Reply{}
	}

	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrPostNotFound
	}

	return nil
}

// ToggleLike flips userId's membership in the liker set in one pipeline update and reports
// whether the user likes the post afterwards.
func (r *postRepository) ToggleLike(ctx context.Context, postId, userId string) (bool, error) {
	collection := r.db.Collection(db.PostsCollection)
	filter := bson.M{"_id": postId}

	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{userId, likes}}}},
				{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: likes},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userId}}}},
				}}}},
				{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{userId}}}}},
			}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1})

	var post entity.Post
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrPostNotFound
		}
		return false, err
	}

	return post.Liked(userId), nil
}

func authorStages() mongo.Pipeline {
	lookupStage := bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: db.UsersCollection},
		{Key: "localField", Value: "userId"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "author"},
	}}}
	unwindStage := bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$author"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}
	projectStage := bson.D{{Key: "$project", Value: bson.D{
		{Key: "author.password", Value: 0},
		{Key: "author.createdAt", Value: 0},
		{Key: "author.updatedAt", Value: 0},
	}}}
	return mongo.Pipeline{lookupStage, unwindStage, projectStage}
}
