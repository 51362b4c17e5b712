package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"socialnet/infrastructure/db"
	"socialnet/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

type UserRepository interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	GetByEmail(ctx context.Context, email string) (entity.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user entity.User) (string, error)
}

type userRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Get(ctx context.Context, userId string) (entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": userId})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, bson.M{"email": email})
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, bson.M{"username": username})
}

func (r *userRepository) Create(ctx context.Context, user entity.User) (string, error) {
	collection := r.db.Collection(db.UsersCollection)
	user.Id = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := collection.InsertOne(ctx, user)
	if err != nil {
		return "", duplicateKeyError(err)
	}

	return user.Id, nil
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (entity.User, error) {
	collection := r.db.Collection(db.UsersCollection)

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	collection := r.db.Collection(db.UsersCollection)

	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// duplicateKeyError maps a unique index violation to the field that caused it, keyed on the
// index name since the duplicated value itself may contain any field name.
// Other errors are returned unchanged.
func duplicateKeyError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "index: "+db.EmailIndex):
		return ErrDuplicateEmail
	case strings.Contains(msg, "index: "+db.UsernameIndex):
		return ErrDuplicateUsername
	}
	return err
}
