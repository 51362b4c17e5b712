package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"socialnet/internal/entity"
	"socialnet/internal/repository"
	"socialnet/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength      = 8
	maxUsernameAttempts    = 5
	usernameSuffixMin      = 1000
	usernameSuffixSpan     = 9000
	defaultPasswordHashing = bcrypt.DefaultCost
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrNameRequired     = fmt.Errorf("%w: name is required", ErrInvalidInput)
	ErrInvalidEmail     = fmt.Errorf("%w: please provide a valid email", ErrInvalidInput)
	ErrPasswordTooShort = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)

	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailAlreadyTaken    = errors.New("user already exists with this email")
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrInvalidSession       = errors.New("not authorized, token failed")
	ErrUserNoLongerExists   = errors.New("user no longer exists")
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,10})+$`)

type AuthUsecase interface {
	Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error)
	Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (entity.AuthResponse, error)
	GetUser(ctx context.Context, userId string) (entity.User, error)

	// ResolveAccessToken and ResolveRefreshToken map a presented credential to its user.
	// They fail with ErrInvalidSession or ErrUserNoLongerExists; any other error is a store failure.
	ResolveAccessToken(ctx context.Context, token string) (entity.User, error)
	ResolveRefreshToken(ctx context.Context, token string) (entity.User, error)
}

type authUsecase struct {
	userRepo   repository.UserRepository
	jwtManager *jwt.JWTManager
	hashCost   int
	suffix     func() int
}

func NewAuthUsecase(userRepo repository.UserRepository, jwtManager *jwt.JWTManager) AuthUsecase {
	return &authUsecase{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		hashCost:   defaultPasswordHashing,
		suffix: func() int {
			return usernameSuffixMin + rand.IntN(usernameSuffixSpan)
		},
	}
}

func (u *authUsecase) Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	if name == "" {
		return entity.AuthResponse{}, ErrNameRequired
	}
	if !emailPattern.MatchString(email) {
		return entity.AuthResponse{}, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return entity.AuthResponse{}, ErrPasswordTooShort
	}

	emailExists, err := u.userRepo.EmailExists(ctx, email)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if emailExists {
		return entity.AuthResponse{}, ErrEmailAlreadyTaken
	}

	if username != "" {
		usernameExists, err := u.userRepo.UsernameExists(ctx, username)
		if err != nil {
			return entity.AuthResponse{}, err
		}
		if usernameExists {
			return entity.AuthResponse{}, ErrUsernameAlreadyTaken
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), u.hashCost)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	user := entity.User{
		Name:     name,
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
	}

	user.Id, err = u.createUser(ctx, &user, username == "")
	if err != nil {
		return entity.AuthResponse{}, err
	}

	return u.issue(user)
}

// createUser persists user. A generated username is re-rolled when it collides; a chosen one is not.
func (u *authUsecase) createUser(ctx context.Context, user *entity.User, generated bool) (string, error) {
	localPart, _, _ := strings.Cut(user.Email, "@")

	for attempt := 0; ; attempt++ {
		if generated {
			user.Username = localPart + strconv.Itoa(u.suffix())
		}

		userId, err := u.userRepo.Create(ctx, *user)
		switch {
		case err == nil:
			return userId, nil
		case errors.Is(err, repository.ErrDuplicateEmail):
			return "", ErrEmailAlreadyTaken
		case errors.Is(err, repository.ErrDuplicateUsername):
			if !generated || attempt+1 >= maxUsernameAttempts {
				return "", ErrUsernameAlreadyTaken
			}
		default:
			return "", err
		}
	}
}

func (u *authUsecase) Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error) {
	user, err := u.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.AuthResponse{}, ErrInvalidCredentials
		}
		return entity.AuthResponse{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password))
	if err != nil {
		return entity.AuthResponse{}, ErrInvalidCredentials
	}

	return u.issue(user)
}

// Refresh trades a valid refresh token for a fresh token pair.
func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (entity.AuthResponse, error) {
	user, err := u.ResolveRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return entity.AuthResponse{}, ErrInvalidRefreshToken
		}
		return entity.AuthResponse{}, err
	}

	return u.issue(user)
}

func (u *authUsecase) GetUser(ctx context.Context, userId string) (entity.User, error) {
	user, err := u.userRepo.Get(ctx, userId)
	if err != nil {
		return entity.User{}, err
	}

	return user.Public(), nil
}

func (u *authUsecase) ResolveAccessToken(ctx context.Context, token string) (entity.User, error) {
	userId, err := u.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return entity.User{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return u.loadSessionUser(ctx, userId)
}

func (u *authUsecase) ResolveRefreshToken(ctx context.Context, token string) (entity.User, error) {
	userId, err := u.jwtManager.ValidateRefreshToken(token)
	if err != nil {
		return entity.User{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return u.loadSessionUser(ctx, userId)
}

func (u *authUsecase) loadSessionUser(ctx context.Context, userId string) (entity.User, error) {
	user, err := u.userRepo.Get(ctx, userId)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.User{}, ErrUserNoLongerExists
		}
		return entity.User{}, err
	}

	return user.Public(), nil
}

func (u *authUsecase) issue(user entity.User) (entity.AuthResponse, error) {
	accessToken, err := u.jwtManager.GenerateAccessToken(user.Id)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	refreshToken, err := u.jwtManager.GenerateRefreshToken(user.Id)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	return entity.AuthResponse{
		User:         user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
