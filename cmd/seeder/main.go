package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"socialnet/pkg/client"

	"github.com/brianvoe/gofakeit/v6"
)

const seedPassword = "password123"

type account struct {
	api  *client.Client
	user client.User
}

func main() {
	baseURL := flag.String("server", "http://localhost:5000", "API base URL")
	users := flag.Int("users", 5, "number of users to register")
	posts := flag.Int("posts", 3, "posts per user")
	comments := flag.Int("comments", 10, "comments to spread over all posts")
	likes := flag.Int("likes", 20, "likes to spread over all posts")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	gofakeit.Seed(time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var accounts []account
	for i := 0; i < *users; i++ {
		api, err := client.New(client.Config{BaseURL: *baseURL})
		if err != nil {
			slog.Error("create client", "error", err)
			os.Exit(1)
		}

		user, err := api.Register(ctx, gofakeit.Name(), gofakeit.Email(), seedPassword)
		if err != nil {
			slog.Warn("register failed", "error", err)
			continue
		}
		slog.Info("registered", "username", user.Username, "email", user.Email)
		accounts = append(accounts, account{api: api, user: user})
	}
	if len(accounts) == 0 {
		slog.Error("no users registered, aborting")
		os.Exit(1)
	}

	var postIds []string
	for _, acc := range accounts {
		for i := 0; i < *posts; i++ {
			post, err := acc.api.CreatePost(ctx, gofakeit.Paragraph(1, gofakeit.Number(1, 4), 12, " "), nil)
			if err != nil {
				slog.Warn("create post failed", "username", acc.user.Username, "error", err)
				continue
			}
			postIds = append(postIds, post.Id)
		}
	}
	slog.Info("posts created", "count", len(postIds))
	if len(postIds) == 0 {
		return
	}

	for i := 0; i < *comments; i++ {
		acc := accounts[gofakeit.Number(0, len(accounts)-1)]
		postId := postIds[gofakeit.Number(0, len(postIds)-1)]
		if _, err := acc.api.Comment(ctx, postId, gofakeit.Sentence(gofakeit.Number(3, 15))); err != nil {
			slog.Warn("comment failed", "post", postId, "error", err)
		}
	}

	for i := 0; i < *likes; i++ {
		acc := accounts[gofakeit.Number(0, len(accounts)-1)]
		postId := postIds[gofakeit.Number(0, len(postIds)-1)]
		if _, err := acc.api.ToggleLike(ctx, postId); err != nil {
			slog.Warn("like failed", "post", postId, "error", err)
		}
	}

	slog.Info("seeding done", "users", len(accounts), "posts", len(postIds))
}
