package main

import (
	"context"
	"flag"
	"log"
	"os"

	"socialnet/internal/cli"
	"socialnet/pkg/client"
)

func main() {
	baseURL := flag.String("server", envOr("SOCIALNET_URL", "http://localhost:5000"), "API base URL")
	sessionPath := flag.String("session", "", "session file (default: user config dir)")
	flag.Parse()

	if *sessionPath == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			log.Fatalf("session path: %v", err)
		}
		*sessionPath = p
	}

	c, err := client.New(client.Config{
		BaseURL:        *baseURL,
		Store:          client.NewFileStore(*sessionPath),
		OnUnauthorized: cli.SessionExpired(os.Stdout),
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	cli.NewApp(c, c.NewFeedPager(client.DefaultPageSize), os.Stdin, os.Stdout).Run(context.Background())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
