package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/alphabot-ai/feedline/internal/auth"
	"github.com/alphabot-ai/feedline/internal/client"
)

var users = []struct {
	name  string
	email string
}{
	{"ada", "ada@example.com"},
	{"grace", "grace@example.com"},
	{"linus", "linus@example.com"},
	{"margaret", "margaret@example.com"},
	{"ken", "ken@example.com"},
}

const password = "feedline-demo"

var posts = []string{
	"Shipped the new release this morning. Coffee is the real MVP.",
	"Anyone else think tabs vs spaces is a solved problem by now?",
	"Reading old RFCs on a rainy afternoon.",
	"Hot take: the best code review comment is a question.",
	"Finally moved the side project to a proper database.",
	"Wrote a parser today. It parses. Mostly.",
	"What is everyone reading this week?",
	"Deleted 400 lines and the tests still pass.",
}

var comments = []string{
	"Congrats!",
	"Strongly disagree, but I respect it.",
	"Same here.",
	"Tell me more.",
	"This made my day.",
	"Bookmarking this.",
	"Ha, relatable.",
}

// staticToken hands a fixed access token to the client.
type staticToken string

func (t staticToken) AccessToken(context.Context) (string, error) { return string(t), nil }

type member struct {
	name string
	id   int64
	api  *client.Client
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000/api/", "API base URL")
	flag.Parse()

	ctx := context.Background()
	anon := client.New(*baseURL, nil)
	anon.HTTPClient.Timeout = 10 * time.Second

	log.Printf("Seeding %s...", *baseURL)

	var members []member
	for _, u := range users {
		if res := anon.Register(ctx, u.name, password, u.email); !res.OK() {
			log.Printf("register %s: %v (logging in anyway)", u.name, res.Err())
		}
		tokens, res := anon.Login(ctx, u.name, password)
		if !res.OK() {
			log.Fatalf("login %s: %v", u.name, res.Err())
		}
		id, _ := auth.UserIDFromToken(tokens.Access)
		members = append(members, member{name: u.name, id: id, api: anon.WithTokens(staticToken(tokens.Access))})
		log.Printf("✓ User %s (#%d)", u.name, id)
	}

	for _, text := range posts {
		m := members[rand.Intn(len(members))]
		if res := m.api.CreatePost(ctx, text); !res.OK() {
			log.Printf("✗ post by %s: %v", m.name, res.Err())
			continue
		}
		log.Printf("✓ Post by %s", m.name)
	}

	feed, res := members[0].api.ListPosts(ctx)
	if !res.OK() {
		log.Fatalf("list posts: %v", res.Err())
	}

	var likes, replies int
	for _, p := range feed {
		for i := rand.Intn(3); i > 0; i-- {
			m := members[rand.Intn(len(members))]
			if res := m.api.AddComment(ctx, p.ID, comments[rand.Intn(len(comments))]); res.OK() {
				replies++
			}
		}
		for _, m := range members {
			if rand.Float32() < 0.4 && m.api.ToggleLike(ctx, p.ID).OK() {
				likes++
			}
		}
	}

	var follows int
	for _, m := range members {
		for _, other := range members {
			if other.id == m.id || rand.Float32() < 0.5 {
				continue
			}
			if m.api.ToggleFollow(ctx, other.id).OK() {
				follows++
			}
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Users:    %d (password %q)\n", len(members), password)
	fmt.Printf("Posts:    %d\n", len(feed))
	fmt.Printf("Comments: %d\n", replies)
	fmt.Printf("Likes:    %d\n", likes)
	fmt.Printf("Follows:  %d\n", follows)
}
