package model

import (
	"fmt"
	"time"
)

// Author is the short user projection embedded in posts and comments.
type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Post struct {
	ID         int64     `json:"id"`
	Author     Author    `json:"author"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	LikesCount int       `json:"likes_count"`
	Comments   []Comment `json:"comments"`
}

type UserProfile struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	// IsFollowing is only set by APIs that report the viewer's own
	// relationship to the profile.
	IsFollowing *bool `json:"is_following,omitempty"`
}

// Tokens is the pair issued by the token endpoint.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type ViewKind int

const (
	ViewNone ViewKind = iota
	ViewAuthPrompt
	ViewHomeFeed
	ViewProfile
)

func (k ViewKind) String() string {
	switch k {
	case ViewAuthPrompt:
		return "auth"
	case ViewHomeFeed:
		return "home"
	case ViewProfile:
		return "profile"
	default:
		return "none"
	}
}

// View identifies the single active view. UserID is only meaningful for
// ViewProfile.
type View struct {
	Kind   ViewKind
	UserID int64
}

func (v View) String() string {
	if v.Kind == ViewProfile {
		return fmt.Sprintf("profile(%d)", v.UserID)
	}
	return v.Kind.String()
}
