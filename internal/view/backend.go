package view

import (
	"fmt"
	"time"

	"github.com/alphabot-ai/feedline/internal/model"
)

// Backend turns view data into markup. Backends never perform I/O other than
// writing to their own buffers.
type Backend interface {
	AuthPrompt(mode AuthMode) (string, error)
	HomeFeed() (string, error)
	Profile(ProfileData) (string, error)
	Posts([]PostData) (string, error)
	Message(text string) (string, error)
	Document(DocumentData) (string, error)
}

type CommentData struct {
	AuthorID   int64
	AuthorName string
	Content    string
}

type PostData struct {
	ID         int64
	AuthorID   int64
	AuthorName string
	Timestamp  string
	Content    string
	LikeLabel  string
	Comments   []CommentData
}

type ProfileData struct {
	ID             int64
	Username       string
	FollowersCount int
	FollowingCount int
	ShowFollow     bool
	FollowLabel    string
}

type DocumentData struct {
	Authenticated bool
	View          model.View
	Notices       []Notice
	Body          string
}

const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}

func likeLabel(n int) string {
	return fmt.Sprintf("Like (%d)", n)
}

// followLabel guesses the viewer's relationship. Without a per-viewer flag
// from the API, any follower at all reads as "already following".
func followLabel(p model.UserProfile) string {
	if p.IsFollowing != nil {
		if *p.IsFollowing {
			return "Unfollow"
		}
		return "Follow"
	}
	if p.FollowersCount > 0 {
		return "Unfollow"
	}
	return "Follow"
}

func LikeKey(postID int64) string { return fmt.Sprintf("like:%d", postID) }
func CommentKey(postID int64) string { return fmt.Sprintf("comment:%d", postID) }
func AuthorKey(userID int64) string { return fmt.Sprintf("author:%d", userID) }
func FollowKey(userID int64) string { return fmt.Sprintf("follow:%d", userID) }

const PostFormKey = "post-form"
