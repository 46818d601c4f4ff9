package api

import (
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
)

type Comment struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Email    string    `json:"email,omitempty"`
	Content  string    `json:"content"`
	Date     time.Time `json:"date"`
	Approved bool      `json:"approved"`
}

type CommentProto struct {
	Author  string `json:"author"`
	Email   string `json:"email"`
	Content string `json:"content"`
}

func (p CommentProto) ToInput() domain.CommentInput {
	return domain.CommentInput{Author: p.Author, Email: p.Email, Content: p.Content}
}

// NewComment converts a stored comment. The commenter's e-mail is only
// included for admin views.
func NewComment(c domain.Comment, admin bool) Comment {
	out := Comment{
		ID:       c.ID,
		Author:   c.Author,
		Content:  c.Content,
		Date:     c.Date,
		Approved: c.Approved,
	}
	if admin {
		out.Email = c.Email
	}
	return out
}

func NewComments(comments []domain.Comment, admin bool) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		out = append(out, NewComment(c, admin))
	}
	return out
}

// PendingComment is a moderation queue entry.
type PendingComment struct {
	Comment
	PostID    string `json:"postId"`
	PostTitle string `json:"postTitle"`
	PostSlug  string `json:"postSlug"`
}
