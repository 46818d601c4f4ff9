package domain

import (
	"context"
	"math"
	"time"
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is one of the known post states.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// StatusFilter selects posts by status when listing. StatusAll matches every post.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	FilterDraft     StatusFilter = StatusFilter(StatusDraft)
	FilterPublished StatusFilter = StatusFilter(StatusPublished)
)

// DefaultPageSize applies when a listing asks for a page size below 1.
const DefaultPageSize = 10

// Valid reports whether f is all, draft or published.
func (f StatusFilter) Valid() bool {
	return f == StatusAll || Status(f).Valid()
}

// Matches reports whether a post with status s passes the filter.
func (f StatusFilter) Matches(s Status) bool {
	return f == StatusAll || Status(f) == s
}

// Post represents a blog article.
// Comments are embedded and ordered by submission; Views and Likes never decrease.
type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Excerpt       string    `json:"excerpt"`
	Content       string    `json:"content"`
	Author        string    `json:"author"`
	Tags          []string  `json:"tags"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Status        Status    `json:"status"`
	PublishDate   time.Time `json:"publishDate"`
	Views         int       `json:"views"`
	Likes         int       `json:"likes"`
	Comments      []Comment `json:"comments"`
}

// Comment is a visitor-submitted note on a post. It is hidden from public views until Approved.
type Comment struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Email    string    `json:"email"`
	Content  string    `json:"content"`
	Date     time.Time `json:"date"`
	Approved bool      `json:"approved"`
}

// Clone returns a deep copy of the post so callers can't mutate store-owned slices.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Comments = append([]Comment(nil), p.Comments...)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Comments == nil {
		c.Comments = []Comment{}
	}
	return &c
}

// ApprovedComments returns only the comments that passed moderation, in order.
func (p *Post) ApprovedComments() []Comment {
	approved := make([]Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		if c.Approved {
			approved = append(approved, c)
		}
	}
	return approved
}

// FindComment returns the index of the comment with the given id, or -1.
func (p *Post) FindComment(commentID string) int {
	for i, c := range p.Comments {
		if c.ID == commentID {
			return i
		}
	}
	return -1
}

// PostInput carries the caller-supplied fields of a new post. The store assigns
// id, slug, publish date and counters.
type PostInput struct {
	Title         string
	Excerpt       string
	Content       string
	Author        string
	Tags          []string
	FeaturedImage string
	Status        Status
}

// PostUpdate is a partial update; nil fields are left unchanged.
// The slug is recomputed whenever Title is set.
type PostUpdate struct {
	Title         *string
	Excerpt       *string
	Content       *string
	Author        *string
	Tags          *[]string
	FeaturedImage *string
	Status        *Status
}

// CommentInput carries a visitor's comment submission.
type CommentInput struct {
	Author  string
	Email   string
	Content string
}

// ListFilter selects a page of posts. Query and Tag are optional narrowing filters.
type ListFilter struct {
	Status   StatusFilter
	Page     int
	PageSize int
	Query    string
	Tag      string
}

// Normalize fills defaults: status all, page 1, DefaultPageSize.
func (f ListFilter) Normalize() ListFilter {
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	return f
}

// Offset is the zero-based index of the first post on the page. Pages too far
// out to address saturate at math.MaxInt, which is past the end of any listing.
func (f ListFilter) Offset() int {
	if f.Page <= 1 || f.PageSize < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}

// PostPage is one page of a listing.
type PostPage struct {
	Posts      []*Post
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// TotalPages returns ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	if pages < 1 {
		return 1
	}
	return pages
}

// ContentStore is the backend-agnostic contract for posts and their comments.
// It does not filter drafts or unapproved comments; callers serving the public must.
type ContentStore interface {
	ListPosts(ctx context.Context, filter ListFilter) (*PostPage, error)
	GetPost(ctx context.Context, slug string) (*Post, error)
	GetPostByID(ctx context.Context, id string) (*Post, error)
	CreatePost(ctx context.Context, input PostInput) (*Post, error)
	UpdatePost(ctx context.Context, id string, update PostUpdate) (*Post, error)
	DeletePost(ctx context.Context, id string) error

	AddComment(ctx context.Context, postID string, input CommentInput) (*Comment, error)
	ApproveComment(ctx context.Context, postID string, commentID string) error
	DeleteComment(ctx context.Context, postID string, commentID string) error

	LikePost(ctx context.Context, postID string) error
	IncrementViews(ctx context.Context, postID string) error
}
