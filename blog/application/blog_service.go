package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyLiked is returned when a visitor likes the same post twice.
var ErrAlreadyLiked = errors.New("post already liked")

// scanPageSize is the page size used when a view needs every post.
const scanPageSize = 100

// Notifier is told about comments that are waiting for moderation.
type Notifier interface {
	CommentPending(ctx context.Context, post *domain.Post, comment *domain.Comment) error
}

// SiteInfo describes the site in generated feeds and links.
type SiteInfo struct {
	Title       string
	Description string
	BaseURL     string
	Author      string
}

// BlogService is the presentation-facing API over a ContentStore. Public
// methods only ever expose published posts and approved comments.
type BlogService struct {
	store    domain.ContentStore
	liked    *LikedSet
	markdown MarkdownRenderer
	notifier Notifier
	site     SiteInfo

	likeMu sync.Mutex
}

func NewBlogService(store domain.ContentStore, liked *LikedSet, markdown MarkdownRenderer, notifier Notifier, site SiteInfo) *BlogService {
	site.BaseURL = strings.TrimRight(site.BaseURL, "/")
	return &BlogService{
		store:    store,
		liked:    liked,
		markdown: markdown,
		notifier: notifier,
		site:     site,
	}
}

// PostView is a published post prepared for a reader.
type PostView struct {
	Post  *domain.Post
	HTML  string
	Liked bool
}

func publicCopy(p *domain.Post) *domain.Post {
	c := p.Clone()
	c.Comments = c.ApprovedComments()
	return c
}

// ListPublished returns a page of published posts with only approved comments.
func (s *BlogService) ListPublished(ctx context.Context, page, pageSize int, query, tag string) (*domain.PostPage, error) {
	result, err := s.store.ListPosts(ctx, domain.ListFilter{
		Status:   domain.FilterPublished,
		Page:     page,
		PageSize: pageSize,
		Query:    query,
		Tag:      tag,
	})
	if err != nil {
		return nil, err
	}
	for i, p := range result.Posts {
		result.Posts[i] = publicCopy(p)
	}
	return result, nil
}

func (s *BlogService) publishedBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	p, err := s.store.GetPost(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusPublished {
		return nil, domain.PostNotFound(slug)
	}
	return p, nil
}

// ReadPost returns a published post for display and counts the view. Drafts
// are reported as not found.
func (s *BlogService) ReadPost(ctx context.Context, slug, visitorID string) (*PostView, error) {
	p, err := s.publishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementViews(ctx, p.ID); err != nil {
		return nil, err
	}
	p.Views++

	html, err := s.markdown.Render(p.Content)
	if err != nil {
		return nil, err
	}

	view := &PostView{Post: publicCopy(p), HTML: html}
	if visitorID != "" {
		liked, err := s.liked.Has(ctx, visitorID, p.ID)
		if err != nil {
			log.Warn().Err(err).Str("post", p.ID).Msg("Failed to read liked posts")
		}
		view.Liked = liked
	}
	return view, nil
}

// Comment submits a comment for moderation on a published post.
func (s *BlogService) Comment(ctx context.Context, slug string, input domain.CommentInput) (*domain.Comment, error) {
	p, err := s.publishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	c, err := s.store.AddComment(ctx, p.ID, input)
	if err != nil {
		return nil, err
	}

	log.Info().Str("post", p.ID).Str("comment", c.ID).Msg("Comment awaiting moderation")
	if s.notifier != nil {
		if err := s.notifier.CommentPending(ctx, p, c); err != nil {
			log.Error().Err(err).Str("comment", c.ID).Msg("Failed to send moderation notice")
		}
	}
	return c, nil
}

// Like adds one like from visitorID, refusing repeats from the same visitor.
// It returns the new like count.
func (s *BlogService) Like(ctx context.Context, visitorID, slug string) (int, error) {
	if visitorID == "" {
		return 0, domain.Invalid("visitor", "must not be empty")
	}

	p, err := s.publishedBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}

	s.likeMu.Lock()
	defer s.likeMu.Unlock()

	liked, err := s.liked.Has(ctx, visitorID, p.ID)
	if err != nil {
		return 0, err
	}
	if liked {
		return p.Likes, ErrAlreadyLiked
	}

	if err := s.store.LikePost(ctx, p.ID); err != nil {
		return 0, err
	}
	if err := s.liked.Add(ctx, visitorID, p.ID); err != nil {
		return 0, err
	}
	return p.Likes + 1, nil
}

// eachPost calls fn for every post matching status, newest first.
func (s *BlogService) eachPost(ctx context.Context, status domain.StatusFilter, fn func(*domain.Post)) error {
	for page := 1; ; page++ {
		result, err := s.store.ListPosts(ctx, domain.ListFilter{Status: status, Page: page, PageSize: scanPageSize})
		if err != nil {
			return err
		}
		for _, p := range result.Posts {
			fn(p)
		}
		if page >= result.TotalPages {
			return nil
		}
	}
}

// Tags returns the distinct tags of published posts, in first-seen order.
func (s *BlogService) Tags(ctx context.Context) ([]string, error) {
	tags := []string{}
	seen := mapset.NewThreadUnsafeSet[string]()
	err := s.eachPost(ctx, domain.FilterPublished, func(p *domain.Post) {
		for _, t := range p.Tags {
			if seen.Add(t) {
				tags = append(tags, t)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Admin views

func (s *BlogService) ListPosts(ctx context.Context, filter domain.ListFilter) (*domain.PostPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("status", "must be all, draft or published")
	}
	return s.store.ListPosts(ctx, filter)
}

func (s *BlogService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.store.GetPostByID(ctx, id)
}

func (s *BlogService) CreatePost(ctx context.Context, input domain.PostInput) (*domain.Post, error) {
	p, err := s.store.CreatePost(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Info().Str("post", p.ID).Str("slug", p.Slug).Str("status", string(p.Status)).Msg("Post created")
	return p, nil
}

func (s *BlogService) UpdatePost(ctx context.Context, id string, update domain.PostUpdate) (*domain.Post, error) {
	p, err := s.store.UpdatePost(ctx, id, update)
	if err != nil {
		return nil, err
	}
	log.Info().Str("post", p.ID).Str("slug", p.Slug).Msg("Post updated")
	return p, nil
}

func (s *BlogService) DeletePost(ctx context.Context, id string) error {
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	log.Info().Str("post", id).Msg("Post deleted")
	return nil
}

func (s *BlogService) ApproveComment(ctx context.Context, postID, commentID string) error {
	return s.store.ApproveComment(ctx, postID, commentID)
}

func (s *BlogService) DeleteComment(ctx context.Context, postID, commentID string) error {
	return s.store.DeleteComment(ctx, postID, commentID)
}

// PendingComment is a comment awaiting moderation with the post it belongs to.
type PendingComment struct {
	PostID    string
	PostTitle string
	PostSlug  string
	Comment   domain.Comment
}

// PendingComments returns unapproved comments across all posts, newest first.
func (s *BlogService) PendingComments(ctx context.Context) ([]PendingComment, error) {
	pending := []PendingComment{}
	err := s.eachPost(ctx, domain.StatusAll, func(p *domain.Post) {
		for _, c := range p.Comments {
			if !c.Approved {
				pending = append(pending, PendingComment{PostID: p.ID, PostTitle: p.Title, PostSlug: p.Slug, Comment: c})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Comment.Date.After(pending[j].Comment.Date)
	})
	return pending, nil
}

// Stats summarizes the whole collection for the admin dashboard.
type Stats struct {
	Posts           int
	Published       int
	Drafts          int
	Views           int
	Likes           int
	Comments        int
	PendingComments int
}

func (s *BlogService) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.eachPost(ctx, domain.StatusAll, func(p *domain.Post) {
		st.Posts++
		if p.Status == domain.StatusPublished {
			st.Published++
		} else {
			st.Drafts++
		}
		st.Views += p.Views
		st.Likes += p.Likes
		st.Comments += len(p.Comments)
		st.PendingComments += len(p.Comments) - len(p.ApprovedComments())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &st, nil
}
