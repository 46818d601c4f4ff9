package application

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/dfryer1193/racblog/blog/persistence"
	"github.com/dfryer1193/racblog/shared/kv"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) CommentPending(_ context.Context, post *domain.Post, comment *domain.Comment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, post.Slug+"/"+comment.Author)
	return n.err
}

func clock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newTestService(t *testing.T, notifier Notifier) (*BlogService, domain.ContentStore) {
	t.Helper()
	store := persistence.NewLocalStore(kv.NewMemoryStore(), "RAC Immigration",
		persistence.WithSeed(func() ([]*domain.Post, error) { return nil, nil }),
		persistence.WithClock(clock()),
	)
	svc := NewBlogService(store, NewLikedSet(kv.NewMemoryStore()), NewMarkdownRenderer(testBaseURL), notifier, SiteInfo{
		Title:       "RAC Immigration Blog",
		Description: "Immigration news",
		BaseURL:     testBaseURL + "/",
		Author:      "RAC Immigration",
	})
	return svc, store
}

func create(t *testing.T, svc *BlogService, title string, status domain.Status, tags ...string) *domain.Post {
	t.Helper()
	p, err := svc.CreatePost(context.Background(), domain.PostInput{
		Title:   title,
		Excerpt: title + " excerpt",
		Content: "Para one\nPara two",
		Tags:    tags,
		Status:  status,
	})
	if err != nil {
		t.Fatalf("CreatePost(%q) error = %v", title, err)
	}
	return p
}

func TestBlogService_ListPublishedHidesDraftsAndPendingComments(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)
	live := create(t, svc, "Live", domain.StatusPublished)
	create(t, svc, "Hidden", domain.StatusDraft)

	approved, _ := store.AddComment(ctx, live.ID, domain.CommentInput{Author: "A", Email: "a@b.co", Content: "ok"})
	store.AddComment(ctx, live.ID, domain.CommentInput{Author: "B", Email: "b@b.co", Content: "spam"})
	if err := store.ApproveComment(ctx, live.ID, approved.ID); err != nil {
		t.Fatalf("ApproveComment() error = %v", err)
	}

	page, err := svc.ListPublished(ctx, 1, 10, "", "")
	if err != nil {
		t.Fatalf("ListPublished() error = %v", err)
	}
	if page.Total != 1 || page.Posts[0].ID != live.ID {
		t.Fatalf("ListPublished() = %+v, want only the live post", page.Posts)
	}
	if len(page.Posts[0].Comments) != 1 || page.Posts[0].Comments[0].ID != approved.ID {
		t.Errorf("Comments = %+v, want only the approved one", page.Posts[0].Comments)
	}

	// The store itself still holds both comments.
	stored, _ := store.GetPostByID(ctx, live.ID)
	if len(stored.Comments) != 2 {
		t.Errorf("stored comments = %d, want 2", len(stored.Comments))
	}
}

func TestBlogService_ReadPost(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)
	live := create(t, svc, "Live Post", domain.StatusPublished)
	draft := create(t, svc, "Draft Post", domain.StatusDraft)

	for i := 1; i <= 3; i++ {
		view, err := svc.ReadPost(ctx, live.Slug, "")
		if err != nil {
			t.Fatalf("ReadPost() error = %v", err)
		}
		if view.Post.Views != i {
			t.Errorf("Views after read %d = %d", i, view.Post.Views)
		}
	}

	view, _ := svc.ReadPost(ctx, live.Slug, "")
	if !strings.Contains(view.HTML, "<p>Para one</p>") || !strings.Contains(view.HTML, "<p>Para two</p>") {
		t.Errorf("HTML = %q, want one paragraph per line", view.HTML)
	}

	if _, err := svc.ReadPost(ctx, draft.Slug, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ReadPost(draft) error = %v, want NotFound", err)
	}
	stored, _ := store.GetPostByID(ctx, draft.ID)
	if stored.Views != 0 {
		t.Errorf("draft views = %d, want 0", stored.Views)
	}

	if _, err := svc.ReadPost(ctx, "missing", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ReadPost(missing) error = %v, want NotFound", err)
	}
}

func TestBlogService_Comment(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		notifierErr error
	}{
		{name: "notified"},
		{name: "notifier failure is not returned", notifierErr: errors.New("smtp down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{err: tt.notifierErr}
			svc, _ := newTestService(t, notifier)
			p := create(t, svc, "Talk", domain.StatusPublished)

			c, err := svc.Comment(ctx, p.Slug, domain.CommentInput{Author: "Ana", Email: "ana@example.com", Content: "Q?"})
			if err != nil {
				t.Fatalf("Comment() error = %v", err)
			}
			if c.Approved {
				t.Error("comment should start unapproved")
			}
			if !reflect.DeepEqual(notifier.calls, []string{"talk/Ana"}) {
				t.Errorf("notifier calls = %v", notifier.calls)
			}

			view, _ := svc.ReadPost(ctx, p.Slug, "")
			if len(view.Post.Comments) != 0 {
				t.Errorf("public comments = %d, want 0 before approval", len(view.Post.Comments))
			}
		})
	}

	t.Run("draft", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		d := create(t, svc, "Secret", domain.StatusDraft)
		_, err := svc.Comment(ctx, d.Slug, domain.CommentInput{Author: "A", Email: "a@b.co", Content: "x"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Comment(draft) error = %v, want NotFound", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		p := create(t, svc, "Talk", domain.StatusPublished)
		_, err := svc.Comment(ctx, p.Slug, domain.CommentInput{Author: "A", Email: "not-an-email", Content: "x"})
		if !domain.IsValidation(err) {
			t.Errorf("Comment(bad email) error = %v, want ValidationError", err)
		}
	})
}

func TestBlogService_Like(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)
	p := create(t, svc, "Likeable", domain.StatusPublished)

	likes, err := svc.Like(ctx, "visitor-1", p.Slug)
	if err != nil || likes != 1 {
		t.Fatalf("Like() = %d, %v; want 1, nil", likes, err)
	}

	if _, err := svc.Like(ctx, "visitor-1", p.Slug); !errors.Is(err, ErrAlreadyLiked) {
		t.Errorf("second Like() error = %v, want ErrAlreadyLiked", err)
	}

	likes, err = svc.Like(ctx, "visitor-2", p.Slug)
	if err != nil || likes != 2 {
		t.Errorf("Like(visitor-2) = %d, %v; want 2, nil", likes, err)
	}

	stored, _ := store.GetPostByID(ctx, p.ID)
	if stored.Likes != 2 {
		t.Errorf("stored likes = %d, want 2", stored.Likes)
	}

	view, _ := svc.ReadPost(ctx, p.Slug, "visitor-1")
	if !view.Liked {
		t.Error("ReadPost() Liked = false for a visitor who liked the post")
	}
	view, _ = svc.ReadPost(ctx, p.Slug, "visitor-3")
	if view.Liked {
		t.Error("ReadPost() Liked = true for a new visitor")
	}

	if _, err := svc.Like(ctx, "", p.Slug); !domain.IsValidation(err) {
		t.Errorf("Like(no visitor) error = %v, want ValidationError", err)
	}
}

func TestBlogService_LikeConcurrentSameVisitor(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)
	p := create(t, svc, "Race", domain.StatusPublished)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Like(ctx, "same-visitor", p.Slug)
		}()
	}
	wg.Wait()

	stored, _ := store.GetPostByID(ctx, p.ID)
	if stored.Likes != 1 {
		t.Errorf("Likes = %d, want 1", stored.Likes)
	}
}

func TestBlogService_Tags(t *testing.T) {
	svc, _ := newTestService(t, nil)
	create(t, svc, "One", domain.StatusPublished, "PNP", "Study")
	create(t, svc, "Two", domain.StatusPublished, "Study", "Work")
	create(t, svc, "Three", domain.StatusDraft, "Secret")

	tags, err := svc.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	// Newest post first, so "Two" contributes first.
	want := []string{"Study", "Work", "PNP"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("Tags() = %v, want %v", tags, want)
	}
}

func TestBlogService_PendingCommentsAndStats(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)
	a := create(t, svc, "A", domain.StatusPublished)
	b := create(t, svc, "B", domain.StatusDraft)

	c1, _ := store.AddComment(ctx, a.ID, domain.CommentInput{Author: "first", Email: "a@b.co", Content: "1"})
	store.AddComment(ctx, b.ID, domain.CommentInput{Author: "second", Email: "a@b.co", Content: "2"})
	store.AddComment(ctx, a.ID, domain.CommentInput{Author: "third", Email: "a@b.co", Content: "3"})
	if err := svc.ApproveComment(ctx, a.ID, c1.ID); err != nil {
		t.Fatalf("ApproveComment() error = %v", err)
	}
	store.IncrementViews(ctx, a.ID)
	store.LikePost(ctx, a.ID)

	pending, err := svc.PendingComments(ctx)
	if err != nil {
		t.Fatalf("PendingComments() error = %v", err)
	}
	var authors []string
	for _, p := range pending {
		authors = append(authors, p.Comment.Author)
	}
	if !reflect.DeepEqual(authors, []string{"third", "second"}) {
		t.Errorf("pending authors = %v, want [third second]", authors)
	}
	if pending[1].PostID != b.ID || pending[1].PostTitle != "B" {
		t.Errorf("pending[1] = %+v, want post B", pending[1])
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := Stats{Posts: 2, Published: 1, Drafts: 1, Views: 1, Likes: 1, Comments: 3, PendingComments: 2}
	if *st != want {
		t.Errorf("Stats() = %+v, want %+v", *st, want)
	}
}

func TestBlogService_ListPostsRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.ListPosts(context.Background(), domain.ListFilter{Status: "archived"})
	if !domain.IsValidation(err) {
		t.Errorf("ListPosts(archived) error = %v, want ValidationError", err)
	}
}

func TestBlogService_Feed(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	svc, _ := newTestService(t, nil)
	create(t, svc, "Express Entry News", domain.StatusPublished)
	create(t, svc, "Unreleased", domain.StatusDraft)

	rss, err := svc.Feed(context.Background())
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	for _, want := range []string{
		"<rss",
		"<title>RAC Immigration Blog</title>",
		"<title>Express Entry News</title>",
		testBaseURL + "/blog/express-entry-news",
	} {
		if !strings.Contains(rss, want) {
			t.Errorf("Feed() missing %q", want)
		}
	}
	if strings.Contains(rss, "Unreleased") {
		t.Error("Feed() includes a draft")
	}
}
