package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/dfryer1193/racblog/shared/kv"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var _ domain.ContentStore = (*LocalStore)(nil)

// PostsKey is the kv key holding the whole post collection.
const PostsKey = "blog_posts"

// LocalStore implements domain.ContentStore over a key-value store. The whole
// collection lives in memory and is written back in full after every change.
type LocalStore struct {
	kv            kv.Store
	seed          SeedFunc
	defaultAuthor string
	now           func() time.Time

	mu     sync.Mutex
	loaded bool
	posts  []*domain.Post
}

// LocalStoreOption customizes a LocalStore.
type LocalStoreOption func(*LocalStore)

// WithSeed replaces the bundled seed used when the store is empty.
func WithSeed(seed SeedFunc) LocalStoreOption {
	return func(s *LocalStore) {
		s.seed = seed
	}
}

// WithClock overrides time.Now for publish and comment dates.
func WithClock(now func() time.Time) LocalStoreOption {
	return func(s *LocalStore) {
		s.now = now
	}
}

func NewLocalStore(store kv.Store, defaultAuthor string, opts ...LocalStoreOption) *LocalStore {
	s := &LocalStore{
		kv:            store,
		seed:          DefaultSeed,
		defaultAuthor: defaultAuthor,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load reads the collection on first use, seeding and persisting it if the key
// is absent. Callers must hold s.mu.
func (s *LocalStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	var posts []*domain.Post
	ok, err := kv.GetJSON(ctx, s.kv, PostsKey, &posts)
	if err != nil {
		return domain.Transport("load posts", err)
	}

	if !ok {
		seeded, err := s.seed()
		if err != nil {
			return fmt.Errorf("failed to seed posts: %w", err)
		}
		posts = normalizeSeed(seeded, s.defaultAuthor)
		if err := kv.SetJSON(ctx, s.kv, PostsKey, posts); err != nil {
			return domain.Transport("persist seed", err)
		}
		log.Info().Int("posts", len(posts)).Msg("Seeded local post store")
	}

	for i, p := range posts {
		posts[i] = p.Clone()
	}
	s.posts = posts
	s.loaded = true
	return nil
}

// mutate runs fn over a copy of the collection and persists the result. The
// cached collection is only replaced once the write succeeds.
func (s *LocalStore) mutate(ctx context.Context, fn func(posts []*domain.Post) ([]*domain.Post, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}

	next, err := fn(clonePosts(s.posts))
	if err != nil {
		return err
	}

	if err := kv.SetJSON(ctx, s.kv, PostsKey, next); err != nil {
		return domain.Transport("persist posts", err)
	}
	s.posts = next
	return nil
}

func (s *LocalStore) read(ctx context.Context, fn func(posts []*domain.Post) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}
	return fn(s.posts)
}

func clonePosts(posts []*domain.Post) []*domain.Post {
	out := make([]*domain.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

func indexByID(posts []*domain.Post, id string) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func slugTaken(posts []*domain.Post, exceptID string) func(string) (bool, error) {
	return func(slug string) (bool, error) {
		for _, p := range posts {
			if p.Slug == slug && p.ID != exceptID {
				return true, nil
			}
		}
		return false, nil
	}
}

func (s *LocalStore) ListPosts(ctx context.Context, filter domain.ListFilter) (*domain.PostPage, error) {
	var page *domain.PostPage
	err := s.read(ctx, func(posts []*domain.Post) error {
		page = domain.Paginate(posts, filter)
		page.Posts = clonePosts(page.Posts)
		return nil
	})
	return page, err
}

func (s *LocalStore) GetPost(ctx context.Context, slug string) (*domain.Post, error) {
	var found *domain.Post
	err := s.read(ctx, func(posts []*domain.Post) error {
		for _, p := range posts {
			if p.Slug == slug {
				found = p.Clone()
				return nil
			}
		}
		return domain.PostNotFound(slug)
	})
	return found, err
}

func (s *LocalStore) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var found *domain.Post
	err := s.read(ctx, func(posts []*domain.Post) error {
		i := indexByID(posts, id)
		if i < 0 {
			return domain.PostNotFound(id)
		}
		found = posts[i].Clone()
		return nil
	})
	return found, err
}

func (s *LocalStore) CreatePost(ctx context.Context, input domain.PostInput) (*domain.Post, error) {
	in, err := input.Validate(s.defaultAuthor)
	if err != nil {
		return nil, err
	}

	var created *domain.Post
	err = s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		slug, err := domain.UniqueSlug(in.Title, slugTaken(posts, ""))
		if err != nil {
			return nil, err
		}
		created = &domain.Post{
			ID:            uuid.NewString(),
			Title:         in.Title,
			Slug:          slug,
			Excerpt:       in.Excerpt,
			Content:       in.Content,
			Author:        in.Author,
			Tags:          in.Tags,
			FeaturedImage: in.FeaturedImage,
			Status:        in.Status,
			PublishDate:   s.now(),
			Comments:      []domain.Comment{},
		}
		return append([]*domain.Post{created.Clone()}, posts...), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *LocalStore) UpdatePost(ctx context.Context, id string, update domain.PostUpdate) (*domain.Post, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.Post
	err := s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		i := indexByID(posts, id)
		if i < 0 {
			return nil, domain.PostNotFound(id)
		}
		p := posts[i]
		update.Apply(p)
		if update.Title != nil {
			slug, err := domain.UniqueSlug(p.Title, slugTaken(posts, p.ID))
			if err != nil {
				return nil, err
			}
			p.Slug = slug
		}
		updated = p.Clone()
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *LocalStore) DeletePost(ctx context.Context, id string) error {
	return s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		i := indexByID(posts, id)
		if i < 0 {
			return nil, domain.PostNotFound(id)
		}
		return append(posts[:i], posts[i+1:]...), nil
	})
}

func (s *LocalStore) AddComment(ctx context.Context, postID string, input domain.CommentInput) (*domain.Comment, error) {
	in, err := input.Validate()
	if err != nil {
		return nil, err
	}

	var created domain.Comment
	err = s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		i := indexByID(posts, postID)
		if i < 0 {
			return nil, domain.PostNotFound(postID)
		}
		created = domain.Comment{
			ID:       uuid.NewString(),
			Author:   in.Author,
			Email:    in.Email,
			Content:  in.Content,
			Date:     s.now(),
			Approved: false,
		}
		posts[i].Comments = append(posts[i].Comments, created)
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *LocalStore) ApproveComment(ctx context.Context, postID string, commentID string) error {
	return s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		i := indexByID(posts, postID)
		if i < 0 {
			return nil, domain.PostNotFound(postID)
		}
		j := posts[i].FindComment(commentID)
		if j < 0 {
			return nil, domain.CommentNotFound(postID, commentID)
		}
		posts[i].Comments[j].Approved = true
		return posts, nil
	})
}

func (s *LocalStore) DeleteComment(ctx context.Context, postID string, commentID string) error {
	return s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		i := indexByID(posts, postID)
		if i < 0 {
			return nil, domain.PostNotFound(postID)
		}
		j := posts[i].FindComment(commentID)
		if j < 0 {
			return nil, domain.CommentNotFound(postID, commentID)
		}
		comments := posts[i].Comments
		posts[i].Comments = append(comments[:j], comments[j+1:]...)
		return posts, nil
	})
}

func (s *LocalStore) LikePost(ctx context.Context, postID string) error {
	return s.bump(ctx, postID, func(p *domain.Post) { p.Likes++ })
}

func (s *LocalStore) IncrementViews(ctx context.Context, postID string) error {
	return s.bump(ctx, postID, func(p *domain.Post) { p.Views++ })
}

func (s *LocalStore) bump(ctx context.Context, postID string, fn func(*domain.Post)) error {
	return s.mutate(ctx, func(posts []*domain.Post) ([]*domain.Post, error) {
		i := indexByID(posts, postID)
		if i < 0 {
			return nil, domain.PostNotFound(postID)
		}
		fn(posts[i])
		return posts, nil
	})
}
