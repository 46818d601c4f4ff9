package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/dfryer1193/racblog/shared/db"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var _ domain.ContentStore = (*SQLStore)(nil)

// SQLStore implements domain.ContentStore on a relational database. Tags and
// comments live in their own tables and are loaded alongside each post.
type SQLStore struct {
	db            *sql.DB
	dialect       db.Dialect
	defaultAuthor string
	now           func() time.Time
}

// NewSQLStore creates a SQLStore on a connected database.
func NewSQLStore(database db.Database, defaultAuthor string) *SQLStore {
	return &SQLStore{
		db:            database.DB(),
		dialect:       database.Dialect(),
		defaultAuthor: defaultAuthor,
		now:           func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *SQLStore) q(query string) string {
	return db.Rebind(r.dialect, query)
}

const postColumns = `id, title, slug, excerpt, content, author, featured_image, status, publish_date, views, likes`

// postRow is a private struct used to scan post rows
type postRow struct {
	ID            string
	Title         string
	Slug          string
	Excerpt       string
	Content       string
	Author        string
	FeaturedImage string
	Status        string
	PublishDate   time.Time
	Views         int
	Likes         int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*postRow, error) {
	var row postRow
	err := s.Scan(
		&row.ID,
		&row.Title,
		&row.Slug,
		&row.Excerpt,
		&row.Content,
		&row.Author,
		&row.FeaturedImage,
		&row.Status,
		&row.PublishDate,
		&row.Views,
		&row.Likes,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// toDomain converts a postRow to a domain.Post with empty tag and comment lists
func (pr *postRow) toDomain() *domain.Post {
	return &domain.Post{
		ID:            pr.ID,
		Title:         pr.Title,
		Slug:          pr.Slug,
		Excerpt:       pr.Excerpt,
		Content:       pr.Content,
		Author:        pr.Author,
		FeaturedImage: pr.FeaturedImage,
		Status:        domain.Status(pr.Status),
		PublishDate:   pr.PublishDate.UTC(),
		Views:         pr.Views,
		Likes:         pr.Likes,
		Tags:          []string{},
		Comments:      []domain.Comment{},
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func listWhere(filter domain.ListFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Status != domain.StatusAll {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		clauses = append(clauses, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(excerpt) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if filter.Tag != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM post_tags t WHERE t.post_id = posts.id AND t.tag = ?)")
		args = append(args, filter.Tag)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListPosts returns one page of posts, newest publish date first.
func (r *SQLStore) ListPosts(ctx context.Context, filter domain.ListFilter) (*domain.PostPage, error) {
	filter = filter.Normalize()
	where, args := listWhere(filter)

	var total int
	err := r.db.QueryRowContext(ctx, r.q("SELECT COUNT(*) FROM posts"+where), args...).Scan(&total)
	if err != nil {
		return nil, domain.Transport("list posts", fmt.Errorf("failed to count posts: %w", err))
	}

	page := &domain.PostPage{
		Posts:      []*domain.Post{},
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		Total:      total,
		TotalPages: domain.TotalPages(total, filter.PageSize),
	}
	if filter.Offset() >= total {
		return page, nil
	}

	query := "SELECT " + postColumns + " FROM posts" + where +
		" ORDER BY publish_date DESC, seq DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, r.q(query), append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return nil, domain.Transport("list posts", fmt.Errorf("failed to list posts: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanPost(rows)
		if err != nil {
			return nil, domain.Transport("list posts", fmt.Errorf("failed to scan post row: %w", err))
		}
		page.Posts = append(page.Posts, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Transport("list posts", fmt.Errorf("error iterating post rows: %w", err))
	}
	rows.Close()

	if err := r.loadChildren(ctx, page.Posts); err != nil {
		return nil, domain.Transport("list posts", err)
	}
	return page, nil
}

// GetPost looks a post up by slug. More than one match is reported as an error
// rather than silently picking one.
func (r *SQLStore) GetPost(ctx context.Context, slug string) (*domain.Post, error) {
	post, err := r.getOne(ctx, "slug", slug)
	return post, domain.Transport("get post", err)
}

func (r *SQLStore) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	post, err := r.getOne(ctx, "id", id)
	return post, domain.Transport("get post", err)
}

func (r *SQLStore) getOne(ctx context.Context, column, value string) (*domain.Post, error) {
	executor := db.GetExecutor(ctx, r.db)
	query := "SELECT " + postColumns + " FROM posts WHERE " + column + " = ? LIMIT 2"
	rows, err := executor.QueryContext(ctx, r.q(query), value)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	defer rows.Close()

	var found []*domain.Post
	for rows.Next() {
		row, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		found = append(found, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}
	rows.Close()

	switch len(found) {
	case 0:
		return nil, domain.PostNotFound(value)
	case 1:
	default:
		return nil, fmt.Errorf("multiple posts match %s %q", column, value)
	}

	if err := r.loadChildren(ctx, found); err != nil {
		return nil, err
	}
	return found[0], nil
}

// loadChildren fills Tags and Comments for the given posts in two queries.
func (r *SQLStore) loadChildren(ctx context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Post, len(posts))
	ids := make([]any, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	in := "(" + db.Placeholders(len(ids)) + ")"
	executor := db.GetExecutor(ctx, r.db)

	tagRows, err := executor.QueryContext(ctx,
		r.q("SELECT post_id, tag FROM post_tags WHERE post_id IN "+in+" ORDER BY post_id, position"), ids...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var postID, tag string
		if err := tagRows.Scan(&postID, &tag); err != nil {
			return fmt.Errorf("failed to scan tag row: %w", err)
		}
		p := byID[postID]
		p.Tags = append(p.Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return fmt.Errorf("error iterating tag rows: %w", err)
	}
	tagRows.Close()

	commentRows, err := executor.QueryContext(ctx,
		r.q(`SELECT id, post_id, author, email, content, created_at, approved
			FROM comments WHERE post_id IN `+in+` ORDER BY created_at, seq`), ids...)
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var c domain.Comment
		var postID string
		if err := commentRows.Scan(&c.ID, &postID, &c.Author, &c.Email, &c.Content, &c.Date, &c.Approved); err != nil {
			return fmt.Errorf("failed to scan comment row: %w", err)
		}
		c.Date = c.Date.UTC()
		p := byID[postID]
		p.Comments = append(p.Comments, c)
	}
	if err := commentRows.Err(); err != nil {
		return fmt.Errorf("error iterating comment rows: %w", err)
	}
	return nil
}

func (r *SQLStore) slugTaken(ctx context.Context, exceptID string) func(string) (bool, error) {
	return func(slug string) (bool, error) {
		var n int
		err := db.GetExecutor(ctx, r.db).
			QueryRowContext(ctx, r.q("SELECT COUNT(*) FROM posts WHERE slug = ? AND id <> ?"), slug, exceptID).
			Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to check slug: %w", err)
		}
		return n > 0, nil
	}
}

const insertPostQuery = `
	INSERT INTO posts (id, title, slug, excerpt, content, author, featured_image, status, publish_date, views, likes, seq)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM posts))
`

func (r *SQLStore) insertPost(ctx context.Context, p *domain.Post) error {
	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, r.q(insertPostQuery),
		p.ID,
		p.Title,
		p.Slug,
		p.Excerpt,
		p.Content,
		p.Author,
		p.FeaturedImage,
		string(p.Status),
		p.PublishDate.UTC(),
		p.Views,
		p.Likes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return r.replaceTags(ctx, p.ID, p.Tags)
}

func (r *SQLStore) replaceTags(ctx context.Context, postID string, tags []string) error {
	executor := db.GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, r.q("DELETE FROM post_tags WHERE post_id = ?"), postID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for i, tag := range tags {
		_, err := executor.ExecContext(ctx,
			r.q("INSERT INTO post_tags (post_id, position, tag) VALUES (?, ?, ?)"), postID, i, tag)
		if err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return nil
}

func (r *SQLStore) CreatePost(ctx context.Context, input domain.PostInput) (*domain.Post, error) {
	in, err := input.Validate(r.defaultAuthor)
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Excerpt:       in.Excerpt,
		Content:       in.Content,
		Author:        in.Author,
		Tags:          in.Tags,
		FeaturedImage: in.FeaturedImage,
		Status:        in.Status,
		PublishDate:   r.now(),
		Comments:      []domain.Comment{},
	}

	err = db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		slug, err := domain.UniqueSlug(post.Title, r.slugTaken(txCtx, ""))
		if err != nil {
			return err
		}
		post.Slug = slug
		return r.insertPost(txCtx, post)
	})
	if err != nil {
		return nil, domain.Transport("create post", err)
	}
	return post, nil
}

const updatePostQuery = `
	UPDATE posts
	SET title = ?, slug = ?, excerpt = ?, content = ?, author = ?, featured_image = ?, status = ?
	WHERE id = ?
`

func (r *SQLStore) UpdatePost(ctx context.Context, id string, update domain.PostUpdate) (*domain.Post, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.Post
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		p, err := r.getOne(txCtx, "id", id)
		if err != nil {
			return err
		}
		update.Apply(p)
		if update.Title != nil {
			if p.Slug, err = domain.UniqueSlug(p.Title, r.slugTaken(txCtx, p.ID)); err != nil {
				return err
			}
		}

		executor := db.GetExecutor(txCtx, r.db)
		_, err = executor.ExecContext(txCtx, r.q(updatePostQuery),
			p.Title, p.Slug, p.Excerpt, p.Content, p.Author, p.FeaturedImage, string(p.Status), p.ID)
		if err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		if update.Tags != nil {
			if err := r.replaceTags(txCtx, p.ID, p.Tags); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, domain.Transport("update post", err)
	}
	return updated, nil
}

// DeletePost removes the post with its tags and comments.
func (r *SQLStore) DeletePost(ctx context.Context, id string) error {
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		if _, err := executor.ExecContext(txCtx, r.q("DELETE FROM comments WHERE post_id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if _, err := executor.ExecContext(txCtx, r.q("DELETE FROM post_tags WHERE post_id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete tags: %w", err)
		}
		res, err := executor.ExecContext(txCtx, r.q("DELETE FROM posts WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return expectOne(res, domain.PostNotFound(id))
	})
	return domain.Transport("delete post", err)
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (r *SQLStore) postExists(ctx context.Context, id string) error {
	var one int
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, r.q("SELECT 1 FROM posts WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PostNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up post: %w", err)
	}
	return nil
}

const insertCommentQuery = `
	INSERT INTO comments (id, post_id, author, email, content, created_at, approved, seq)
	VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM comments WHERE post_id = ?))
`

func (r *SQLStore) insertComment(ctx context.Context, postID string, c domain.Comment) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, r.q(insertCommentQuery),
		c.ID, postID, c.Author, c.Email, c.Content, c.Date.UTC(), c.Approved, postID)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (r *SQLStore) AddComment(ctx context.Context, postID string, input domain.CommentInput) (*domain.Comment, error) {
	in, err := input.Validate()
	if err != nil {
		return nil, err
	}

	c := domain.Comment{
		ID:       uuid.NewString(),
		Author:   in.Author,
		Email:    in.Email,
		Content:  in.Content,
		Date:     r.now(),
		Approved: false,
	}
	err = db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		if err := r.postExists(txCtx, postID); err != nil {
			return err
		}
		return r.insertComment(txCtx, postID, c)
	})
	if err != nil {
		return nil, domain.Transport("add comment", err)
	}
	return &c, nil
}

func (r *SQLStore) ApproveComment(ctx context.Context, postID string, commentID string) error {
	return domain.Transport("approve comment", r.commentExec(ctx, postID, commentID,
		"UPDATE comments SET approved = ? WHERE id = ? AND post_id = ?", true, commentID, postID))
}

func (r *SQLStore) DeleteComment(ctx context.Context, postID string, commentID string) error {
	return domain.Transport("delete comment", r.commentExec(ctx, postID, commentID,
		"DELETE FROM comments WHERE id = ? AND post_id = ?", commentID, postID))
}

func (r *SQLStore) commentExec(ctx context.Context, postID, commentID, query string, args ...any) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		if err := r.postExists(txCtx, postID); err != nil {
			return err
		}
		res, err := db.GetExecutor(txCtx, r.db).ExecContext(txCtx, r.q(query), args...)
		if err != nil {
			return fmt.Errorf("failed to update comment: %w", err)
		}
		return expectOne(res, domain.CommentNotFound(postID, commentID))
	})
}

func (r *SQLStore) LikePost(ctx context.Context, postID string) error {
	return domain.Transport("like post", r.bump(ctx, "likes", postID))
}

func (r *SQLStore) IncrementViews(ctx context.Context, postID string) error {
	return domain.Transport("increment views", r.bump(ctx, "views", postID))
}

func (r *SQLStore) bump(ctx context.Context, column, postID string) error {
	query := "UPDATE posts SET " + column + " = " + column + " + 1 WHERE id = ?"
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, r.q(query), postID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return expectOne(res, domain.PostNotFound(postID))
}

// Count returns the number of stored posts.
func (r *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, domain.Transport("count posts", fmt.Errorf("failed to count posts: %w", err))
	}
	return n, nil
}

// Restore inserts posts verbatim, keeping ids, slugs, dates, counters and
// comments. Earlier posts in the slice sort first on equal publish dates.
func (r *SQLStore) Restore(ctx context.Context, posts []*domain.Post) error {
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		for i := len(posts) - 1; i >= 0; i-- {
			p := posts[i]
			if err := r.insertPost(txCtx, p); err != nil {
				return fmt.Errorf("failed to restore post %s: %w", p.ID, err)
			}
			for _, c := range p.Comments {
				if err := r.insertComment(txCtx, p.ID, c); err != nil {
					return fmt.Errorf("failed to restore post %s: %w", p.ID, err)
				}
			}
		}
		return nil
	})
	return domain.Transport("restore posts", err)
}

// SeedIfEmpty restores the seed collection into an empty database. It reports
// whether anything was written.
func (r *SQLStore) SeedIfEmpty(ctx context.Context, seed SeedFunc) (bool, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	posts, err := seed()
	if err != nil {
		return false, fmt.Errorf("failed to seed posts: %w", err)
	}
	posts = normalizeSeed(posts, r.defaultAuthor)
	if err := r.Restore(ctx, posts); err != nil {
		return false, err
	}
	log.Info().Int("posts", len(posts)).Msg("Seeded SQL post store")
	return true, nil
}
