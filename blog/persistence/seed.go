package persistence

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
)

//go:embed seed/posts.json
var seedFS embed.FS

// SeedFunc produces the initial post collection for an empty store.
type SeedFunc func() ([]*domain.Post, error)

// DefaultSeed returns the bundled sample posts.
func DefaultSeed() ([]*domain.Post, error) {
	data, err := seedFS.ReadFile("seed/posts.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled seed: %w", err)
	}
	return decodeSeed(data)
}

// DirSeed returns a SeedFunc that loads every *.json file under dir. A file
// may hold a single post or an array of posts. Files are read in lexical
// order so the resulting collection is stable.
func DirSeed(dir string) SeedFunc {
	return func() ([]*domain.Post, error) {
		var posts []*domain.Post
		err := godirwalk.Walk(dir, &godirwalk.Options{
			Callback: func(osPathname string, de *godirwalk.Dirent) error {
				if de.IsDir() || !strings.EqualFold(filepath.Ext(osPathname), ".json") {
					return nil
				}
				data, err := os.ReadFile(osPathname)
				if err != nil {
					return fmt.Errorf("failed to read seed file %s: %w", osPathname, err)
				}
				filePosts, err := decodeSeed(data)
				if err != nil {
					return fmt.Errorf("failed to parse seed file %s: %w", osPathname, err)
				}
				log.Debug().Str("file", osPathname).Int("posts", len(filePosts)).Msg("Loaded seed file")
				posts = append(posts, filePosts...)
				return nil
			},
			Unsorted: false,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk seed dir: %w", err)
		}
		return posts, nil
	}
}

func decodeSeed(data []byte) ([]*domain.Post, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var p domain.Post
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*domain.Post{&p}, nil
	}

	var posts []*domain.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// normalizeSeed fills in what hand-written seed files commonly leave out and
// makes slugs unique across the collection.
func normalizeSeed(posts []*domain.Post, defaultAuthor string) []*domain.Post {
	out := make([]*domain.Post, 0, len(posts))
	taken := mapset.NewThreadUnsafeSetWithSize[string](len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		c := p.Clone()
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if strings.TrimSpace(c.Author) == "" {
			c.Author = defaultAuthor
		}
		if c.PublishDate.IsZero() {
			c.PublishDate = time.Now()
		}
		c.PublishDate = c.PublishDate.UTC()
		for i := range c.Comments {
			c.Comments[i].Date = c.Comments[i].Date.UTC()
		}
		if !c.Status.Valid() {
			c.Status = domain.StatusDraft
		}
		c.Tags = domain.NormalizeTags(c.Tags)

		base := c.Slug
		if base == "" {
			base = c.Title
		}
		c.Slug, _ = domain.UniqueSlug(base, func(s string) (bool, error) {
			return taken.ContainsOne(s), nil
		})
		taken.Add(c.Slug)

		out = append(out, c)
	}
	return out
}
