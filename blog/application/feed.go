package application

import (
	"context"
	"fmt"
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog/log"
)

// feedSize is how many of the newest published posts go into the feed.
const feedSize = 20

// now is overridable in tests.
var now = time.Now

func (s *BlogService) postURL(p *domain.Post) string {
	return s.site.BaseURL + "/blog/" + p.Slug
}

// Feed renders the newest published posts as RSS 2.0.
func (s *BlogService) Feed(ctx context.Context) (string, error) {
	result, err := s.store.ListPosts(ctx, domain.ListFilter{
		Status:   domain.FilterPublished,
		Page:     1,
		PageSize: feedSize,
	})
	if err != nil {
		return "", err
	}

	feed := &feeds.Feed{
		Title:       s.site.Title,
		Link:        &feeds.Link{Href: s.site.BaseURL},
		Description: s.site.Description,
		Author:      &feeds.Author{Name: s.site.Author},
		Created:     now(),
	}

	for _, p := range result.Posts {
		item := &feeds.Item{
			Id:          p.ID,
			Title:       p.Title,
			Link:        &feeds.Link{Href: s.postURL(p)},
			Description: p.Excerpt,
			Author:      &feeds.Author{Name: p.Author},
			Created:     p.PublishDate,
		}
		html, err := s.markdown.Render(p.Content)
		if err != nil {
			log.Warn().Err(err).Str("post", p.ID).Msg("Failed to render feed content")
		} else {
			item.Content = html
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}
	return rss, nil
}
