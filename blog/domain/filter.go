package domain

import (
	"sort"
	"strings"
)

// Matches reports whether p passes the status, query and tag parts of the filter.
func (f ListFilter) Matches(p *Post) bool {
	if f.Status != "" && !f.Status.Matches(p.Status) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Excerpt), q) {
			return false
		}
	}
	if f.Tag != "" && !hasTag(p.Tags, f.Tag) {
		return false
	}
	return true
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Paginate filters posts, orders them by publish date (newest first, ties keep
// input order) and cuts out the requested page.
func Paginate(posts []*Post, filter ListFilter) *PostPage {
	filter = filter.Normalize()

	matched := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if filter.Matches(p) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PublishDate.After(matched[j].PublishDate)
	})

	total := len(matched)
	page := &PostPage{
		Posts:      []*Post{},
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		Total:      total,
		TotalPages: TotalPages(total, filter.PageSize),
	}

	start := filter.Offset()
	if start >= total {
		return page
	}
	end := total
	if filter.PageSize < total-start {
		end = start + filter.PageSize
	}
	page.Posts = matched[start:end]
	return page
}
