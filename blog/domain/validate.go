package domain

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an e-mail address.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// ParseTags splits a comma-separated tag string, trimming each tag and
// dropping empty segments. Order and duplicates are kept.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims tags and drops blank entries.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Validate checks required fields and fills defaults (author, status, tags).
func (in PostInput) Validate(defaultAuthor string) (PostInput, error) {
	if blank(in.Title) {
		return in, Invalid("title", "must not be empty")
	}
	if blank(in.Excerpt) {
		return in, Invalid("excerpt", "must not be empty")
	}
	if blank(in.Content) {
		return in, Invalid("content", "must not be empty")
	}

	if in.Status == "" {
		in.Status = StatusDraft
	}
	if !in.Status.Valid() {
		return in, Invalid("status", "must be draft or published")
	}

	if blank(in.Author) {
		in.Author = defaultAuthor
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.FeaturedImage = strings.TrimSpace(in.FeaturedImage)
	in.Tags = NormalizeTags(in.Tags)
	return in, nil
}

// Validate rejects supplied-but-blank required fields and unknown statuses.
func (u PostUpdate) Validate() error {
	if u.Title != nil && blank(*u.Title) {
		return Invalid("title", "must not be empty")
	}
	if u.Excerpt != nil && blank(*u.Excerpt) {
		return Invalid("excerpt", "must not be empty")
	}
	if u.Content != nil && blank(*u.Content) {
		return Invalid("content", "must not be empty")
	}
	if u.Status != nil && !u.Status.Valid() {
		return Invalid("status", "must be draft or published")
	}
	return nil
}

// Apply copies the supplied fields onto p. It does not touch the slug.
func (u PostUpdate) Apply(p *Post) {
	if u.Title != nil {
		p.Title = strings.TrimSpace(*u.Title)
	}
	if u.Excerpt != nil {
		p.Excerpt = *u.Excerpt
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Author != nil && !blank(*u.Author) {
		p.Author = strings.TrimSpace(*u.Author)
	}
	if u.Tags != nil {
		p.Tags = NormalizeTags(*u.Tags)
	}
	if u.FeaturedImage != nil {
		p.FeaturedImage = strings.TrimSpace(*u.FeaturedImage)
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
}

// Validate checks that every comment field is present and the e-mail is plausible.
func (in CommentInput) Validate() (CommentInput, error) {
	if blank(in.Author) {
		return in, Invalid("author", "must not be empty")
	}
	if blank(in.Email) {
		return in, Invalid("email", "must not be empty")
	}
	if !ValidEmail(in.Email) {
		return in, Invalid("email", "must be a valid e-mail address")
	}
	if blank(in.Content) {
		return in, Invalid("content", "must not be empty")
	}
	in.Author = strings.TrimSpace(in.Author)
	in.Email = strings.TrimSpace(in.Email)
	in.Content = strings.TrimSpace(in.Content)
	return in, nil
}
