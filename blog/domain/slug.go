package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const fallbackSlug = "post"

var (
	slugDisallowedRegex = regexp.MustCompile(`[^a-z0-9 -]`)
	slugSpaceRegex      = regexp.MustCompile(`\s+`)
	slugHyphenRegex     = regexp.MustCompile(`-+`)
)

// Slugify derives a URL-safe identifier from a title.
// Example: "Express Entry 2024!" -> "express-entry-2024"
// The result is deterministic but not unique; see UniqueSlug.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugDisallowedRegex.ReplaceAllString(slug, "")
	slug = slugSpaceRegex.ReplaceAllString(slug, "-")
	slug = slugHyphenRegex.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// UniqueSlug slugifies title and appends -1, -2, ... until taken reports the
// candidate as free. Titles with nothing slug-able fall back to "post".
func UniqueSlug(title string, taken func(slug string) (bool, error)) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}

	candidate := base
	for counter := 1; ; counter++ {
		used, err := taken(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
