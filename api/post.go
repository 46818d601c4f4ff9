package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
)

// TagList accepts either a JSON array of strings or a single comma-separated string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*t = domain.ParseTags(raw)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags must be an array of strings or a comma-separated string")
	}
	*t = list
	return nil
}

// PostProto is the body of a create request.
type PostProto struct {
	Title         string  `json:"title"`
	Excerpt       string  `json:"excerpt"`
	Content       string  `json:"content"`
	Author        string  `json:"author"`
	Tags          TagList `json:"tags"`
	FeaturedImage string  `json:"featuredImage"`
	Status        string  `json:"status"`
}

func (p PostProto) ToInput() domain.PostInput {
	return domain.PostInput{
		Title:         p.Title,
		Excerpt:       p.Excerpt,
		Content:       p.Content,
		Author:        p.Author,
		Tags:          []string(p.Tags),
		FeaturedImage: p.FeaturedImage,
		Status:        domain.Status(p.Status),
	}
}

// PostPatch is the body of an update request. Absent fields are left unchanged.
type PostPatch struct {
	Title         *string  `json:"title"`
	Excerpt       *string  `json:"excerpt"`
	Content       *string  `json:"content"`
	Author        *string  `json:"author"`
	Tags          *TagList `json:"tags"`
	FeaturedImage *string  `json:"featuredImage"`
	Status        *string  `json:"status"`
}

func (p PostPatch) ToUpdate() domain.PostUpdate {
	u := domain.PostUpdate{
		Title:         p.Title,
		Excerpt:       p.Excerpt,
		Content:       p.Content,
		Author:        p.Author,
		FeaturedImage: p.FeaturedImage,
	}
	if p.Tags != nil {
		tags := []string(*p.Tags)
		u.Tags = &tags
	}
	if p.Status != nil {
		s := domain.Status(*p.Status)
		u.Status = &s
	}
	return u
}

type Post struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	Excerpt          string    `json:"excerpt"`
	Content          string    `json:"content"`
	HTML             string    `json:"html,omitempty"`
	Author           string    `json:"author"`
	Tags             []string  `json:"tags"`
	FeaturedImage    string    `json:"featuredImage,omitempty"`
	Status           string    `json:"status"`
	PublishDate      time.Time `json:"publishDate"`
	Views            int       `json:"views"`
	Likes            int       `json:"likes"`
	Comments         []Comment `json:"comments"`
	ApprovedComments int       `json:"approvedComments"`
	Liked            bool      `json:"liked,omitempty"`
}

func NewPost(p *domain.Post, admin bool) Post {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return Post{
		ID:               p.ID,
		Title:            p.Title,
		Slug:             p.Slug,
		Excerpt:          p.Excerpt,
		Content:          p.Content,
		Author:           p.Author,
		Tags:             tags,
		FeaturedImage:    p.FeaturedImage,
		Status:           string(p.Status),
		PublishDate:      p.PublishDate,
		Views:            p.Views,
		Likes:            p.Likes,
		Comments:         NewComments(p.Comments, admin),
		ApprovedComments: len(p.ApprovedComments()),
	}
}

type PostPage struct {
	Posts      []Post `json:"posts"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

func NewPostPage(page *domain.PostPage, admin bool) PostPage {
	posts := make([]Post, 0, len(page.Posts))
	for _, p := range page.Posts {
		posts = append(posts, NewPost(p, admin))
	}
	return PostPage{
		Posts:      posts,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
}

type LikeResponse struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

type Stats struct {
	Posts           int `json:"posts"`
	Published       int `json:"published"`
	Drafts          int `json:"drafts"`
	Views           int `json:"views"`
	Likes           int `json:"likes"`
	Comments        int `json:"comments"`
	PendingComments int `json:"pendingComments"`
}
