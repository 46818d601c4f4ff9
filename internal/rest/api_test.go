package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	accountapp "github.com/dfryer1193/racblog/account/application"
	accountdomain "github.com/dfryer1193/racblog/account/domain"
	"github.com/dfryer1193/racblog/api"
	"github.com/dfryer1193/racblog/blog/application"
	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/dfryer1193/racblog/blog/persistence"
	"github.com/dfryer1193/racblog/contact"
	"github.com/dfryer1193/racblog/internal/middleware"
	"github.com/dfryer1193/racblog/shared/kv"
	"github.com/gin-gonic/gin"
)

const adminPassword = "s3cret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubContact struct {
	got []contact.Submission
	err error
}

func (s *stubContact) Submit(_ context.Context, sub contact.Submission) error {
	if _, err := sub.Validate(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, sub)
	return nil
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	contact *stubContact
	token   string
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := persistence.NewLocalStore(kv.NewMemoryStore(), "RAC Immigration",
		persistence.WithSeed(func() ([]*domain.Post, error) { return nil, nil }),
	)
	blog := application.NewBlogService(store,
		application.NewLikedSet(kv.NewMemoryStore()),
		application.NewMarkdownRenderer("https://example.com"),
		nil,
		application.SiteInfo{Title: "RAC Immigration Blog", BaseURL: "https://example.com", Author: "RAC Immigration"},
	)
	stub := &stubContact{}

	router := gin.New()
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	NewApi(router, Deps{
		Blog:    blog,
		Auth:    accountapp.NewSharedSecretGate(adminPassword, kv.NewMemoryStore(), time.Hour),
		Contact: stub,
	})
	return &testServer{t: t, router: router, contact: stub}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			s.t.Fatalf("Encode() error = %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return w
}

func (s *testServer) login() {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", api.LoginRequest{Password: adminPassword})
	if w.Code != http.StatusOK {
		s.t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var session accountdomain.Session
	decode(s.t, w, &session)
	s.token = session.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil)
	expectStatus(t, w, http.StatusOK)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/posts"},
		{http.MethodPost, "/api/admin/posts"},
		{http.MethodGet, "/api/admin/posts/p1"},
		{http.MethodPut, "/api/admin/posts/p1"},
		{http.MethodDelete, "/api/admin/posts/p1"},
		{http.MethodGet, "/api/admin/comments"},
		{http.MethodPost, "/api/admin/posts/p1/comments/c1/approve"},
		{http.MethodDelete, "/api/admin/posts/p1/comments/c1"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodGet, "/api/auth/me"},
	}

	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			w := s.do(r.method, r.path, nil)
			expectStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/login", api.LoginRequest{Password: "guess"})
	expectStatus(t, w, http.StatusUnauthorized)

	s.login()
	w = s.do(http.MethodGet, "/api/auth/me", nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(http.MethodPost, "/api/auth/logout", nil)
	expectStatus(t, w, http.StatusNoContent)

	w = s.do(http.MethodGet, "/api/admin/stats", nil)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestRegisterWithoutRegistrar(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/auth/register", api.RegisterRequest{Username: "a", Email: "a@example.com", Password: "long-enough"})
	expectStatus(t, w, http.StatusForbidden)
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.login()

	w := s.do(http.MethodPost, "/api/admin/posts", `{"title":"PNP Update","excerpt":"News","content":"Line1\nLine2","tags":"PNP, Provincial","status":"published"}`)
	expectStatus(t, w, http.StatusCreated)
	var created api.Post
	decode(t, w, &created)
	if created.Slug != "pnp-update" || created.Author != "RAC Immigration" {
		t.Errorf("created = %+v", created)
	}
	if strings.Join(created.Tags, "|") != "PNP|Provincial" {
		t.Errorf("Tags = %v, want [PNP Provincial]", created.Tags)
	}

	w = s.do(http.MethodPost, "/api/admin/posts", api.PostProto{Title: "Draft", Excerpt: "E", Content: "C"})
	expectStatus(t, w, http.StatusCreated)

	s.token = ""

	w = s.do(http.MethodGet, "/api/posts", nil)
	expectStatus(t, w, http.StatusOK)
	var page api.PostPage
	decode(t, w, &page)
	if page.Total != 1 || len(page.Posts) != 1 || page.Posts[0].Slug != "pnp-update" {
		t.Fatalf("public page = %+v, want only the published post", page)
	}
	if page.TotalPages != 1 || page.PageSize != domain.DefaultPageSize {
		t.Errorf("page meta = %d pages / size %d", page.TotalPages, page.PageSize)
	}

	w = s.do(http.MethodGet, "/api/posts/draft", nil)
	expectStatus(t, w, http.StatusNotFound)

	w = s.do(http.MethodGet, "/api/posts/pnp-update", nil)
	expectStatus(t, w, http.StatusOK)
	var detail api.Post
	decode(t, w, &detail)
	if detail.Views != 1 {
		t.Errorf("Views = %d, want 1", detail.Views)
	}
	if !strings.Contains(detail.HTML, "<p>Line1</p>") || !strings.Contains(detail.HTML, "<p>Line2</p>") {
		t.Errorf("HTML = %q, want one paragraph per line", detail.HTML)
	}

	w = s.do(http.MethodPost, "/api/posts/pnp-update/comments", api.CommentProto{Author: "Ana", Email: "ana@example.com", Content: "Thanks"})
	expectStatus(t, w, http.StatusCreated)
	var comment api.Comment
	decode(t, w, &comment)
	if comment.Approved {
		t.Error("new comment should not be approved")
	}

	w = s.do(http.MethodGet, "/api/posts/pnp-update", nil)
	decode(t, w, &detail)
	if len(detail.Comments) != 0 || detail.ApprovedComments != 0 {
		t.Errorf("public comments = %v, want none before approval", detail.Comments)
	}

	w = s.do(http.MethodPost, "/api/posts/pnp-update/like", nil)
	expectStatus(t, w, http.StatusOK)
	var like api.LikeResponse
	decode(t, w, &like)
	if like.Likes != 1 {
		t.Errorf("Likes = %d, want 1", like.Likes)
	}
	w = s.do(http.MethodPost, "/api/posts/pnp-update/like", nil)
	expectStatus(t, w, http.StatusConflict)

	s.login()
	w = s.do(http.MethodGet, "/api/admin/comments", nil)
	expectStatus(t, w, http.StatusOK)
	var pending []api.PendingComment
	decode(t, w, &pending)
	if len(pending) != 1 || pending[0].PostSlug != "pnp-update" || pending[0].Email != "ana@example.com" {
		t.Fatalf("pending = %+v", pending)
	}

	w = s.do(http.MethodPost, fmt.Sprintf("/api/admin/posts/%s/comments/%s/approve", created.ID, comment.ID), nil)
	expectStatus(t, w, http.StatusNoContent)

	w = s.do(http.MethodGet, "/api/admin/stats", nil)
	expectStatus(t, w, http.StatusOK)
	var stats api.Stats
	decode(t, w, &stats)
	if stats.Posts != 2 || stats.Published != 1 || stats.Drafts != 1 || stats.Likes != 1 || stats.Comments != 1 || stats.PendingComments != 0 {
		t.Errorf("stats = %+v", stats)
	}

	s.token = ""
	w = s.do(http.MethodGet, "/api/posts/pnp-update", nil)
	decode(t, w, &detail)
	if detail.ApprovedComments != 1 || len(detail.Comments) != 1 || detail.Comments[0].Email != "" {
		t.Errorf("public comments = %+v, want one approved without e-mail", detail.Comments)
	}
	if !detail.Liked {
		t.Error("Liked = false, want true for the visitor who liked")
	}

	s.login()
	w = s.do(http.MethodPut, "/api/admin/posts/"+created.ID, `{"title":"PNP Update 2024"}`)
	expectStatus(t, w, http.StatusOK)
	var updated api.Post
	decode(t, w, &updated)
	if updated.Slug != "pnp-update-2024" || updated.Excerpt != "News" {
		t.Errorf("updated = %+v", updated)
	}

	w = s.do(http.MethodDelete, "/api/admin/posts/"+created.ID, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(http.MethodDelete, "/api/admin/posts/"+created.ID, nil)
	expectStatus(t, w, http.StatusNotFound)
	w = s.do(http.MethodGet, "/api/posts/pnp-update-2024", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAdminValidation(t *testing.T) {
	s := newTestServer(t)
	s.login()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "Missing title", method: http.MethodPost, path: "/api/admin/posts", body: api.PostProto{Excerpt: "E", Content: "C"}},
		{name: "Bad status", method: http.MethodPost, path: "/api/admin/posts", body: api.PostProto{Title: "T", Excerpt: "E", Content: "C", Status: "archived"}},
		{name: "Malformed JSON", method: http.MethodPost, path: "/api/admin/posts", body: `{"title":`},
		{name: "Bad tags type", method: http.MethodPost, path: "/api/admin/posts", body: `{"title":"T","excerpt":"E","content":"C","tags":5}`},
		{name: "Bad status filter", method: http.MethodGet, path: "/api/admin/posts?status=archived"},
		{name: "Bad page", method: http.MethodGet, path: "/api/admin/posts?page=two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body)
			expectStatus(t, w, http.StatusBadRequest)
			var resp api.ErrorResponse
			decode(t, w, &resp)
			if resp.Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestPublicNotFound(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/posts/missing", nil},
		{http.MethodPost, "/api/posts/missing/like", nil},
		{http.MethodPost, "/api/posts/missing/comments", api.CommentProto{Author: "A", Email: "a@example.com", Content: "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			expectStatus(t, s.do(tt.method, tt.path, tt.body), http.StatusNotFound)
		})
	}
}

func TestTagsAndFeed(t *testing.T) {
	s := newTestServer(t)
	s.login()
	s.do(http.MethodPost, "/api/admin/posts", api.PostProto{Title: "Study Permits", Excerpt: "E", Content: "C", Tags: api.TagList{"Study"}, Status: "published"})
	s.do(http.MethodPost, "/api/admin/posts", api.PostProto{Title: "Secret", Excerpt: "E", Content: "C", Tags: api.TagList{"Hidden"}})
	s.token = ""

	w := s.do(http.MethodGet, "/api/tags", nil)
	expectStatus(t, w, http.StatusOK)
	var tags struct {
		Tags []string `json:"tags"`
	}
	decode(t, w, &tags)
	if strings.Join(tags.Tags, ",") != "Study" {
		t.Errorf("tags = %v, want [Study]", tags.Tags)
	}

	w = s.do(http.MethodGet, "/api/posts?tag=Study", nil)
	var page api.PostPage
	decode(t, w, &page)
	if page.Total != 1 {
		t.Errorf("tag filter total = %d, want 1", page.Total)
	}

	w = s.do(http.MethodGet, "/feed.xml", nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Study Permits") || strings.Contains(body, "Secret") {
		t.Errorf("feed should list only published posts: %s", body)
	}
}

func TestContact(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/contact", contact.Submission{Name: "Ana", Email: "ana@example.com"})
	expectStatus(t, w, http.StatusAccepted)
	if len(s.contact.got) != 1 {
		t.Errorf("forwarded %d submissions, want 1", len(s.contact.got))
	}

	w = s.do(http.MethodPost, "/api/contact", contact.Submission{Name: "Ana", Email: "nope"})
	expectStatus(t, w, http.StatusBadRequest)

	s.contact.err = domain.Transport("contact", errors.New("timeout"))
	w = s.do(http.MethodPost, "/api/contact", contact.Submission{Name: "Ana", Email: "ana@example.com"})
	expectStatus(t, w, http.StatusServiceUnavailable)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "Validation", err: domain.Invalid("title", "empty"), expected: http.StatusBadRequest},
		{name: "Not found", err: domain.PostNotFound("x"), expected: http.StatusNotFound},
		{name: "Bad credentials", err: accountdomain.ErrInvalidCredentials, expected: http.StatusUnauthorized},
		{name: "Bad session", err: accountdomain.ErrInvalidSession, expected: http.StatusUnauthorized},
		{name: "No profile", err: accountdomain.ErrProfileNotFound, expected: http.StatusForbidden},
		{name: "Registration closed", err: accountdomain.ErrRegistrationClosed, expected: http.StatusForbidden},
		{name: "Already liked", err: application.ErrAlreadyLiked, expected: http.StatusConflict},
		{name: "Email taken", err: accountdomain.ErrEmailTaken, expected: http.StatusConflict},
		{name: "Transport", err: domain.Transport("list", errors.New("down")), expected: http.StatusServiceUnavailable},
		{name: "Other", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.expected {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}
