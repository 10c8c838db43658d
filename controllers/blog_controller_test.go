package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/testsupport"
)

type blogItem struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	IsFeatured  bool       `json:"is_featured"`
	PublishedAt *time.Time `json:"published_at"`
	Tags        []struct {
		Slug string `json:"slug"`
	} `json:"tags"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category"`
}

func TestBlogLifecycle(t *testing.T) {
	h := newHarness(t, analytics.Config{})
	admin := testsupport.CreateUser(t, h.db, "root", models.RoleAdmin)
	writer := testsupport.CreateUser(t, h.db, "writer", models.RoleStaff)
	rival := testsupport.CreateUser(t, h.db, "rival", models.RoleStaff)
	reader := testsupport.CreateUser(t, h.db, "reader", models.RoleCustomer)
	cat := testsupport.CreateCategory(t, h.db, "Go")
	writerTok := bearer(t, writer)

	var draft blogItem
	t.Run("create as staff", func(t *testing.T) {
		status, _ := h.call(http.MethodPost, "/api/v1/blogs", bearer(t, reader), map[string]interface{}{"title": "x", "content": "y"})
		assert.Equal(t, http.StatusForbidden, status)

		status, env := h.call(http.MethodPost, "/api/v1/blogs", writerTok, map[string]interface{}{"title": "", "content": "y"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, 40021, env.Code)

		status, env = h.call(http.MethodPost, "/api/v1/blogs", writerTok, map[string]interface{}{
			"title":       "Hello World",
			"content":     `<p>Body</p><script>alert(1)</script>`,
			"category_id": cat.ID,
			"tags":        []string{"Go", "go", "Web Dev"},
		})
		require.Equal(t, http.StatusCreated, status, env.Message)
		draft = decode[blogItem](t, env.Data)
		assert.Equal(t, "hello-world", draft.Slug)
		assert.Equal(t, models.BlogDraft, draft.Status)
		assert.Nil(t, draft.PublishedAt)
		assert.Equal(t, "<p>Body</p>", draft.Content)
		assert.Len(t, draft.Tags, 2)
		require.NotNil(t, draft.Category)
		assert.Equal(t, "Go", draft.Category.Name)
		assert.Equal(t, "writer", draft.Author.Username)

		// same title gets a distinct slug
		status, env = h.call(http.MethodPost, "/api/v1/blogs", writerTok, map[string]interface{}{"title": "Hello World", "content": "again"})
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "hello-world-2", decode[blogItem](t, env.Data).Slug)
	})

	t.Run("drafts are private", func(t *testing.T) {
		_, env := h.call(http.MethodGet, "/api/v1/blogs", "", nil)
		assert.Empty(t, decode[page[blogItem]](t, env.Data).Items)

		status, _ := h.call(http.MethodGet, "/api/v1/blogs/hello-world", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = h.call(http.MethodGet, "/api/v1/blogs/hello-world", writerTok, nil)
		assert.Equal(t, http.StatusOK, status)
		status, _ = h.call(http.MethodGet, "/api/v1/blogs/hello-world", bearer(t, admin), nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Zero(t, h.views.count())

		_, env = h.call(http.MethodGet, "/api/v1/blogs/mine", writerTok, nil)
		assert.Len(t, decode[page[blogItem]](t, env.Data).Items, 2)
	})

	path := fmt.Sprintf("/api/v1/blogs/%d", draft.ID)

	t.Run("only author or admin may edit", func(t *testing.T) {
		status, env := h.call(http.MethodPut, path, bearer(t, rival), map[string]interface{}{"title": "Hijacked"})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, 40320, env.Code)

		status, env = h.call(http.MethodPut, path, writerTok, map[string]interface{}{"status": "live"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, 40022, env.Code)
	})

	t.Run("publish", func(t *testing.T) {
		status, env := h.call(http.MethodPut, path, writerTok, map[string]interface{}{
			"title": "Hello Gophers", "status": "published", "is_featured": true, "tags": []string{"go"},
		})
		require.Equal(t, http.StatusOK, status, env.Message)
		got := decode[blogItem](t, env.Data)
		assert.Equal(t, "Hello Gophers", got.Title)
		assert.Equal(t, "hello-world", got.Slug)
		assert.NotNil(t, got.PublishedAt)
		assert.True(t, got.IsFeatured)
		assert.Len(t, got.Tags, 1)
	})

	t.Run("public listing and filters", func(t *testing.T) {
		cases := []struct {
			query string
			want  int
		}{
			{"", 1},
			{"?category=" + cat.Slug, 1},
			{"?category=nope", 0},
			{"?tag=go", 1},
			{"?tag=web-dev", 0},
			{"?featured=true", 1},
			{"?featured=false", 0},
			{"?search=Gophers", 1},
			{"?search=nothing-here", 0},
		}
		for _, tc := range cases {
			status, env := h.call(http.MethodGet, "/api/v1/blogs"+tc.query, "", nil)
			require.Equal(t, http.StatusOK, status, tc.query)
			p := decode[page[blogItem]](t, env.Data)
			assert.Len(t, p.Items, tc.want, tc.query)
			assert.Equal(t, int64(tc.want), p.Pagination.Total, tc.query)
		}
	})

	t.Run("reading a published blog records a view", func(t *testing.T) {
		status, env := h.call(http.MethodGet, "/api/v1/blogs/hello-world", bearer(t, reader), nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Hello Gophers", decode[blogItem](t, env.Data).Title)
		require.Equal(t, 1, h.views.count())
		in := h.views.got[0]
		assert.Equal(t, draft.ID, in.BlogID)
		require.NotNil(t, in.UserID)
		assert.Equal(t, reader.ID, *in.UserID)

		status, _ = h.call(http.MethodGet, "/api/v1/blogs/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, 1, h.views.count())
	})

	t.Run("delete cascades", func(t *testing.T) {
		uid := reader.ID
		testsupport.CreateView(t, h.db, draft.ID, time.Now(), testsupport.View{IP: "198.51.100.1"})
		require.NoError(t, h.db.Create(&models.BlogComment{BlogID: draft.ID, AuthorID: uid, Content: "nice", IsApproved: true}).Error)

		status, _ := h.call(http.MethodDelete, path, bearer(t, rival), nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = h.call(http.MethodDelete, path, bearer(t, admin), nil)
		require.Equal(t, http.StatusOK, status)

		var blogs, views, comments int64
		h.db.Model(&models.Blog{}).Where("id = ?", draft.ID).Count(&blogs)
		h.db.Model(&models.BlogView{}).Where("blog_id = ?", draft.ID).Count(&views)
		h.db.Model(&models.BlogComment{}).Where("blog_id = ?", draft.ID).Count(&comments)
		assert.Zero(t, blogs+views+comments)

		status, _ = h.call(http.MethodDelete, path, bearer(t, admin), nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

type commentNode struct {
	ID       uint          `json:"id"`
	Content  string        `json:"content"`
	ParentID *uint         `json:"parent_id"`
	Replies  []commentNode `json:"replies"`
}

func TestComments(t *testing.T) {
	h := newHarness(t, analytics.Config{})
	admin := testsupport.CreateUser(t, h.db, "root", models.RoleAdmin)
	writer := testsupport.CreateUser(t, h.db, "writer", models.RoleStaff)
	alice := testsupport.CreateUser(t, h.db, "alice", models.RoleCustomer)
	bob := testsupport.CreateUser(t, h.db, "bob", models.RoleCustomer)
	blog := testsupport.CreateBlog(t, h.db, writer, "Post", nil)
	otherBlog := testsupport.CreateBlog(t, h.db, writer, "Other", nil)
	base := "/api/v1/blogs/" + blog.Slug + "/comments"

	status, _ := h.call(http.MethodPost, base, "", map[string]string{"content": "anon"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := h.call(http.MethodPost, base, bearer(t, alice), map[string]interface{}{"content": "<i>first</i>"})
	require.Equal(t, http.StatusCreated, status)
	root := decode[commentNode](t, env.Data)
	assert.Equal(t, "first", root.Content)

	status, env = h.call(http.MethodPost, base, bearer(t, bob), map[string]interface{}{"content": "reply", "parent_id": root.ID})
	require.Equal(t, http.StatusCreated, status)
	reply := decode[commentNode](t, env.Data)

	h.call(http.MethodPost, base, bearer(t, alice), map[string]interface{}{"content": "reply to reply", "parent_id": reply.ID})

	foreign := models.BlogComment{BlogID: otherBlog.ID, AuthorID: bob.ID, Content: "elsewhere", IsApproved: true}
	require.NoError(t, h.db.Create(&foreign).Error)
	status, env = h.call(http.MethodPost, base, bearer(t, alice), map[string]interface{}{"content": "x", "parent_id": foreign.ID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40027, env.Code)

	t.Run("tree", func(t *testing.T) {
		_, env := h.call(http.MethodGet, base, "", nil)
		out := decode[struct {
			Items []commentNode `json:"items"`
			Total int           `json:"total"`
		}](t, env.Data)
		assert.Equal(t, 3, out.Total)
		require.Len(t, out.Items, 1)
		require.Len(t, out.Items[0].Replies, 1)
		require.Len(t, out.Items[0].Replies[0].Replies, 1)
		assert.Equal(t, "reply to reply", out.Items[0].Replies[0].Replies[0].Content)
	})

	t.Run("moderation hides a comment", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/comments/%d/approve", reply.ID)
		status, _ := h.call(http.MethodPatch, path, bearer(t, alice), map[string]bool{"is_approved": false})
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = h.call(http.MethodPatch, path, bearer(t, admin), map[string]bool{"is_approved": false})
		require.Equal(t, http.StatusOK, status)
		_, env := h.call(http.MethodGet, base, "", nil)
		out := decode[struct {
			Items []commentNode `json:"items"`
		}](t, env.Data)
		require.Len(t, out.Items, 1)
		assert.Empty(t, out.Items[0].Replies)

		status, _ = h.call(http.MethodPatch, path, bearer(t, admin), nil)
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("delete removes replies", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/comments/%d", root.ID)
		status, env := h.call(http.MethodDelete, path, bearer(t, bob), nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, 40321, env.Code)

		status, _ = h.call(http.MethodDelete, path, bearer(t, alice), nil)
		require.Equal(t, http.StatusOK, status)
		var left int64
		h.db.Model(&models.BlogComment{}).Where("blog_id = ?", blog.ID).Count(&left)
		assert.Zero(t, left)
	})
}

func TestCategoriesAndTags(t *testing.T) {
	h := newHarness(t, analytics.Config{})
	admin := testsupport.CreateUser(t, h.db, "root", models.RoleAdmin)
	writer := testsupport.CreateUser(t, h.db, "writer", models.RoleStaff)
	adminTok := bearer(t, admin)

	status, _ := h.call(http.MethodPost, "/api/v1/categories", bearer(t, writer), map[string]string{"name": "Go"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := h.call(http.MethodPost, "/api/v1/categories", adminTok, map[string]string{"name": "Cloud Native", "description": "k8s"})
	require.Equal(t, http.StatusCreated, status)
	cat := decode[models.Category](t, env.Data)
	assert.Equal(t, "cloud-native", cat.Slug)

	status, env = h.call(http.MethodPost, "/api/v1/categories", adminTok, map[string]string{"name": "Cloud Native"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, 40903, env.Code)

	testsupport.CreateBlog(t, h.db, writer, "In cloud", &cat)
	draft := testsupport.CreateBlog(t, h.db, writer, "Draft in cloud", &cat)
	require.NoError(t, h.db.Model(draft).UpdateColumn("status", models.BlogDraft).Error)
	testsupport.CreateCategory(t, h.db, "Empty")

	_, env = h.call(http.MethodGet, "/api/v1/categories", "", nil)
	cats := decode[[]categoryItem](t, env.Data)
	require.Len(t, cats, 2)
	assert.Equal(t, "Cloud Native", cats[0].Name)
	assert.Equal(t, int64(1), cats[0].BlogCount)
	assert.Equal(t, int64(0), cats[1].BlogCount)

	status, _ = h.call(http.MethodPost, "/api/v1/tags", adminTok, map[string]string{"name": "Rust"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = h.call(http.MethodPost, "/api/v1/tags", adminTok, map[string]string{"name": "rust"})
	assert.Equal(t, http.StatusConflict, status)

	_, env = h.call(http.MethodGet, "/api/v1/tags", "", nil)
	tags := decode[[]models.Tag](t, env.Data)
	require.Len(t, tags, 1)
	assert.Equal(t, "rust", tags[0].Slug)
}

func TestBuildCommentTree(t *testing.T) {
	id := func(v uint) *uint { return &v }
	in := []models.BlogComment{
		{ID: 1},
		{ID: 2, ParentID: id(1)},
		{ID: 3},
		{ID: 4, ParentID: id(2)},
		{ID: 5, ParentID: id(99)},
		{ID: 6, ParentID: id(1)},
	}
	tree := buildCommentTree(in)
	require.Len(t, tree, 2)
	assert.Equal(t, uint(1), tree[0].ID)
	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, uint(2), tree[0].Replies[0].ID)
	assert.Equal(t, uint(6), tree[0].Replies[1].ID)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, uint(4), tree[0].Replies[0].Replies[0].ID)
	assert.Empty(t, tree[1].Replies)
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		page, size         string
		wantPage, wantSize int
	}{
		{"", "", 1, 10},
		{"3", "25", 3, 25},
		{"0", "-1", 1, 10},
		{"x", "500", 1, 100},
	}
	for _, tc := range cases {
		p, s := parsePagination(tc.page, tc.size)
		assert.Equal(t, tc.wantPage, p, tc.page)
		assert.Equal(t, tc.wantSize, s, tc.size)
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{" Dana@Example.com ", "dana@example.com", true},
		{"a@b.co", "a@b.co", true},
		{"\tx@y.org\n", "x@y.org", true},
		{"   ", "", false},
		{"not-an-email", "", false},
		{"two@@example.com", "", false},
	}
	for _, c := range cases {
		got, ok := normalizeEmail(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}
