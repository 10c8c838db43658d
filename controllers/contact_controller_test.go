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

func submitContact(t *testing.T, h *harness, subject string) uint {
	t.Helper()
	status, env := h.call(http.MethodPost, "/api/v1/contact", "", map[string]string{
		"name":    "Dana",
		"email":   " Dana@Example.com ",
		"subject": subject,
		"message": "<b>hi</b> there",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	out := decode[struct {
		ID uint `json:"id"`
	}](t, env.Data)
	require.NotZero(t, out.ID)

	select {
	case id := <-h.notified:
		assert.Equal(t, out.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("contact notification was not sent")
	}
	return out.ID
}

func TestContactSubmission(t *testing.T) {
	h := newHarness(t, analytics.Config{})

	status, env := h.call(http.MethodPost, "/api/v1/contact", "", map[string]string{"name": "Dana", "email": "not-an-email", "subject": "s", "message": "m"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40060, env.Code)

	status, env = h.call(http.MethodPost, "/api/v1/contact", "", map[string]string{"name": "Dana", "email": "   ", "subject": "s", "message": "m"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40060, env.Code)

	status, env = h.call(http.MethodPost, "/api/v1/contact", "", map[string]string{"name": "<b></b>", "email": "a@b.co", "subject": "s", "message": "m"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40061, env.Code)

	id := submitContact(t, h, "Question")
	var sub models.ContactSubmission
	require.NoError(t, h.db.First(&sub, id).Error)
	assert.Equal(t, "dana@example.com", sub.Email)
	assert.Equal(t, "hi there", sub.Message)
	assert.Equal(t, "192.0.2.1", sub.IPAddress)
	assert.Contains(t, sub.UserAgent, "Chrome")
	assert.False(t, sub.IsRead)
	assert.False(t, sub.IsReplied)
}

func TestContactInbox(t *testing.T) {
	h := newHarness(t, analytics.Config{})
	admin := testsupport.CreateUser(t, h.db, "root", models.RoleAdmin)
	staff := testsupport.CreateUser(t, h.db, "writer", models.RoleStaff)
	tok := bearer(t, admin)

	first := submitContact(t, h, "First")
	second := submitContact(t, h, "Second")
	third := submitContact(t, h, "Third")

	status, _ := h.call(http.MethodGet, "/api/v1/contact", bearer(t, staff), nil)
	assert.Equal(t, http.StatusForbidden, status)

	t.Run("get marks read", func(t *testing.T) {
		status, env := h.call(http.MethodGet, fmt.Sprintf("/api/v1/contact/%d", first), tok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, decode[models.ContactSubmission](t, env.Data).IsRead)

		status, env = h.call(http.MethodGet, "/api/v1/contact/9999", tok, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, 40460, env.Code)
		status, _ = h.call(http.MethodGet, "/api/v1/contact/abc", tok, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("mark replied", func(t *testing.T) {
		status, env := h.call(http.MethodPatch, fmt.Sprintf("/api/v1/contact/%d/replied", second), tok, nil)
		require.Equal(t, http.StatusOK, status)
		got := decode[models.ContactSubmission](t, env.Data)
		assert.True(t, got.IsReplied)
		assert.True(t, got.IsRead)
		require.NotNil(t, got.RepliedAt)
		require.NotNil(t, got.RepliedByID)
		assert.Equal(t, admin.ID, *got.RepliedByID)
	})

	t.Run("filters", func(t *testing.T) {
		_, env := h.call(http.MethodGet, "/api/v1/contact", tok, nil)
		all := decode[page[models.ContactSubmission]](t, env.Data)
		require.Len(t, all.Items, 3)
		assert.Equal(t, third, all.Items[0].ID)

		_, env = h.call(http.MethodGet, "/api/v1/contact?is_read=false", tok, nil)
		unread := decode[page[models.ContactSubmission]](t, env.Data)
		require.Len(t, unread.Items, 1)
		assert.Equal(t, third, unread.Items[0].ID)

		_, env = h.call(http.MethodGet, "/api/v1/contact?is_replied=true", tok, nil)
		replied := decode[page[models.ContactSubmission]](t, env.Data)
		require.Len(t, replied.Items, 1)
		assert.Equal(t, second, replied.Items[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		_, env := h.call(http.MethodGet, "/api/v1/contact/stats", tok, nil)
		stats := decode[map[string]int64](t, env.Data)
		assert.Equal(t, int64(3), stats["total"])
		assert.Equal(t, int64(1), stats["unread"])
		assert.Equal(t, int64(2), stats["unreplied"])
		assert.Equal(t, int64(3), stats["this_week"])
	})

	t.Run("delete", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/contact/%d", third)
		status, _ := h.call(http.MethodDelete, path, tok, nil)
		require.Equal(t, http.StatusOK, status)
		status, _ = h.call(http.MethodDelete, path, tok, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
