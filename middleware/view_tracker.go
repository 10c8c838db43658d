package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Dikshant-04/webapp/analytics"
)

// ContextViewedBlogKey is set by a handler to the id of the blog it served.
const ContextViewedBlogKey = "viewed_blog_id"

// ViewEnqueuer accepts view events without blocking.
type ViewEnqueuer interface {
	Enqueue(in analytics.ViewInput) bool
}

// ViewTracker records a blog view after a successful GET. The handler marks
// the served blog; the event is queued once the response is written so the
// request never waits on the analytics store.
func ViewTracker(q ViewEnqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if q == nil || c.Request.Method != "GET" {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		v, ok := c.Get(ContextViewedBlogKey)
		if !ok {
			return
		}
		blogID, ok := v.(uint)
		if !ok || blogID == 0 {
			return
		}

		in := analytics.ViewInput{
			BlogID:    blogID,
			IPAddress: ClientIP(c),
			UserAgent: c.Request.UserAgent(),
			Referrer:  c.Request.Referer(),
		}
		if uid, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := uid.(uint); ok && id > 0 {
				in.UserID = &id
			}
		}
		q.Enqueue(in)
	}
}
