package analytics

import (
	"math"
	"strconv"
	"time"
)

// sessionGap is the idle time after which a visitor's next view opens a new session.
const sessionGap = 30 * time.Minute

type openSession struct {
	first, last  time.Time
	views        int
	lastDuration int
}

// sessionizer groups time-ordered events into visitor sessions. Visitors are
// keyed by user id, then by address; events with neither are single-view
// sessions.
type sessionizer struct {
	open     map[string]*openSession
	sessions int64
	bounces  int64
	seconds  float64
}

func newSessionizer() *sessionizer {
	return &sessionizer{open: map[string]*openSession{}}
}

func visitorKey(userID *uint, ip *string) string {
	switch {
	case userID != nil:
		return "u:" + strconv.FormatUint(uint64(*userID), 10)
	case ip != nil && *ip != "":
		return "ip:" + *ip
	}
	return ""
}

// add must be called in ascending time order.
func (s *sessionizer) add(key string, at time.Time, duration int) {
	next := &openSession{first: at, last: at, views: 1, lastDuration: duration}
	if key == "" {
		s.close(next)
		return
	}
	if cur, ok := s.open[key]; ok {
		if at.Sub(cur.last) <= sessionGap {
			cur.last = at
			cur.views++
			cur.lastDuration = duration
			return
		}
		s.close(cur)
	}
	s.open[key] = next
}

func (s *sessionizer) close(o *openSession) {
	s.sessions++
	if o.views == 1 {
		s.bounces++
	}
	s.seconds += o.last.Sub(o.first).Seconds() + float64(o.lastDuration)
}

// finish closes every open session and returns the average session length in
// seconds and the bounce rate as a percentage.
func (s *sessionizer) finish() (avgSeconds, bounceRate float64) {
	for k, o := range s.open {
		s.close(o)
		delete(s.open, k)
	}
	if s.sessions == 0 {
		return 0, 0
	}
	avgSeconds = round2(s.seconds / float64(s.sessions))
	bounceRate = round2(float64(s.bounces) * 100 / float64(s.sessions))
	return avgSeconds, bounceRate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
