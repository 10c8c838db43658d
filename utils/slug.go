package utils

import (
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Slugify turns a title into a URL slug. Titles without any transliterable
// characters get a short random slug instead of an empty one.
func Slugify(title string) string {
	s := slug.Make(strings.TrimSpace(title))
	if s == "" {
		s = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if len(s) > 200 {
		s = strings.Trim(s[:200], "-")
	}
	return s
}
