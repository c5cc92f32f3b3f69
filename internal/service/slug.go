package service

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const fallbackSlug = "session"

// Slugify lower-cases s, strips diacritics and collapses every run of
// characters outside [a-z0-9] into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// UniqueSlug appends a millisecond timestamp to the slugified base.
func UniqueSlug(base string, now time.Time) string {
	return Slugify(base) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}
