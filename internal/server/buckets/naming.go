package buckets

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	maxBucketNameLen = 63
	devSuffix        = "dev"
	fallbackBase     = "bucket"
)

// BucketName derives a bucket name from an instance name and a suffix.
// camelCase boundaries become hyphens, anything outside [a-z0-9] becomes a
// hyphen, hyphen runs collapse, and the result never exceeds 63 characters.
func BucketName(instance, suffix string) string {
	suffix = sanitize(suffix)
	if len(suffix) > maxBucketNameLen-2 {
		suffix = strings.TrimRight(suffix[:maxBucketNameLen-2], "-")
	}

	limit := maxBucketNameLen
	if suffix != "" {
		limit -= len(suffix) + 1
	}

	base := sanitize(splitCamel(instance))
	if base == "" {
		base = fallbackBase
	}
	if len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}

	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

// Suffix returns the fixed development suffix, or eight random hex
// characters in production.
func Suffix(production bool) string {
	if !production {
		return devSuffix
	}
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

func splitCamel(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte('-')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func sanitize(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
