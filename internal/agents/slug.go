package agents

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	maxSlugBase   = 50
	slugSuffixLen = 5
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Slugify lowercases name and collapses every run of non [a-z0-9] characters
// into a single dash, trimming dashes at both ends and capping the length.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > maxSlugBase {
		s = strings.TrimRight(s[:maxSlugBase], "-")
	}
	return s
}

// NewSlug derives a URL-safe slug from name with a random base36 suffix.
func NewSlug(name string) string {
	return Slugify(name) + "-" + randomSuffix()
}

func randomSuffix() string {
	out := make([]byte, slugSuffixLen)
	max := big.NewInt(int64(len(base36)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		out[i] = base36[n.Int64()]
	}
	return string(out)
}
