package catalog

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength   = 290
	maxSlugAttempts = 100
	slugSuffixLen   = 6
)

// Slugify lowercases name, strips accents and joins alphanumeric runs with hyphens.
func Slugify(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// uniqueSlug derives a slug from name and appends a random suffix until exists reports it free.
func uniqueSlug(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", fmt.Errorf("name %q yields an empty slug", name)
	}
	candidate := base
	for attempt := 0; attempt <= maxSlugAttempts; attempt++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + randomSuffix()
	}
	return "", fmt.Errorf("unable to generate unique slug after %d attempts", maxSlugAttempts)
}

func randomSuffix() string {
	return strings.ToLower(rand.Text()[:slugSuffixLen])
}
