package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Summer Linen Shirt":    "summer-linen-shirt",
		"  Café Crème  T-Shirt": "cafe-creme-t-shirt",
		"100% Cotton!!":         "100-cotton",
		"snake_case name":       "snake-case-name",
		"***":                   "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slugify(strings.Repeat("a", 400)); len(got) != maxSlugLength {
		t.Fatalf("expected slug truncated to %d, got %d", maxSlugLength, len(got))
	}
}

func TestUniqueSlugAppendsSuffixOnCollision(t *testing.T) {
	taken := map[string]bool{"linen-shirt": true}
	slug, err := uniqueSlug(context.Background(), "Linen Shirt", func(_ context.Context, s string) (bool, error) {
		return taken[s], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^linen-shirt-[a-z2-7]{6}$`).MatchString(slug) {
		t.Fatalf("unexpected slug %q", slug)
	}
}

func TestUniqueSlugGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := uniqueSlug(context.Background(), "Linen Shirt", func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != maxSlugAttempts+1 {
		t.Fatalf("expected %d lookups, got %d", maxSlugAttempts+1, calls)
	}
}

func TestUniqueSlugPropagatesLookupErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := uniqueSlug(context.Background(), "x", func(context.Context, string) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if _, err := uniqueSlug(context.Background(), "!!!", nil); err == nil {
		t.Fatal("expected empty slug error")
	}
}
