package validators

import (
	"testing"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

func TestImageURL(t *testing.T) {
	cases := map[string]bool{
		"https://cdn.example.com/a/b/hero.jpg":       true,
		"http://cdn.example.com/hero.JPEG":           true,
		"https://cdn.example.com/hero.png?v=3":       true,
		"https://cdn.example.com/hero.webp#fragment": true,
		"https://cdn.example.com/hero.gif":           false,
		"https://cdn.example.com/hero":               false,
		"https://cdn.example.com/hero.png.exe":       false,
		"ftp://cdn.example.com/hero.png":             false,
		"/relative/hero.png":                         false,
		"":                                           false,
	}
	for raw, want := range cases {
		if got := ImageURL(raw); got != want {
			t.Errorf("ImageURL(%q) = %v, want %v", raw, got, want)
		}
	}
}

type imagePayload struct {
	Cover *string `json:"cover" validate:"omitempty,image_url"`
}

func TestStructReportsImageURLField(t *testing.T) {
	bad := "https://cdn.example.com/cover.svg"
	err := Struct(&imagePayload{Cover: &bad})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["cover"] != "must be an http(s) url to a JPG, PNG or WEBP image" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}

	good := "https://cdn.example.com/cover.png"
	if err := Struct(&imagePayload{Cover: &good}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Struct(&imagePayload{}); err != nil {
		t.Fatalf("omitted cover should pass: %v", err)
	}
}
