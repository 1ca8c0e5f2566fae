package validators

import (
	"net/url"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// ImageURL reports whether raw is an absolute http(s) URL whose path names a JPG, PNG or WEBP file.
func ImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

func validateImageURL(fl validator.FieldLevel) bool {
	return ImageURL(fl.Field().String())
}
