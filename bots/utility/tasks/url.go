package tasks

import (
	"net/url"
	"strings"
)

// IsValidURL reports whether text parses as an absolute URL with both a scheme and a host.
func IsValidURL(text string) bool {
	u, err := url.Parse(text)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

var linkPrefixes = []string{"http://", "https://"}

// LooksLikeLink reports whether text starts with a web link scheme; used to
// decide which actions to suggest for free text.
func LooksLikeLink(text string) bool {
	for _, p := range linkPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
