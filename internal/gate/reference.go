package gate

import (
	"net/url"
	"strings"
)

const shareMarker = "/shared/"

// ParseShareReference extracts the share identifier from a link such as
// "https://host/shared/<id>" or a path fragment such as "/shared/<id>/extra".
//
// Trailing segments, query and fragment are dropped. Input without the marker, with
// whitespace, or with an identifier outside [A-Za-z0-9_-] is reported as not found.
func ParseShareReference(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" || strings.ContainsFunc(s, isSpace) {
		return "", false
	}

	path := s
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		path = u.EscapedPath()
		// Hash-routed frontends put the route in the fragment.
		if !strings.Contains(path, shareMarker) && u.Fragment != "" {
			path = u.EscapedFragment()
		}
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, shareMarker[1:]) {
		path = "/" + path
	}

	_, rest, found := strings.Cut(path, shareMarker)
	if !found {
		return "", false
	}
	segment, _, _ := strings.Cut(rest, "/")

	id, err := url.PathUnescape(segment)
	if err != nil || !validID(id) {
		return "", false
	}
	return id, true
}

// ResolveShareID accepts either a share link or a bare identifier.
func ResolveShareID(input string) (string, bool) {
	if id, ok := ParseShareReference(input); ok {
		return id, true
	}
	if id := strings.TrimSpace(input); validID(id) {
		return id, true
	}
	return "", false
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// ShareLink builds the frontend link for a share identifier.
func ShareLink(frontendURL, id string) string {
	return strings.TrimRight(frontendURL, "/") + shareMarker + url.PathEscape(id)
}
