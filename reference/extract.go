package reference

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	exactHexID = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	anyHexID   = regexp.MustCompile(`[0-9a-fA-F]{32}`)
)

type extractRule func(segment string, query url.Values) (string, bool)

// Rules run in order; the first match wins.
var extractRules = []extractRule{
	lastHyphenToken,
	hexSubstringOfSlug,
	viewParameter,
	wholeSegment,
}

// ExtractCanonicalID returns the document identifier carried by rawURL, or ""
// when the URL cannot be parsed or carries no final path segment. The result
// is not guaranteed to be 32 hex characters: an unrecognized segment is
// returned with hyphens stripped as a best effort.
func ExtractCanonicalID(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	segment := finalSegment(parsed.Path)
	query := parsed.Query()
	for _, rule := range extractRules {
		if id, ok := rule(segment, query); ok {
			return id
		}
	}
	return strings.ReplaceAll(segment, "-", "")
}

func finalSegment(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func lastHyphenToken(segment string, _ url.Values) (string, bool) {
	if !strings.Contains(segment, "-") {
		return "", false
	}
	tokens := strings.Split(segment, "-")
	for i := len(tokens) - 1; i >= 0; i-- {
		if exactHexID.MatchString(tokens[i]) {
			return tokens[i], true
		}
	}
	return "", false
}

// hexSubstringOfSlug only applies to hyphenated slugs. Bare segments fall
// through to the view parameter first.
func hexSubstringOfSlug(segment string, _ url.Values) (string, bool) {
	if !strings.Contains(segment, "-") {
		return "", false
	}
	match := anyHexID.FindString(strings.ReplaceAll(segment, "-", ""))
	return match, match != ""
}

func viewParameter(_ string, query url.Values) (string, bool) {
	if !query.Has("v") {
		return "", false
	}
	view := strings.ReplaceAll(query.Get("v"), "-", "")
	if exactHexID.MatchString(view) {
		return view, true
	}
	return "", false
}

func wholeSegment(segment string, _ url.Values) (string, bool) {
	stripped := strings.ReplaceAll(segment, "-", "")
	if exactHexID.MatchString(stripped) {
		return stripped, true
	}
	return "", false
}

// FormatCanonicalID groups a bare 32-character id as 8-4-4-4-12. Ids that
// already contain hyphens, or are not 32 characters long, pass through.
func FormatCanonicalID(id string) string {
	if strings.Contains(id, "-") || len(id) != 32 {
		return id
	}
	return id[:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:]
}
