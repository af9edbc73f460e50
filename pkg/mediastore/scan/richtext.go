package scan

import (
	"net/url"
	"regexp"
)

// srcPattern matches embedded resource references (img/video/iframe src
// attributes) inside rich-text HTML.
var srcPattern = regexp.MustCompile(`src=["']([^"']+)["']`)

// extractPaths returns the URL paths of every src attribute in the text.
// Matching happens on paths rather than full URLs so that host or query
// differences (CDN domains, cache-busting params) don't hide a reference.
func extractPaths(text string) []string {
	matches := srcPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		parsed, err := url.Parse(m[1])
		if err != nil || parsed.Path == "" {
			continue
		}
		paths = append(paths, parsed.Path)
	}
	return paths
}

// URLPath reduces a blob URL to its path component for comparison
// against the paths extracted from rich-text bodies.
func URLPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Path
}
