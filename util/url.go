package util

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
	ErrNoURL      = errors.New("no URL found in text")
)

// Share captions mix prose and URLs with no separator. An explicit scheme is
// the strongest signal; a bare host needs a recognisable TLD to count.
var (
	schemeURLRe = regexp.MustCompile(`https?://[^\s"'<>]+`)
	bareURLRe   = regexp.MustCompile(`(?:[\w-]+\.)+[a-zA-Z]{2,}(?::\d+)?(?:/[^\s"'<>]*)?`)
)

// ExtractURL returns the first well-formed URL substring in free-form text,
// prepending https:// when the scheme is missing.
func ExtractURL(text string) (string, error) {
	// A URL glued to preceding prose still starts with its scheme.
	spaced := strings.ReplaceAll(text, "http://", " http://")
	spaced = strings.ReplaceAll(spaced, "https://", " https://")
	candidates := schemeURLRe.FindAllString(spaced, -1)
	for _, c := range bareURLRe.FindAllString(spaced, -1) {
		candidates = append(candidates, "https://"+c)
	}
	for _, candidate := range candidates {
		candidate = strings.TrimRight(candidate, ".,;:!?)]}>\"'")
		if u, err := url.Parse(candidate); err == nil && u.Host != "" && strings.Contains(u.Host, ".") {
			return candidate, nil
		}
	}
	return "", ErrNoURL
}

// FilterQuery strips every query parameter not in reserved, preserving the
// original order of the survivors. Applying it twice gives the same result as
// applying it once.
func FilterQuery(rawURL string, reserved []string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.RawQuery == "" {
		return u.String(), nil
	}
	keep := make(map[string]bool, len(reserved))
	for _, p := range reserved {
		keep[p] = true
	}
	var kept []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if keep[key] {
			kept = append(kept, pair)
		}
	}
	u.RawQuery = strings.Join(kept, "&")
	return u.String(), nil
}

// FilenameFromURL extracts the final path element as a filename.
func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

// FilenameFromURLString is FilenameFromURL on an unparsed URL.
func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}
